//go:build darwin || freebsd || netbsd || openbsd

package engine

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements poller using kqueue, the BSD/Darwin reactor
// back end from spec.md §4.1. Edge-triggered interest is requested via
// EV_CLEAR, matching kqueue's native edge-trigger flag.
//
// Grounded on eventloop/poller_darwin.go's FastPoller: kqueue(2) creation,
// EV_ADD/EV_DELETE-driven registration, and inline event dispatch.
type kqueuePoller struct {
	mu       sync.RWMutex
	kq       int
	fds      map[int]*kqueueEntry
	eventBuf []unix.Kevent_t
}

type kqueueEntry struct {
	cb       rawCallback
	readable bool
	writable bool
}

func newPlatformPoller() poller {
	return &kqueuePoller{fds: make(map[int]*kqueueEntry), eventBuf: make([]unix.Kevent_t, 256)}
}

func (p *kqueuePoller) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	return nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

func (p *kqueuePoller) RegisterFD(fd int, readable, writable, edge bool, cb rawCallback) error {
	p.mu.Lock()
	if _, ok := p.fds[fd]; ok {
		p.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = &kqueueEntry{cb: cb, readable: readable, writable: writable}
	p.mu.Unlock()

	kevs := kevents(fd, readable, writable, unix.EV_ADD|unix.EV_ENABLE, edge)
	if len(kevs) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, kevs, nil, nil); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *kqueuePoller) UnregisterFD(fd int) error {
	p.mu.Lock()
	e, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	p.mu.Unlock()

	kevs := kevents(fd, e.readable, e.writable, unix.EV_DELETE, false)
	if len(kevs) > 0 {
		_, _ = unix.Kevent(p.kq, kevs, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) ModifyFD(fd int, readable, writable, edge bool) error {
	p.mu.Lock()
	e, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	old := *e
	e.readable, e.writable = readable, writable
	p.mu.Unlock()

	if old.readable && !readable || old.writable && !writable {
		del := kevents(fd, old.readable && !readable, old.writable && !writable, unix.EV_DELETE, false)
		if len(del) > 0 {
			_, _ = unix.Kevent(p.kq, del, nil, nil)
		}
	}
	if readable && !old.readable || writable && !old.writable {
		add := kevents(fd, readable && !old.readable, writable && !old.writable, unix.EV_ADD|unix.EV_ENABLE, edge)
		if len(add) > 0 {
			if _, err := unix.Kevent(p.kq, add, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *kqueuePoller) PollIO(timeoutMs int) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		kev := &p.eventBuf[i]
		fd := int(kev.Ident)
		p.mu.RLock()
		e, ok := p.fds[fd]
		p.mu.RUnlock()
		if !ok || e.cb == nil {
			continue
		}
		e.cb(fd,
			kev.Filter == unix.EVFILT_READ,
			kev.Filter == unix.EVFILT_WRITE,
			kev.Flags&unix.EV_ERROR != 0,
			kev.Flags&unix.EV_EOF != 0,
		)
	}
	return n, nil
}

func kevents(fd int, readable, writable bool, flags uint16, edge bool) []unix.Kevent_t {
	if edge {
		flags |= unix.EV_CLEAR
	}
	var out []unix.Kevent_t
	if readable {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if writable {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}
