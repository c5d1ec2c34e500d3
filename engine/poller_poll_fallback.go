//go:build unix && !linux && !darwin && !freebsd && !netbsd && !openbsd

package engine

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollPoller implements poller using poll(2), the generic fallback back end
// from spec.md §4.1 that also stands in for AIX's pollset and any other
// POSIX host without a dedicated epoll/kqueue back end. It only supports
// level-triggered delivery; an edge request is silently downgraded, per
// spec.md §4.1's "each back-end is functionally equivalent".
type pollPoller struct {
	mu  sync.Mutex
	fds map[int]*pollEntry
}

type pollEntry struct {
	cb       rawCallback
	readable bool
	writable bool
}

func newPlatformPoller() poller {
	return &pollPoller{fds: make(map[int]*pollEntry)}
}

func (p *pollPoller) Init() error  { return nil }
func (p *pollPoller) Close() error { return nil }

func (p *pollPoller) RegisterFD(fd int, readable, writable, _ bool, cb rawCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = &pollEntry{cb: cb, readable: readable, writable: writable}
	return nil
}

func (p *pollPoller) UnregisterFD(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	return nil
}

func (p *pollPoller) ModifyFD(fd int, readable, writable, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	e.readable, e.writable = readable, writable
	return nil
}

func (p *pollPoller) PollIO(timeoutMs int) (int, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.fds))
	order := make([]int, 0, len(p.fds))
	for fd, e := range p.fds {
		var events int16
		if e.readable {
			events |= unix.POLLIN
		}
		if e.writable {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
		order = append(order, fd)
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		// Nothing registered: emulate a bounded sleep so the caller's
		// timer-driven timeout still elapses.
		if timeoutMs > 0 {
			unix.Nanosleep(&unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1e6)}, nil)
		}
		return 0, nil
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	dispatched := 0
	p.mu.Lock()
	type fire struct {
		fd                                int
		cb                                rawCallback
		readable, writable, errored, hup bool
	}
	var fires []fire
	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := order[i]
		e, ok := p.fds[fd]
		if !ok || e.cb == nil {
			continue
		}
		fires = append(fires, fire{
			fd:       fd,
			cb:       e.cb,
			readable: pfd.Revents&unix.POLLIN != 0,
			writable: pfd.Revents&unix.POLLOUT != 0,
			errored:  pfd.Revents&unix.POLLERR != 0,
			hup:      pfd.Revents&unix.POLLHUP != 0,
		})
	}
	p.mu.Unlock()

	for _, f := range fires {
		f.cb(f.fd, f.readable, f.writable, f.errored, f.hup)
		dispatched++
	}
	return dispatched, nil
}
