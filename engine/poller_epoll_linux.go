//go:build linux

package engine

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller implements poller using Linux epoll, supporting both level-
// and edge-triggered interest per spec.md §4.1.
//
// Grounded on eventloop/poller_linux.go's FastPoller: epoll_create1,
// EpollCtl-driven registration, and inline event dispatch. Generalized from
// the teacher's fixed 65536-entry array to a map keyed by fd, since this
// engine imposes no a-priori descriptor ceiling (spec.md's Reservation
// primitive, not the poller, is what enforces limits).
type epollPoller struct {
	mu       sync.RWMutex
	epfd     int
	fds      map[int]*epollEntry
	eventBuf []unix.EpollEvent
	closed   bool
}

type epollEntry struct {
	cb       rawCallback
	readable bool
	writable bool
	edge     bool
}

func newPlatformPoller() poller {
	return &epollPoller{fds: make(map[int]*epollEntry), eventBuf: make([]unix.EpollEvent, 256)}
}

func (p *epollPoller) Init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	return nil
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return unix.Close(p.epfd)
}

func (p *epollPoller) RegisterFD(fd int, readable, writable, edge bool, cb rawCallback) error {
	p.mu.Lock()
	if _, ok := p.fds[fd]; ok {
		p.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	e := &epollEntry{cb: cb, readable: readable, writable: writable, edge: edge}
	p.fds[fd] = e
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: epollFlags(readable, writable, edge), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) UnregisterFD(fd int) error {
	p.mu.Lock()
	if _, ok := p.fds[fd]; !ok {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	p.mu.Unlock()
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) ModifyFD(fd int, readable, writable, edge bool) error {
	p.mu.Lock()
	e, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	e.readable, e.writable, e.edge = readable, writable, edge
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: epollFlags(readable, writable, edge), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) PollIO(timeoutMs int) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		p.mu.RLock()
		e, ok := p.fds[fd]
		p.mu.RUnlock()
		if !ok || e.cb == nil {
			continue
		}
		flags := p.eventBuf[i].Events
		e.cb(fd,
			flags&unix.EPOLLIN != 0,
			flags&unix.EPOLLOUT != 0,
			flags&unix.EPOLLERR != 0,
			flags&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		)
	}
	return n, nil
}

func epollFlags(readable, writable, edge bool) uint32 {
	var f uint32
	if readable {
		f |= unix.EPOLLIN
	}
	if writable {
		f |= unix.EPOLLOUT
	}
	if edge {
		f |= unix.EPOLLET
	}
	return f
}
