//go:build unix

package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bloomberg/ntf-core-sub027/chronology"
	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Reactor is the readiness-based Engine from spec.md §4.1, parameterized
// over a platform poller (epoll, kqueue, or the generic poll fallback).
// Grounded on the teacher's eventloop.Loop run-loop (eventloop/loop.go):
// a wakeup-fd-driven blocking poll bounded by the next timer deadline,
// dispatching ready fds and due timers on the engine's own strand.
type Reactor struct {
	p      poller
	wheel  *chronology.Wheel
	str    *strand.Strand
	wakeR  int
	wakeW  int
	mu     sync.Mutex
	regs   map[Handle]*registration
	running atomic.Bool
	stop    atomic.Bool
	closed  atomic.Bool
}

type registration struct {
	readable, writable, edge, oneShot, notifications bool
	cb                                               Callback
}

// NewReactor creates and initializes a Reactor using the platform's native
// readiness back end (epoll on Linux, kqueue on BSD/Darwin, poll elsewhere).
func NewReactor() (*Reactor, error) {
	p := newPlatformPoller()
	if err := p.Init(); err != nil {
		return nil, err
	}
	rfd, wfd, err := createWakeFD()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	r := &Reactor{
		p:     p,
		wheel: chronology.New(),
		str:   strand.New(),
		wakeR: rfd,
		wakeW: wfd,
		regs:  make(map[Handle]*registration),
	}
	if err := p.RegisterFD(rfd, true, false, false, func(int, bool, bool, bool, bool) {
		drainWake(rfd)
	}); err != nil {
		_ = p.Close()
		closeWakeFD(rfd, wfd)
		return nil, err
	}
	return r, nil
}

func (r *Reactor) Attach(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regs[h]; ok {
		return ErrFDAlreadyRegistered
	}
	reg := &registration{}
	r.regs[h] = reg
	return r.p.RegisterFD(int(h), false, false, false, r.makeDispatch(h))
}

func (r *Reactor) Detach(h Handle) error {
	r.mu.Lock()
	_, ok := r.regs[h]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.regs, h)
	r.mu.Unlock()
	return r.p.UnregisterFD(int(h))
}

func (r *Reactor) Show(h Handle, interest Interest, cb Callback) error {
	r.mu.Lock()
	reg, ok := r.regs[h]
	if !ok {
		r.mu.Unlock()
		return ErrFDNotRegistered
	}
	if interest&InterestReadable != 0 {
		reg.readable = true
	}
	if interest&InterestWritable != 0 {
		reg.writable = true
	}
	if interest&InterestEdge != 0 {
		reg.edge = true
	}
	if interest&InterestOneShot != 0 {
		reg.oneShot = true
	}
	if interest&InterestNotifications != 0 {
		reg.notifications = true
	}
	reg.cb = cb
	readable, writable, edge := reg.readable, reg.writable, reg.edge
	r.mu.Unlock()
	return r.p.ModifyFD(int(h), readable, writable, edge)
}

func (r *Reactor) Hide(h Handle, interest Interest) error {
	r.mu.Lock()
	reg, ok := r.regs[h]
	if !ok {
		r.mu.Unlock()
		return ErrFDNotRegistered
	}
	if interest&InterestReadable != 0 {
		reg.readable = false
	}
	if interest&InterestWritable != 0 {
		reg.writable = false
	}
	readable, writable, edge := reg.readable, reg.writable, reg.edge
	r.mu.Unlock()
	return r.p.ModifyFD(int(h), readable, writable, edge)
}

// makeDispatch returns the raw poller callback for handle h, translating
// platform flags into Events, honoring one-shot re-arming, and posting the
// registered Callback onto the reactor's strand.
func (r *Reactor) makeDispatch(h Handle) rawCallback {
	return func(fd int, readable, writable, errored, hangup bool) {
		r.mu.Lock()
		reg, ok := r.regs[h]
		if !ok || reg.cb == nil {
			r.mu.Unlock()
			return
		}
		cb := reg.cb
		oneShot := reg.oneShot
		r.mu.Unlock()

		if oneShot {
			_ = r.Hide(h, InterestReadable|InterestWritable)
		}

		ev := Events{Readable: readable, Writable: writable, Error: errored, Hangup: hangup}
		r.str.Execute(func() { cb(ev) })
	}
}

func (r *Reactor) AddTimer(deadline time.Time, period time.Duration, cb chronology.Callback, s *strand.Strand) uint64 {
	return r.wheel.Add(deadline, period, cb, s)
}

func (r *Reactor) RemoveTimer(id uint64) bool {
	return r.wheel.Remove(id)
}

func (r *Reactor) Execute(fn func()) {
	r.str.Execute(fn)
}

func (r *Reactor) Strand() *strand.Strand {
	return r.str
}

// Run blocks, polling for I/O and firing timers, until stop() returns true
// or the Reactor is closed. The poll timeout is bounded by the next pending
// timer deadline, per spec.md §4.2.
func (r *Reactor) Run(stop func() bool) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	for {
		if r.closed.Load() || r.stop.Load() || (stop != nil && stop()) {
			return nil
		}

		timeoutMs := -1
		if deadline, ok := r.wheel.NextDeadline(); ok {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			timeoutMs = int(d / time.Millisecond)
		}

		if _, err := r.p.PollIO(timeoutMs); err != nil {
			return err
		}

		r.wheel.Fire(time.Now())
	}
}

// Interrupt wakes a thread currently blocked in Run.
func (r *Reactor) Interrupt() error {
	return writeWake(r.wakeW)
}

// Close releases the reactor's polling device and wakeup primitive. Run
// must not be called again afterward.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.stop.Store(true)
	_ = r.Interrupt()
	r.wheel.Close()
	closeWakeFD(r.wakeR, r.wakeW)
	return r.p.Close()
}
