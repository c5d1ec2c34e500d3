// Package strand implements the serialized execution core described in
// spec.md §4.3: a Strand is an execution queue that runs submitted functors
// serially and in FIFO order, with a process-wide notion of the "currently
// executing strand" for re-entrancy detection.
package strand

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// currentStrand is the process-wide thread-local (goroutine-local, since Go
// has no OS-thread-local storage for user code) record of which Strand, if
// any, the calling goroutine is currently draining. Grounded on the
// teacher's loopGoroutineID/isLoopThread pattern in eventloop/loop.go,
// generalized from "the one loop" to "any number of strands".
var currentStrand sync.Map // map[uint64]*Strand

// Strand is a serial execution queue. Functions submitted via Execute run
// in submission order; no two functors on the same Strand ever run
// concurrently. Ordering across different Strands is unspecified.
type Strand struct {
	mu      sync.Mutex
	jobs    []func()
	spare   []func()
	running bool
	drainer atomic.Uint64 // goroutine id currently draining this strand, 0 if none
}

// New creates an idle Strand.
func New() *Strand {
	return &Strand{}
}

// Execute enqueues fn for serialized execution. If no goroutine is
// currently draining the strand, the calling goroutine drains it
// synchronously (this is what makes Execute cheap for the common case of a
// single-threaded producer); otherwise fn is appended to the pending queue
// and will run when the current drain loop reaches it.
func (s *Strand) Execute(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.running {
		s.jobs = append(s.jobs, fn)
		s.mu.Unlock()
		return
	}
	s.running = true
	s.jobs = append(s.jobs, fn)
	s.mu.Unlock()

	s.drain()
}

// drain runs queued functors until the queue is empty, marking this
// goroutine as the current drainer so IsRunningInThisThread and the
// package-level Current() resolve correctly for re-entrant Execute calls
// made by the functors themselves.
func (s *Strand) drain() {
	gid := goroutineID()
	s.drainer.Store(gid)
	currentStrand.Store(gid, s)
	defer func() {
		currentStrand.Delete(gid)
		s.drainer.Store(0)
	}()

	for {
		s.mu.Lock()
		if len(s.jobs) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		// Swap active/spare buffers under the lock (the teacher's
		// auxJobs/auxJobsSpare pattern from eventloop/loop.go's runAux),
		// then run the batch outside the lock so re-entrant Execute calls
		// from the functors themselves don't deadlock.
		batch := s.jobs
		s.jobs = s.spare[:0]
		s.spare = batch[:0]
		s.mu.Unlock()

		for i, job := range batch {
			job()
			batch[i] = nil
		}
	}
}

// Drain is the public form of the internal drain loop: it runs pending
// work on the calling goroutine without a fresh Execute submission. It is
// a no-op if the strand is already being drained by this or another
// goroutine, which includes a call made from a functor running on it.
func (s *Strand) Drain() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	s.drain()
}

// IsRunningInThisThread reports whether the calling goroutine is currently
// draining this strand.
func (s *Strand) IsRunningInThisThread() bool {
	return s.drainer.Load() == goroutineID()
}

// Current returns the Strand the calling goroutine is currently draining,
// or nil if none.
func Current() *Strand {
	if v, ok := currentStrand.Load(goroutineID()); ok {
		return v.(*Strand)
	}
	return nil
}

// goroutineID extracts the calling goroutine's id by parsing the leading
// "goroutine NNN" prefix of a runtime.Stack dump, exactly as the teacher's
// eventloop.getGoroutineID does.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
