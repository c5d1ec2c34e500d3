// Package chronology implements the timer wheel described in spec.md §4.2:
// a set of pending deadlines ordered by absolute time, fired in
// non-decreasing deadline order, supporting one-shot and periodic timers
// with non-accumulating drift and cooperative cancellation.
//
// Grounded on the teacher's timerHeap in eventloop/loop.go (a
// container/heap min-heap with insertion-order tie-breaking), generalized
// to carry period/one-shot/drift bookkeeping per spec.md.
package chronology

import (
	"container/heap"
	"sync"
	"time"

	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Classifier identifies why a timer's callback fired.
type Classifier int

const (
	// Fired indicates the deadline was reached normally.
	Fired Classifier = iota
	// Canceled indicates RemoveTimer was called before the deadline.
	Canceled
	// Closed indicates the Wheel was closed before the deadline.
	Closed
)

// Callback receives (now, the scheduled deadline, drift = now - deadline,
// classifier). Drift is zero for Canceled and Closed fires.
type Callback func(now, deadline time.Time, drift time.Duration, class Classifier)

// entry is one scheduled timer, held in the heap.
type entry struct {
	id       uint64
	deadline time.Time
	period   time.Duration // zero for one-shot
	oneShot  bool
	seq      uint64 // insertion order, breaks deadline ties
	cb       Callback
	strand   *strand.Strand // nil means: invoke directly on the firing goroutine
	canceled bool
	index    int // heap index, maintained by container/heap
}

// entryHeap implements container/heap.Interface, ordered by deadline then
// insertion sequence, exactly matching the teacher's timerHeap tie-break.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel holds the set of pending deadlines for one engine instance.
type Wheel struct {
	mu      sync.Mutex
	heap    entryHeap
	byID    map[uint64]*entry
	nextID  uint64
	nextSeq uint64
	closed  bool
}

// New creates an empty Wheel.
func New() *Wheel {
	return &Wheel{byID: make(map[uint64]*entry)}
}

// Add schedules a timer. If period > 0 the timer is periodic and
// reschedules to "previous deadline + period" on each fire (so drift does
// not accumulate); if period == 0 the timer is one-shot and is removed
// after its first fire. Add returns the timer's id, used with Remove.
func (w *Wheel) Add(deadline time.Time, period time.Duration, cb Callback, s *strand.Strand) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	w.nextSeq++
	e := &entry{
		id:       id,
		deadline: deadline,
		period:   period,
		oneShot:  period <= 0,
		seq:      w.nextSeq,
		cb:       cb,
		strand:   s,
	}
	if w.closed {
		// A Wheel that is already closed fires new timers as Closed
		// immediately rather than silently dropping them.
		go cb(time.Now(), deadline, 0, Closed)
		return id
	}
	heap.Push(&w.heap, e)
	w.byID[id] = e
	return id
}

// Remove cancels a pending timer by id. If the timer has not yet fired, its
// callback is invoked with Canceled and it never produces a deadline event.
// Returns false if the id is unknown (already fired or never existed).
func (w *Wheel) Remove(id uint64) bool {
	w.mu.Lock()
	e, ok := w.byID[id]
	if !ok {
		w.mu.Unlock()
		return false
	}
	delete(w.byID, id)
	if e.index >= 0 && e.index < len(w.heap) && w.heap[e.index] == e {
		heap.Remove(&w.heap, e.index)
	}
	e.canceled = true
	w.mu.Unlock()

	w.invoke(e, e.deadline, time.Now(), Canceled)
	return true
}

// NextDeadline returns the earliest pending deadline and true, or the zero
// time and false if no timers are pending. The engine passes this as its
// poll timeout per spec.md §4.1.
func (w *Wheel) NextDeadline() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.heap) == 0 {
		return time.Time{}, false
	}
	return w.heap[0].deadline, true
}

// Fire fires every pending deadline <= now, invoking each timer's callback
// with (now, scheduled deadline, drift). Periodic timers are rescheduled
// in place; one-shot timers are removed. Returns the number of timers
// fired.
func (w *Wheel) Fire(now time.Time) int {
	var due []*entry
	var deadlines []time.Time // each entry's deadline as scheduled, before any reschedule
	w.mu.Lock()
	for len(w.heap) > 0 && !w.heap[0].deadline.After(now) {
		e := heap.Pop(&w.heap).(*entry)
		due = append(due, e)
		deadlines = append(deadlines, e.deadline)
		if e.oneShot {
			delete(w.byID, e.id)
		} else {
			// Reschedule to "previous deadline + period" so drift does not
			// accumulate. A timer that has fallen far behind (e.g. the
			// process was suspended) is not replayed for every missed
			// period; it catches up to the next deadline after now.
			for {
				e.deadline = e.deadline.Add(e.period)
				if e.deadline.After(now) {
					break
				}
			}
			heap.Push(&w.heap, e)
		}
	}
	w.mu.Unlock()

	for i, e := range due {
		w.invoke(e, deadlines[i], now, Fired)
	}
	return len(due)
}

// Close fires every still-pending timer with Closed and empties the Wheel.
// Subsequent Add calls fire immediately with Closed rather than queuing.
func (w *Wheel) Close() {
	w.mu.Lock()
	pending := w.heap
	w.heap = nil
	w.byID = make(map[uint64]*entry)
	w.closed = true
	w.mu.Unlock()

	now := time.Now()
	for _, e := range pending {
		w.invoke(e, e.deadline, now, Closed)
	}
}

// invoke dispatches a timer callback for the given scheduled deadline,
// computing drift for Fired classifications and posting to the timer's
// strand if one was given.
func (w *Wheel) invoke(e *entry, deadline, now time.Time, class Classifier) {
	var drift time.Duration
	if class == Fired {
		drift = now.Sub(deadline)
	}
	run := func() { e.cb(now, deadline, drift, class) }
	if e.strand != nil {
		e.strand.Execute(run)
		return
	}
	run()
}
