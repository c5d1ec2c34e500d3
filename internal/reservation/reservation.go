// Package reservation implements the Reservation primitive from spec.md
// §3: a monotone counter with a ceiling, used to bound descriptor and
// connection counts. Acquire increments iff under the ceiling via atomic
// CAS; Release decrements, saturating at zero.
//
// Grounded on the teacher's FastState CAS-loop discipline
// (eventloop/state.go's TryTransition/TransitionAny), generalized from a
// small state enum to an arbitrary bounded counter.
package reservation

import "sync/atomic"

// Counter is a process-wide or per-resource-pool reservation counter.
type Counter struct {
	ceiling uint64
	v       atomic.Uint64
}

// New creates a Counter with the given ceiling. A ceiling of 0 means
// unbounded (Acquire always succeeds).
func New(ceiling uint64) *Counter {
	return &Counter{ceiling: ceiling}
}

// Acquire attempts to claim one unit. Returns true if the count was
// incremented (i.e. the previous count was strictly under the ceiling, or
// the Counter is unbounded), false if the ceiling would be exceeded.
func (c *Counter) Acquire() bool {
	for {
		cur := c.v.Load()
		if c.ceiling != 0 && cur >= c.ceiling {
			return false
		}
		if c.v.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release gives back one unit, saturating at zero (a Release with no
// matching Acquire never underflows to a huge unsigned value).
func (c *Counter) Release() {
	for {
		cur := c.v.Load()
		if cur == 0 {
			return
		}
		if c.v.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Count returns the current reservation count.
func (c *Counter) Count() uint64 {
	return c.v.Load()
}

// Ceiling returns the configured ceiling (0 means unbounded).
func (c *Counter) Ceiling() uint64 {
	return c.ceiling
}
