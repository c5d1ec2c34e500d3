// Package faststate provides a lock-free, CAS-driven finite state machine
// over a small integer state space, shared by the socket package's open-
// state and detach-state machines (spec.md §3's "default → waiting →
// connecting → connected → closed" and "idle → initiated → scheduled"
// lifecycles).
//
// Grounded on the teacher's eventloop.FastState (eventloop/state.go):
// pure atomic CAS transitions, no locking, no transition-table validation
// (callers are expected to only attempt transitions their own logic deems
// legal — the same trust model the teacher documents).
package faststate

import "sync/atomic"

// State is a lock-free holder for a small uint32 state value.
type State struct {
	v atomic.Uint32
}

// New creates a State initialized to v.
func New(v uint32) *State {
	s := &State{}
	s.v.Store(v)
	return s
}

// Load returns the current value.
func (s *State) Load() uint32 {
	return s.v.Load()
}

// Store unconditionally sets the value, for irreversible terminal states.
func (s *State) Store(v uint32) {
	s.v.Store(v)
}

// TryTransition attempts to move from "from" to "to", succeeding only if
// the current value is still "from".
func (s *State) TryTransition(from, to uint32) bool {
	return s.v.CompareAndSwap(from, to)
}

// TransitionAny tries each candidate source state in order, committing to
// the first one that still matches.
func (s *State) TransitionAny(validFrom []uint32, to uint32) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(from, to) {
			return true
		}
	}
	return false
}
