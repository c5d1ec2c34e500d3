package callback

import "sync"

// Cancellation is the cooperative cancellation abstraction from spec.md
// §4.4: Abort() requests cancellation and reports whether the request was
// accepted before the callback executed. A nil *Cancellation (or the
// Uncancelable sentinel) signals that the callback cannot be canceled by
// the initiator.
//
// Grounded on the teacher's AbortSignal/AbortController (eventloop/abort.go),
// narrowed from the DOM-flavored multi-listener API to the plain
// abort()-bool surface spec.md §4.4 describes.
type Cancellation struct {
	mu       sync.Mutex
	aborted  bool
	accepted bool // true once an operation has claimed the token via TryClaim; later Aborts are refused
	claims   []func() bool
}

// New creates a fresh, live Cancellation.
func New() *Cancellation {
	return &Cancellation{}
}

// Uncancelable is the sentinel value for operations that do not support
// cancellation by the initiator. Its Abort always returns false and
// Aborted always reports false.
var Uncancelable = &Cancellation{}

// Abort requests cancellation. Returns true if this call is the one that
// transitioned the token from live to aborted (i.e. the first Abort()
// call, made before any operation claimed the token via TryClaim). It
// returns false if the token was already aborted, or if an operation has
// already claimed it and will therefore complete with its natural result.
func (c *Cancellation) Abort() bool {
	if c == nil || c == Uncancelable {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted || c.accepted {
		return false
	}
	c.aborted = true
	return true
}

// Aborted reports whether Abort has been called.
func (c *Cancellation) Aborted() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// TryClaim is used by a pending operation to atomically check-and-commit
// to running to completion rather than being canceled. It returns true if
// the operation may proceed to its natural result (the token was not yet
// aborted at the time of the call, and this call is the one that claims
// it), or false if the token is already aborted and the operation must
// instead finish with CANCELLED. This implements spec.md §5: "the next
// scheduling point checks and, if not yet scheduled, discards the
// callback; if already scheduled but not started, it is finished with
// CANCELLED".
func (c *Cancellation) TryClaim() bool {
	if c == nil || c == Uncancelable {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return false
	}
	c.accepted = true
	return true
}
