package callback

import (
	"time"

	"github.com/bloomberg/ntf-core-sub027/ntcerr"
)

// Future is a waitable wrapper around a single-shot result, per spec.md
// §4.4: "constructors install the future as the callback; wait(result) and
// wait(result, timeout) block until the result is available." Grounded on
// the teacher's Promise.ToChannel (eventloop/promise.go), narrowed from a
// full Promise/A+ surface to the plain blocking-wait surface spec.md asks
// for.
type Future[T any] struct {
	ch chan T
}

// NewFuture creates an unset Future together with the function that
// fulfills it. Call the returned function from an operation's completion
// handler; call Wait to block for the result.
func NewFuture[T any]() (*Future[T], func(T)) {
	f := &Future[T]{ch: make(chan T, 1)}
	return f, func(v T) {
		select {
		case f.ch <- v:
		default:
			// Already fulfilled; per the single-callback invariant this
			// should never happen, but Future itself must not panic or
			// block if it does.
		}
	}
}

// Wait blocks until the result is available, storing it into *result and
// returning nil, or returns a WOULD_BLOCK *ntcerr.Error once timeout
// elapses with no value delivered. A non-positive timeout blocks
// indefinitely.
func (f *Future[T]) Wait(result *T, timeout time.Duration) error {
	if timeout <= 0 {
		*result = <-f.ch
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case v := <-f.ch:
		*result = v
		return nil
	case <-t.C:
		return ntcerr.New(ntcerr.WouldBlock, "future.wait", "")
	}
}
