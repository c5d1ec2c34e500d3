package callback

import "github.com/bloomberg/ntf-core-sub027/strand"

// Func is the single combined callback type this module exposes. spec.md
// §9's open question about "Function vs Callback back-compat variants" is
// resolved here by exposing exactly one signature; callers needing no
// arguments pass a func() that closes over whatever event payload it needs.
type Func func()

// Callback pairs an invocable with an optional strand and an optional
// cancellation token, matching spec.md §4.4's "Callback — an invocable + an
// optional strand + an optional cancellation token".
type Callback struct {
	Fn     Func
	Strand *strand.Strand // nil: no strand affinity requested by the callback itself
	Token  *Cancellation  // nil or Uncancelable: cannot be canceled by the initiator
}

// Dispatch computes the effective strand and invokes the callback per
// spec.md §4.4:
//
//	S = callback's strand, or if none, invokerStrand.
//	If defer is false and S.IsRunningInThisThread(), invoke synchronously.
//	Otherwise, post to S via S.Execute.
//
// If the cancellation token reports aborted, the callback is dropped
// without invocation. Dispatch returns whether the callback ran or was
// dropped for cancellation (true = ran or queued to run, false = dropped).
func (c Callback) Dispatch(invokerStrand *strand.Strand, deferExec bool) bool {
	if c.Token.Aborted() {
		return false
	}
	if c.Fn == nil {
		return false
	}

	s := c.Strand
	if s == nil {
		s = invokerStrand
	}

	if !deferExec && s != nil && s.IsRunningInThisThread() {
		c.Fn()
		return true
	}
	if s == nil {
		c.Fn()
		return true
	}
	s.Execute(c.Fn)
	return true
}
