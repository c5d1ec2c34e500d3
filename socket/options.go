package socket

import (
	"time"

	"github.com/bloomberg/ntf-core-sub027/callback"
)

// Options carries the per-operation option set spec.md §6 enumerates:
// deadline, cancellation token, recurse, watermark, size hints, zero-copy,
// and timestamping.
//
// Grounded on eventloop/options.go's functional-options pattern, adapted
// from loop-construction options to per-operation options since spec.md's
// options are attached to individual send/receive/connect/accept calls
// rather than to construction.
type Options struct {
	// Deadline, if non-zero, bounds how long a Stream.Connect may remain
	// pending before completing with a WOULD_BLOCK_CONNECT error. Send and
	// Receive arm no timer for it.
	Deadline time.Time
	// Token, if non-nil, allows the caller to cancel the operation before
	// it completes.
	Token *callback.Cancellation
	// Recurse is carried with the operation but not consulted: completions
	// run synchronously when the completing goroutine is already draining
	// the socket's strand, and are posted to the strand otherwise.
	Recurse bool
	// LowWatermark/HighWatermark are carried with the operation but not
	// consulted; a Stream's queue watermarks are set with SetWatermarks.
	LowWatermark  int
	HighWatermark int
	// MinSize/MaxSize are carried with the operation but not consulted;
	// Stream.Receive and Datagram.Receive take their size bounds as
	// explicit arguments.
	MinSize int
	MaxSize int
	// ZeroCopy requests zero-copy send semantics; no socket in this
	// package acts on it.
	ZeroCopy bool
	// Timestamping requests timestamps on the operation's completion; no
	// socket in this package acts on it.
	Timestamping bool
}

// Option mutates an Options value; functional-options constructor for
// callers that prefer that style over a struct literal.
type Option func(*Options)

// Resolve applies opts in order over a zero Options value.
func Resolve(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithDeadline(d time.Time) Option { return func(o *Options) { o.Deadline = d } }
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Deadline = time.Now().Add(d) }
}
func WithToken(t *callback.Cancellation) Option { return func(o *Options) { o.Token = t } }
func WithRecurse(recurse bool) Option           { return func(o *Options) { o.Recurse = recurse } }
func WithWatermarks(low, high int) Option {
	return func(o *Options) { o.LowWatermark, o.HighWatermark = low, high }
}
func WithSizeHints(minSize, maxSize int) Option {
	return func(o *Options) { o.MinSize, o.MaxSize = minSize, maxSize }
}
func WithZeroCopy() Option      { return func(o *Options) { o.ZeroCopy = true } }
func WithTimestamping() Option  { return func(o *Options) { o.Timestamping = true } }
