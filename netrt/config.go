// Package netrt implements the Interface façade from spec.md's "Interface
// (thread pool + engines)" component: binding worker threads to engines,
// creating sockets, timers, and a shared resolver over them.
//
// Grounded on the teacher's functional-options configuration
// (eventloop/options.go's LoopOption/resolveLoopOptions) combined with the
// pack's bassosimone/nop Config/NewConfig defaulting pattern
// (nop's config.go), adapted from a single-Loop options bag to a
// multi-engine thread-pool configuration.
package netrt

import (
	"github.com/bloomberg/ntf-core-sub027/resolver"
)

// config holds the resolved settings an Interface is built from.
type config struct {
	threads        int
	handleCeiling  uint64
	acceptCeiling  uint64
	resolverOpts   []resolver.Option
}

// Option configures an Interface at construction, following the teacher's
// LoopOption/resolveLoopOptions functional-options discipline.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(c *config) error { return f(c) }

// WithThreads sets the number of worker threads, each driving its own
// engine; sockets and timers are distributed round-robin across them.
// n <= 0 is treated as 1.
func WithThreads(n int) Option {
	return optionFunc(func(c *config) error {
		if n <= 0 {
			n = 1
		}
		c.threads = n
		return nil
	})
}

// WithHandleCeiling bounds the total number of live socket handles across
// the Interface via the spec's Reservation primitive. A ceiling of 0 means
// unbounded.
func WithHandleCeiling(n uint64) Option {
	return optionFunc(func(c *config) error {
		c.handleCeiling = n
		return nil
	})
}

// WithAcceptCeiling bounds the number of live accepted Streams across the
// Listeners created by this Interface; each accepted Stream holds one unit
// until it is closed.
func WithAcceptCeiling(n uint64) Option {
	return optionFunc(func(c *config) error {
		c.acceptCeiling = n
		return nil
	})
}

// WithResolverOptions forwards options to the shared resolver.Resolver this
// Interface constructs.
func WithResolverOptions(opts ...resolver.Option) Option {
	return optionFunc(func(c *config) error {
		c.resolverOpts = append(c.resolverOpts, opts...)
		return nil
	})
}

// resolveConfig applies opts over sensible defaults, matching
// resolveLoopOptions's "skip nil options gracefully" behavior.
func resolveConfig(opts []Option) (*config, error) {
	c := &config{threads: 1}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}
