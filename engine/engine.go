// Package engine implements the reactor/proactor abstraction from spec.md
// §4.1: two engine shapes (readiness-based reactors and completion-based
// proactors) sharing one external contract — Attach/Detach, Show/Hide,
// AddTimer/RemoveTimer, Execute, Run, Interrupt.
//
// Grounded on the teacher's eventloop.Loop (eventloop/loop.go) run-loop
// shape and its per-platform poller files (poller_linux.go, poller_darwin.go,
// poller_windows.go), generalized from a single hardwired JS-runtime event
// loop into the pluggable-backend Engine interface spec.md asks for.
package engine

import (
	"time"

	"github.com/bloomberg/ntf-core-sub027/chronology"
	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Interest is the bitset of {readable, writable, edge, one-shot,
// notifications} spec.md §3 assigns to each monitored Handle.
type Interest uint32

const (
	// InterestReadable requests readiness/completion notification for reads.
	InterestReadable Interest = 1 << iota
	// InterestWritable requests readiness/completion notification for writes.
	InterestWritable
	// InterestError requests notification of error conditions.
	InterestError
	// InterestEdge requests edge-triggered (as opposed to level-triggered)
	// delivery; ignored by back ends that only support level triggering.
	InterestEdge
	// InterestOneShot automatically disables interest after one delivery;
	// the caller must re-arm via Show to receive further events.
	InterestOneShot
	// InterestNotifications requests delivery of out-of-band notification
	// queue events (e.g. the socket error queue carrying zero-copy
	// completions or hardware timestamps).
	InterestNotifications
)

// Events describes what fired for one delivery.
type Events struct {
	Readable      bool
	Writable      bool
	Error         bool
	Hangup        bool
	Notifications bool
}

// Callback is invoked by the engine when a registered handle's interest is
// satisfied.
type Callback func(Events)

// Handle is the OS descriptor identifying a registered resource to the
// engine. It is opaque and unique while attached, per spec.md §3.
type Handle int

// Engine is the shared contract for reactor and proactor back ends,
// spec.md §4.1.
type Engine interface {
	// Attach registers handle with the engine with no active interest.
	Attach(h Handle) error
	// Detach removes handle from the engine. Safe to call on an
	// already-detached handle.
	Detach(h Handle) error
	// Show enables interest for the given mask, installing cb to run on
	// delivery. For proactors, Show initiates the operation the interest
	// mask names (e.g. InterestReadable issues a read) rather than merely
	// arming for readiness.
	Show(h Handle, interest Interest, cb Callback) error
	// Hide disables interest for the given mask.
	Hide(h Handle, interest Interest) error
	// AddTimer schedules a timer on this engine's Wheel; see chronology.Wheel.Add.
	AddTimer(deadline time.Time, period time.Duration, cb chronology.Callback, s *strand.Strand) uint64
	// RemoveTimer cancels a timer previously added via AddTimer.
	RemoveTimer(id uint64) bool
	// Execute defers fn onto the engine's own strand.
	Execute(fn func())
	// Run blocks, harvesting events and firing timers, until stop() returns
	// true or the engine is closed. stop is checked once per loop
	// iteration, so Interrupt is what wakes a blocked Run to re-check it.
	Run(stop func() bool) error
	// Interrupt wakes any thread currently blocked in Run.
	Interrupt() error
	// Strand returns the engine's own execution strand (used as the
	// default strand for sockets that don't specify their own).
	Strand() *strand.Strand
	// Close releases the engine's polling device and wakeup primitive.
	// Run must not be called again afterward.
	Close() error
}
