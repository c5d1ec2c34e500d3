package socket

import (
	"sync"

	"github.com/bloomberg/ntf-core-sub027/callback"
	"github.com/bloomberg/ntf-core-sub027/engine"
	"github.com/bloomberg/ntf-core-sub027/internal/faststate"
	"github.com/bloomberg/ntf-core-sub027/internal/ioctl"
	"github.com/bloomberg/ntf-core-sub027/internal/reservation"
	"github.com/bloomberg/ntf-core-sub027/strand"
	"github.com/bloomberg/ntf-core-sub027/tlsio"
)

// Open state lifecycle, spec.md §3: "default -open()-> waiting
// -bind()/connect()-> connecting -readiness-> connected -shutdown/close->
// closed". closed is terminal; a closed socket never re-enters any
// earlier state.
const (
	StateDefault uint32 = iota
	StateWaiting
	StateConnecting
	StateConnected
	StateClosed
)

// Detach state, spec.md §5's detach protocol: idle -> initiated ->
// scheduled, coordinating orderly removal from the engine while
// operations may still be in flight.
const (
	DetachIdle uint32 = iota
	DetachInitiated
	DetachScheduled
)

// FlowControl is the (enableSend, enableReceive) pair from spec.md §3,
// orthogonal to shutdown.
type FlowControl struct {
	mu            sync.Mutex
	sendEnabled   bool
	receiveEnabled bool
}

func newFlowControl() *FlowControl {
	return &FlowControl{sendEnabled: true, receiveEnabled: true}
}

func (f *FlowControl) Get() (send, receive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendEnabled, f.receiveEnabled
}

func (f *FlowControl) Set(send, receive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendEnabled, f.receiveEnabled = send, receive
}

// base is the shared state every socket object in this package carries:
// handle, transport and endpoints, open/detach state, flow control,
// strand, handle reservation and the optional encryption session. Queues
// live on each socket kind, interest state is kept by the engine, and no
// compression codec is carried.
type base struct {
	eng       engine.Engine
	handle    engine.Handle
	transport Transport
	local     Endpoint
	remote    Endpoint

	open   *faststate.State
	detach *faststate.State

	flow *FlowControl

	str *strand.Strand

	reservation *reservation.Counter
	reserved    bool

	mu          sync.Mutex
	timers      []uint64
	tlsSession  tlsio.Session
	closeCB     func()
}

func newBase(eng engine.Engine, transport Transport, str *strand.Strand, res *reservation.Counter) *base {
	if str == nil {
		str = eng.Strand()
	}
	return &base{
		eng:         eng,
		transport:   transport,
		open:        faststate.New(StateDefault),
		detach:      faststate.New(DetachIdle),
		flow:        newFlowControl(),
		str:         str,
		reservation: res,
	}
}

// acquireHandle allocates fd via sock, reserving a unit from the shared
// counter first; spec.md §4.5.1's open(): "allocate handle; move to
// waiting. If no handle can be acquired, fail with LIMIT or the system
// error."
func (b *base) acquireHandle(sock func() (int, error)) error {
	if b.reservation != nil {
		if !b.reservation.Acquire() {
			return errLimit("open")
		}
		b.reserved = true
	}
	fd, err := sock()
	if err != nil {
		if b.reserved {
			b.reservation.Release()
			b.reserved = false
		}
		return err
	}
	b.handle = engine.Handle(fd)
	if !b.open.TryTransition(StateDefault, StateWaiting) {
		return errInvalid("open")
	}
	return b.eng.Attach(b.handle)
}

// releaseHandle detaches and closes the handle exactly once, releasing
// any reservation.
func (b *base) releaseHandle() {
	if b.open.Load() == StateClosed {
		return
	}
	b.open.Store(StateClosed)
	_ = b.eng.Detach(b.handle)
	_ = ioctl.Close(int(b.handle))
	if b.reserved {
		b.reservation.Release()
		b.reserved = false
	}
}

// beginDetach marks the socket detach-initiated exactly once, per
// spec.md §5's detach protocol step (1).
func (b *base) beginDetach() bool {
	return b.detach.TryTransition(DetachIdle, DetachInitiated)
}

func (b *base) scheduleDetach() bool {
	return b.detach.TryTransition(DetachInitiated, DetachScheduled)
}

func (b *base) newCancellation(existing *callback.Cancellation) *callback.Cancellation {
	if existing != nil {
		return existing
	}
	return callback.Uncancelable
}
