package socket

import (
	"github.com/bloomberg/ntf-core-sub027/callback"
	"github.com/bloomberg/ntf-core-sub027/engine"
	"github.com/bloomberg/ntf-core-sub027/internal/ioctl"
	"github.com/bloomberg/ntf-core-sub027/internal/reservation"
	"github.com/bloomberg/ntf-core-sub027/ntcerr"
	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Listener is the accepting-socket state machine from spec.md §4.5.2:
// open/bind/listen, then accept() calls queued against incoming
// connections via acceptQueue.
type Listener struct {
	*base

	acceptQ  *acceptQueue
	backlog  int
	acceptRes *reservation.Counter
}

// NewListener creates an unopened Listener bound to eng. acceptRes, if
// non-nil, bounds the number of live accepted Streams the same way res
// bounds the listener's own handle in base.
func NewListener(eng engine.Engine, str *strand.Strand, res, acceptRes *reservation.Counter) *Listener {
	return &Listener{
		base:      newBase(eng, TransportTCP4, str, res),
		acceptQ:   newAcceptQueue(),
		acceptRes: acceptRes,
	}
}

// Open allocates a handle for transport, spec.md §4.5.2.
func (l *Listener) Open(transport Transport, opts Options) error {
	l.transport = transport
	return l.acquireHandle(func() (int, error) {
		domain, typ, proto := domainTypeProto(transport)
		return ioctl.Socket(domain, typ, proto)
	})
}

// Bind binds the listening handle to ep.
func (l *Listener) Bind(ep Endpoint, opts Options) error {
	if l.open.Load() != StateWaiting {
		return errInvalid("bind")
	}
	if err := ioctl.Bind(int(l.handle), ep.toIoctl()); err != nil {
		return ntcerr.Wrap(ntcerr.Classify(err), "bind", ep.String(), err)
	}
	l.local = ep
	return nil
}

// Listen marks the handle as accepting connections with the given
// backlog and arms readable interest to drive incoming-connection
// acceptance, spec.md §4.5.2.
func (l *Listener) Listen(backlog int) error {
	if err := ioctl.Listen(int(l.handle), backlog); err != nil {
		return ntcerr.Wrap(ntcerr.Classify(err), "listen", l.local.String(), err)
	}
	l.backlog = backlog
	l.open.Store(StateConnected)
	return l.eng.Show(l.handle, engine.InterestReadable, func(engine.Events) { l.acceptReady() })
}

// acceptReady drains as many pending OS-level connections as are ready,
// matching each against a pending accept() caller or queuing it.
func (l *Listener) acceptReady() {
	for {
		if l.acceptRes != nil && !l.acceptRes.Acquire() {
			// At the handle-table ceiling: invoke the limit hook by
			// completing every caller already waiting on Accept with
			// LIMIT, per spec.md §4.5.2, rather than leaving them blocked
			// indefinitely. The not-yet-accept(2)'d connection itself
			// stays in the OS backlog; the listener's readable interest
			// is level-triggered, so the next poll cycle retries once a
			// Stream Close releases a unit.
			for _, entry := range l.acceptQ.drainPending() {
				l.dispatchAccept(entry.cb, AcceptEvent{Type: Error, Err: errLimit("accept")})
			}
			return
		}
		fd, remote, err := ioctl.Accept(int(l.handle))
		if err != nil {
			if l.acceptRes != nil {
				l.acceptRes.Release()
			}
			if ntcerr.Classify(err) == ntcerr.WouldBlock {
				return
			}
			return
		}

		child := &Stream{
			base:  newBase(l.eng, l.transport, l.str, l.acceptRes),
			sendQ: newSendQueue(0, 1<<20),
			recvQ: newReceiveQueue(0, 1<<20),
		}
		child.handle = engine.Handle(fd)
		child.remote = remote
		child.reserved = l.acceptRes != nil
		child.open.Store(StateConnected)
		if err := l.eng.Attach(child.handle); err != nil {
			_ = ioctl.Close(fd)
			if l.acceptRes != nil {
				l.acceptRes.Release()
			}
			continue
		}

		entry := l.acceptQ.offer(child)
		if entry != nil {
			l.dispatchAccept(entry.cb, AcceptEvent{Type: Complete, Stream: child})
		}
	}
}

// Accept completes cb with the next incoming connection, immediately if
// one is already queued, spec.md §4.5.2.
func (l *Listener) Accept(opts Options, cb func(AcceptEvent)) {
	entry := &acceptEntry{opts: opts, cb: cb}
	if s := l.acceptQ.take(entry); s != nil {
		l.dispatchAccept(cb, AcceptEvent{Type: Complete, Stream: s})
	}
}

func (l *Listener) dispatchAccept(cb func(AcceptEvent), ev AcceptEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: l.str}.Dispatch(l.str, false)
}

// Close stops accepting, failing any callers still pending with CANCELED,
// spec.md §4.5.2/§5.
func (l *Listener) Close(cb func()) {
	if !l.beginDetach() {
		if cb != nil {
			cb()
		}
		return
	}
	for _, e := range l.acceptQ.drainPending() {
		l.dispatchAccept(e.cb, AcceptEvent{Type: Canceled, Err: errCancelled("close")})
	}
	l.scheduleDetach()
	l.releaseHandle()
	if cb != nil {
		callback.Callback{Fn: cb, Strand: l.str}.Dispatch(l.str, false)
	}
}

// LocalEndpoint returns the endpoint this listener is bound to.
func (l *Listener) LocalEndpoint() Endpoint { return l.local }

// Handle returns the listener's engine handle.
func (l *Listener) Handle() engine.Handle { return l.handle }
