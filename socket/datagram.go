package socket

import (
	"time"

	"github.com/bloomberg/ntf-core-sub027/callback"
	"github.com/bloomberg/ntf-core-sub027/engine"
	"github.com/bloomberg/ntf-core-sub027/internal/ioctl"
	"github.com/bloomberg/ntf-core-sub027/internal/reservation"
	"github.com/bloomberg/ntf-core-sub027/ntcerr"
	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Datagram is the connectionless socket state machine from spec.md
// §4.5.3: each Send/Receive operates on one whole datagram, with no byte
// assembly across boundaries the way Stream's queues reassemble a byte
// stream.
type Datagram struct {
	*base

	sendQ *sendQueue
	recvQ *receiveQueue
}

// NewDatagram creates an unopened Datagram bound to eng.
func NewDatagram(eng engine.Engine, str *strand.Strand, res *reservation.Counter) *Datagram {
	return &Datagram{
		base:  newBase(eng, TransportUDP4, str, res),
		sendQ: newSendQueue(0, 1<<20),
		recvQ: newReceiveQueue(0, 1<<20),
	}
}

// Open allocates a handle for transport, spec.md §4.5.3.
func (d *Datagram) Open(transport Transport, opts Options) error {
	d.transport = transport
	return d.acquireHandle(func() (int, error) {
		domain, typ, proto := domainTypeProto(transport)
		return ioctl.Socket(domain, typ, proto)
	})
}

// Bind binds the handle to ep.
func (d *Datagram) Bind(ep Endpoint, opts Options) error {
	if d.open.Load() != StateWaiting {
		return errInvalid("bind")
	}
	if err := ioctl.Bind(int(d.handle), ep.toIoctl()); err != nil {
		return ntcerr.Wrap(ntcerr.Classify(err), "bind", ep.String(), err)
	}
	d.local = ep
	d.open.Store(StateConnected)
	return nil
}

// Connect restricts the datagram socket to a single default peer. Unlike
// Stream.Connect this completes synchronously: connect(2) on a
// connectionless socket only records the peer address, it does not
// perform a handshake. opts is accepted alongside Open and Bind's and is
// not consulted.
func (d *Datagram) Connect(ep Endpoint, opts Options) error {
	if err := ioctl.Connect(int(d.handle), ep.toIoctl()); err != nil {
		return ntcerr.Wrap(ntcerr.Classify(err), "connect", ep.String(), err)
	}
	d.remote = ep
	d.open.Store(StateConnected)
	return nil
}

// Send transmits one whole datagram to the peer set by Connect; dest is
// used only to label errors, and a socket that was never connected has no
// peer to send to. Unlike
// Stream.Send, a datagram is never split across Send calls: partial
// acceptance by the OS is impossible for UDP, so any failure is reported
// whole, per spec.md §4.5.3.
func (d *Datagram) Send(dest Endpoint, data []byte, opts Options, cb func(SendEvent)) {
	entry := &sendEntry{data: data, total: len(data), opts: opts, cb: cb}
	d.sendQ.push(entry)
	d.attemptDrainSend(dest)
}

func (d *Datagram) dispatchSend(cb func(SendEvent), ev SendEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: d.str}.Dispatch(d.str, false)
}

func (d *Datagram) attemptDrainSend(dest Endpoint) {
	// ioctl has no sendto(2) primitive, only the connected-socket
	// Writev/Readv pair; an unconnected dest therefore requires the
	// caller to have called Connect first, matching the restriction
	// spec.md §4.5.3 places on single-peer datagram sockets.
	completed, _, err := d.sendQ.drain(func(b []byte) (int, error) {
		n, werr := ioctl.Writev(int(d.handle), [][]byte{b})
		if werr != nil {
			if ntcerr.Classify(werr) == ntcerr.WouldBlock {
				return 0, nil
			}
			return n, werr
		}
		return len(b), nil
	})
	for _, e := range completed {
		d.dispatchSend(e.cb, SendEvent{Type: Complete, BytesWritten: e.total})
	}
	if err != nil {
		failed := d.sendQ.drainAllWithError()
		for _, e := range failed {
			d.dispatchSend(e.cb, SendEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(err), "send", dest.String(), err)})
		}
		return
	}
	if d.sendQ.Len() > 0 {
		_ = d.eng.Show(d.handle, engine.InterestWritable, func(engine.Events) { d.attemptDrainSend(dest) })
	} else {
		_ = d.eng.Hide(d.handle, engine.InterestWritable)
	}
}

// Receive completes cb with the next whole datagram and its source
// endpoint, spec.md §4.5.3. maxSize bounds the read buffer; datagrams
// larger than maxSize are truncated by the OS, matching recvfrom(2)
// semantics rather than Stream's minSize/maxSize accumulation.
func (d *Datagram) Receive(maxSize int, opts Options, cb func(ReceiveEvent)) {
	entry := &receiveEntry{minSize: 0, maxSize: maxSize, opts: opts, cb: cb}
	d.recvQ.push(entry)
	d.attemptDrainReceive()
}

func (d *Datagram) dispatchReceive(cb func(ReceiveEvent), ev ReceiveEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: d.str}.Dispatch(d.str, false)
}

func (d *Datagram) attemptDrainReceive() {
	for {
		entry, ok := d.recvQ.peek()
		if !ok {
			_ = d.eng.Hide(d.handle, engine.InterestReadable)
			return
		}
		if cancelEntry(entry.opts.Token) {
			d.recvQ.pop()
			d.dispatchReceive(entry.cb, ReceiveEvent{Type: Canceled, Err: errCancelled("receive")})
			continue
		}

		buf := make([]byte, entry.maxSize)
		n, source, err := ioctl.RecvFrom(int(d.handle), buf)
		if err != nil {
			if ntcerr.Classify(err) == ntcerr.WouldBlock {
				_ = d.eng.Show(d.handle, engine.InterestReadable, func(engine.Events) { d.attemptDrainReceive() })
				return
			}
			d.recvQ.pop()
			d.dispatchReceive(entry.cb, ReceiveEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(err), "receive", "", err)})
			continue
		}
		d.recvQ.pop()
		d.dispatchReceive(entry.cb, ReceiveEvent{
			Type:      Complete,
			Data:      buf[:n],
			Source:    fromIoctl(source),
			Timestamp: time.Now(),
		})
	}
}

// Close releases the handle, canceling any pending operations, spec.md
// §4.5.3/§5.
func (d *Datagram) Close(cb func()) {
	if !d.beginDetach() {
		if cb != nil {
			cb()
		}
		return
	}
	for _, e := range d.sendQ.drainAllWithError() {
		d.dispatchSend(e.cb, SendEvent{Type: Canceled, Err: errCancelled("close")})
	}
	for _, e := range d.recvQ.drainAll() {
		d.dispatchReceive(e.cb, ReceiveEvent{Type: Canceled, Err: errCancelled("close")})
	}
	d.scheduleDetach()
	d.releaseHandle()
	if cb != nil {
		callback.Callback{Fn: cb, Strand: d.str}.Dispatch(d.str, false)
	}
}

// LocalEndpoint returns the endpoint this socket is bound to.
func (d *Datagram) LocalEndpoint() Endpoint { return d.local }

// Handle returns the socket's engine handle.
func (d *Datagram) Handle() engine.Handle { return d.handle }
