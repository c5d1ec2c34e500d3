package socket

import (
	"time"

	"github.com/bloomberg/ntf-core-sub027/callback"
	"github.com/bloomberg/ntf-core-sub027/chronology"
	"github.com/bloomberg/ntf-core-sub027/engine"
	"github.com/bloomberg/ntf-core-sub027/internal/ioctl"
	"github.com/bloomberg/ntf-core-sub027/internal/reservation"
	"github.com/bloomberg/ntf-core-sub027/ntcerr"
	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Stream is the connection-oriented socket state machine from spec.md
// §4.5.1: open/bind/connect/send/receive/shutdown/close over a send queue,
// a receive queue, and the shared open/detach state machine in base.
type Stream struct {
	*base

	sendQ *sendQueue
	recvQ *receiveQueue

	sendWatermark func(WatermarkEvent)
	recvWatermark func(WatermarkEvent)

	readClosed  bool
	writeClosed bool

	tlsSendBusy bool
	tlsRecvBusy bool
}

// NewStream creates an unopened Stream bound to eng. str, if non-nil,
// overrides the engine's own strand as this socket's callback-serialization
// strand. res, if non-nil, is consulted by Open to bound live handle
// count.
func NewStream(eng engine.Engine, str *strand.Strand, res *reservation.Counter) *Stream {
	return &Stream{
		base:  newBase(eng, TransportTCP4, str, res),
		sendQ: newSendQueue(0, 1<<20),
		recvQ: newReceiveQueue(0, 1<<20),
	}
}

// SetWatermarks overrides the send/receive queue watermarks from their
// defaults.
func (s *Stream) SetWatermarks(sendLow, sendHigh, recvLow, recvHigh int) {
	s.sendQ.wm = newWatermarks(sendLow, sendHigh)
	s.recvQ.wm = newWatermarks(recvLow, recvHigh)
}

// SetSendWatermarkHandler installs the callback invoked on send-queue
// watermark crossings.
func (s *Stream) SetSendWatermarkHandler(h func(WatermarkEvent)) { s.sendWatermark = h }

// SetReceiveWatermarkHandler installs the callback invoked on
// receive-queue watermark crossings.
func (s *Stream) SetReceiveWatermarkHandler(h func(WatermarkEvent)) { s.recvWatermark = h }

// Open allocates a handle for transport and moves the socket to waiting,
// spec.md §4.5.1.
func (s *Stream) Open(transport Transport, opts Options) error {
	s.transport = transport
	return s.acquireHandle(func() (int, error) {
		domain, typ, proto := domainTypeProto(transport)
		return ioctl.Socket(domain, typ, proto)
	})
}

// Bind binds the socket's handle to ep while in waiting.
func (s *Stream) Bind(ep Endpoint, opts Options) error {
	if s.open.Load() != StateWaiting {
		return errInvalid("bind")
	}
	if err := ioctl.Bind(int(s.handle), ep.toIoctl()); err != nil {
		return ntcerr.Wrap(ntcerr.Classify(err), "bind", ep.String(), err)
	}
	s.local = ep
	return nil
}

// Connect begins an asynchronous connect to ep, completing cb on the
// socket's strand once writable (success, per spec.md §4.5.1) or on
// error/timeout/cancellation.
func (s *Stream) Connect(ep Endpoint, opts Options, cb func(ConnectEvent)) {
	if !s.open.TryTransition(StateWaiting, StateConnecting) {
		s.dispatchConnect(cb, ConnectEvent{Type: Error, Err: errInvalid("connect")})
		return
	}
	s.remote = ep

	err := ioctl.Connect(int(s.handle), ep.toIoctl())
	if err != nil && ntcerr.Classify(err) != ntcerr.WouldBlock {
		s.open.Store(StateWaiting)
		s.dispatchConnect(cb, ConnectEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(err), "connect", ep.String(), err)})
		return
	}

	var timerID uint64
	var hasTimer bool
	if !opts.Deadline.IsZero() {
		timerID = s.eng.AddTimer(opts.Deadline, 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
			if class != chronology.Fired {
				return
			}
			s.str.Execute(func() {
				if s.open.TryTransition(StateConnecting, StateWaiting) {
					_ = s.eng.Hide(s.handle, engine.InterestWritable)
					s.dispatchConnect(cb, ConnectEvent{Type: Error, Err: errWouldBlockConn("connect")})
				}
			})
		}, s.str)
		hasTimer = true
	}

	_ = s.eng.Show(s.handle, engine.InterestWritable, func(ev engine.Events) {
		if hasTimer {
			s.eng.RemoveTimer(timerID)
		}
		if cancelEntry(opts.Token) {
			s.open.Store(StateWaiting)
			s.dispatchConnect(cb, ConnectEvent{Type: Canceled, Err: errCancelled("connect")})
			return
		}
		_ = s.eng.Hide(s.handle, engine.InterestWritable)
		if perr := ioctl.PendingError(int(s.handle)); perr != nil {
			s.open.Store(StateWaiting)
			s.dispatchConnect(cb, ConnectEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(perr), "connect", ep.String(), perr)})
			return
		}
		s.open.Store(StateConnected)
		s.dispatchConnect(cb, ConnectEvent{Type: Complete})
	})
}

func (s *Stream) dispatchConnect(cb func(ConnectEvent), ev ConnectEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: s.str}.Dispatch(s.str, false)
}

// Send enqueues data for transmission, attempting an immediate drain.
// cb completes once data (or, for a partial acceptance, its tail) has
// been fully written, or with an error if a write fails, per spec.md
// §4.5.1. Send arms no deadline timer, and opts.Token is checked only on
// an upgraded stream.
func (s *Stream) Send(data []byte, opts Options, cb func(SendEvent)) {
	if s.writeClosed {
		s.dispatchSend(cb, SendEvent{Type: Error, Err: errConnectionDead("send")})
		return
	}
	send, _ := s.flow.Get()
	entry := &sendEntry{data: data, total: len(data), opts: opts, cb: cb}
	wmEvent := s.sendQ.push(entry)
	s.reportSendWatermark(wmEvent)
	if send {
		s.attemptDrainSend()
	}
}

func (s *Stream) dispatchSend(cb func(SendEvent), ev SendEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: s.str}.Dispatch(s.str, false)
}

func (s *Stream) reportSendWatermark(ev *WatermarkEvent) {
	if ev != nil && s.sendWatermark != nil {
		s.sendWatermark(*ev)
	}
}

func (s *Stream) reportRecvWatermark(ev *WatermarkEvent) {
	if ev != nil && s.recvWatermark != nil {
		s.recvWatermark(*ev)
	}
}

// attemptDrainSend drains the send queue until WOULD_BLOCK or empty, then
// arms or disarms writable interest to match whether more data remains.
// Once the stream has been upgraded, draining happens off-strand instead;
// see attemptDrainSendTLS.
func (s *Stream) attemptDrainSend() {
	if s.tlsSession != nil {
		s.attemptDrainSendTLS()
		return
	}
	completed, wmEvent, err := s.sendQ.drain(func(b []byte) (int, error) {
		n, werr := ioctl.Writev(int(s.handle), [][]byte{b})
		if werr != nil {
			if ntcerr.Classify(werr) == ntcerr.WouldBlock {
				return n, nil
			}
			return n, werr
		}
		return n, nil
	})
	s.reportSendWatermark(wmEvent)

	for _, e := range completed {
		s.dispatchSend(e.cb, SendEvent{Type: Complete, BytesWritten: e.total})
	}

	if err != nil {
		s.writeClosed = true
		failed := s.sendQ.drainAllWithError()
		for _, e := range failed {
			s.dispatchSend(e.cb, SendEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(err), "send", "", err)})
		}
		_ = s.eng.Hide(s.handle, engine.InterestWritable)
		return
	}

	if s.sendQ.Len() > 0 {
		_ = s.eng.Show(s.handle, engine.InterestWritable, func(engine.Events) { s.attemptDrainSend() })
	} else {
		_ = s.eng.Hide(s.handle, engine.InterestWritable)
	}
}

// Receive requests minSize..maxSize bytes, completing cb immediately if
// already available, or after arming readable interest, per spec.md
// §4.5.1.
func (s *Stream) Receive(minSize, maxSize int, opts Options, cb func(ReceiveEvent)) {
	if s.readClosed {
		s.dispatchReceive(cb, ReceiveEvent{Type: Error, Err: errConnectionDead("receive")})
		return
	}
	_, receive := s.flow.Get()
	entry := &receiveEntry{minSize: minSize, maxSize: maxSize, opts: opts, cb: cb}
	wmEvent := s.recvQ.push(entry)
	s.reportRecvWatermark(wmEvent)
	if receive {
		s.attemptDrainReceive()
	}
}

func (s *Stream) dispatchReceive(cb func(ReceiveEvent), ev ReceiveEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: s.str}.Dispatch(s.str, false)
}

// attemptDrainReceive tries to satisfy the head of the receive queue from
// the socket, arming or disarming readable interest to match. Once the
// stream has been upgraded, draining happens off-strand instead; see
// attemptDrainReceiveTLS.
func (s *Stream) attemptDrainReceive() {
	if s.tlsSession != nil {
		s.attemptDrainReceiveTLS()
		return
	}
	for {
		entry, ok := s.recvQ.peek()
		if !ok {
			_ = s.eng.Hide(s.handle, engine.InterestReadable)
			return
		}
		if cancelEntry(entry.opts.Token) {
			s.recvQ.pop()
			s.dispatchReceive(entry.cb, ReceiveEvent{Type: Canceled, Err: errCancelled("receive")})
			continue
		}

		buf := make([]byte, entry.maxSize-len(entry.pending))
		n, err := ioctl.Readv(int(s.handle), [][]byte{buf})
		if err != nil {
			if ntcerr.Classify(err) == ntcerr.WouldBlock {
				_ = s.eng.Show(s.handle, engine.InterestReadable, func(engine.Events) { s.attemptDrainReceive() })
				return
			}
			s.recvQ.pop()
			s.readClosed = true
			s.dispatchReceive(entry.cb, ReceiveEvent{Type: Error, Data: entry.pending, Err: ntcerr.Wrap(ntcerr.Classify(err), "receive", "", err)})
			continue
		}
		if n == 0 {
			s.recvQ.pop()
			s.readClosed = true
			s.dispatchReceive(entry.cb, ReceiveEvent{Type: Complete, Data: entry.pending, Err: errEOF("receive")})
			continue
		}
		entry.pending = append(entry.pending, buf[:n]...)
		if len(entry.pending) < entry.minSize {
			// Not enough yet; the accumulated bytes stay on entry.pending
			// and the next readable event reads into the remainder of
			// maxSize, appending rather than discarding what's already
			// been consumed from the kernel's receive queue.
			_ = s.eng.Show(s.handle, engine.InterestReadable, func(engine.Events) { s.attemptDrainReceive() })
			return
		}
		wmEvent, _ := s.recvQ.pop()
		s.reportRecvWatermark(wmEvent)
		s.dispatchReceive(entry.cb, ReceiveEvent{Type: Complete, Data: entry.pending, Timestamp: time.Now()})
	}
}

// Shutdown closes direction per mode, spec.md §4.5.1. Immediate mode fails
// pending operations with CONNECTION_DEAD; graceful mode drains the send
// queue before calling the OS shutdown.
func (s *Stream) Shutdown(direction int, graceful bool) ShutdownEvent {
	if direction == ioctl.ShutWrite || direction == ioctl.ShutReadWrite {
		if graceful && s.sendQ.Len() > 0 {
			s.attemptDrainSend()
		}
		_ = ioctl.Shutdown(int(s.handle), ioctl.ShutWrite)
		s.writeClosed = true
		if !graceful {
			failed := s.sendQ.drainAllWithError()
			for _, e := range failed {
				s.dispatchSend(e.cb, SendEvent{Type: Error, Err: errConnectionDead("send")})
			}
		}
	}
	if direction == ioctl.ShutRead || direction == ioctl.ShutReadWrite {
		_ = ioctl.Shutdown(int(s.handle), ioctl.ShutRead)
		s.readClosed = true
		failed := s.recvQ.drainAll()
		for _, e := range failed {
			s.dispatchReceive(e.cb, ReceiveEvent{Type: Error, Err: errConnectionDead("receive")})
		}
	}
	return ShutdownEvent{Origin: ShutdownLocal, ReadClosed: s.readClosed, WriteClosed: s.writeClosed}
}

// Close begins detach, cancels all pending operations with CANCELED,
// releases resources, then invokes cb. Close is idempotent, spec.md
// §4.5.1.
func (s *Stream) Close(cb func()) {
	if !s.beginDetach() {
		if cb != nil {
			cb()
		}
		return
	}
	for _, e := range s.sendQ.drainAllWithError() {
		s.dispatchSend(e.cb, SendEvent{Type: Canceled, Err: errCancelled("close")})
	}
	for _, e := range s.recvQ.drainAll() {
		s.dispatchReceive(e.cb, ReceiveEvent{Type: Canceled, Err: errCancelled("close")})
	}
	s.scheduleDetach()
	s.releaseHandle()
	if cb != nil {
		callback.Callback{Fn: cb, Strand: s.str}.Dispatch(s.str, false)
	}
}

// LocalEndpoint returns the endpoint this socket is bound to.
func (s *Stream) LocalEndpoint() Endpoint { return s.local }

// RemoteEndpoint returns the endpoint this socket is connected to.
func (s *Stream) RemoteEndpoint() Endpoint { return s.remote }

// Handle returns the socket's engine handle.
func (s *Stream) Handle() engine.Handle { return s.handle }
