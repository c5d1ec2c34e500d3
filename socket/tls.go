package socket

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/bloomberg/ntf-core-sub027/engine"
	"github.com/bloomberg/ntf-core-sub027/internal/ioctl"
	"github.com/bloomberg/ntf-core-sub027/ntcerr"
	"github.com/bloomberg/ntf-core-sub027/tlsio"
)

// Upgrade suspends data-plane Send/Receive draining and drives eng's
// handshake over the raw socket, spec.md §4.5.5: "Encryption upgrade and
// downgrade", interleaved with but distinct from ordinary data-plane I/O.
// server selects the session's role. The handshake itself runs off-strand,
// against a blocking net.Conn adapter over the (still non-blocking) file
// descriptor, since engine implementations such as crypto/tls drive a
// synchronous handshake loop; cb is dispatched back on the stream's strand
// once it completes or fails. Once upgraded, Send/Receive transparently
// route through the resulting tlsio.Session instead of the raw file
// descriptor.
func (s *Stream) Upgrade(ctx context.Context, eng tlsio.Engine, server bool, cb func(UpgradeEvent)) {
	if s.tlsSession != nil {
		s.dispatchUpgrade(cb, UpgradeEvent{Type: Error, Err: errInvalid("upgrade")})
		return
	}
	sendWasEnabled, recvWasEnabled := s.flow.Get()
	s.flow.Set(false, false)

	conn := &rawConn{s: s, ctx: ctx}
	var session tlsio.Session
	if server {
		session = eng.NewServerSession(conn)
	} else {
		session = eng.NewClientSession(conn)
	}

	go func() {
		err := session.Handshake(ctx)
		s.str.Execute(func() {
			if err != nil {
				s.flow.Set(sendWasEnabled, recvWasEnabled)
				s.dispatchUpgrade(cb, UpgradeEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(err), "upgrade", "", err)})
				return
			}
			s.tlsSession = session
			s.flow.Set(sendWasEnabled, recvWasEnabled)
			s.dispatchUpgrade(cb, UpgradeEvent{Type: Complete})
			if sendWasEnabled && s.sendQ.Len() > 0 {
				s.attemptDrainSend()
			}
			if recvWasEnabled && s.recvQ.Len() > 0 {
				s.attemptDrainReceive()
			}
		})
	}()
}

func (s *Stream) dispatchUpgrade(cb func(UpgradeEvent), ev UpgradeEvent) {
	if cb == nil {
		return
	}
	cb(ev)
}

// Downgrade sends a close-notify over the active session and reverts
// Send/Receive to the raw file descriptor, spec.md §4.5.5. If the stream
// was never upgraded, Downgrade changes nothing and only delivers cb a
// DowngradeEvent carrying the current read/write shutdown state.
func (s *Stream) Downgrade(cb func(DowngradeEvent)) {
	session := s.tlsSession
	if session == nil {
		s.dispatchDowngrade(cb, DowngradeEvent{ReadClosed: s.readClosed, WriteClosed: s.writeClosed})
		return
	}
	sendWasEnabled, recvWasEnabled := s.flow.Get()
	s.flow.Set(false, false)

	go func() {
		err := session.Close()
		s.str.Execute(func() {
			s.tlsSession = nil
			s.flow.Set(sendWasEnabled, recvWasEnabled)
			var wrapped *ntcerr.Error
			if err != nil {
				wrapped = ntcerr.Wrap(ntcerr.Classify(err), "downgrade", "", err)
			}
			s.dispatchDowngrade(cb, DowngradeEvent{ReadClosed: s.readClosed, WriteClosed: s.writeClosed, Err: wrapped})
			if sendWasEnabled && s.sendQ.Len() > 0 {
				s.attemptDrainSend()
			}
			if recvWasEnabled && s.recvQ.Len() > 0 {
				s.attemptDrainReceive()
			}
		})
	}()
}

func (s *Stream) dispatchDowngrade(cb func(DowngradeEvent), ev DowngradeEvent) {
	if cb == nil {
		return
	}
	cb(ev)
}

// attemptDrainSendTLS mirrors attemptDrainSend's loop, but the write of the
// head entry's bytes runs on a background goroutine (tlsSession.Write
// blocks), re-entering the strand via completeTLSSend once it returns so
// queue bookkeeping stays single-threaded.
func (s *Stream) attemptDrainSendTLS() {
	if s.tlsSendBusy {
		return
	}
	entry, ok := s.sendQ.peekHead()
	if !ok {
		return
	}
	if cancelEntry(entry.opts.Token) {
		for _, canceled := range s.sendQ.removeCanceled() {
			s.dispatchSend(canceled.cb, SendEvent{Type: Canceled, Err: errCancelled("send")})
		}
		s.attemptDrainSendTLS()
		return
	}
	s.tlsSendBusy = true
	data := entry.data
	session := s.tlsSession
	go func() {
		n, err := session.Write(data)
		s.str.Execute(func() {
			s.tlsSendBusy = false
			s.completeTLSSend(n, err)
		})
	}()
}

func (s *Stream) completeTLSSend(n int, err error) {
	if err != nil {
		s.writeClosed = true
		for _, e := range s.sendQ.drainAllWithError() {
			s.dispatchSend(e.cb, SendEvent{Type: Error, Err: ntcerr.Wrap(ntcerr.Classify(err), "send", "", err)})
		}
		return
	}
	completed, wmEvent := s.sendQ.advanceHead(n)
	s.reportSendWatermark(wmEvent)
	for _, e := range completed {
		s.dispatchSend(e.cb, SendEvent{Type: Complete, BytesWritten: e.total})
	}
	if s.sendQ.Len() > 0 {
		s.attemptDrainSendTLS()
	}
}

// attemptDrainReceiveTLS mirrors attemptDrainReceive, but the read backing
// the head entry runs on a background goroutine for the same reason
// attemptDrainSendTLS's write does.
func (s *Stream) attemptDrainReceiveTLS() {
	if s.tlsRecvBusy {
		return
	}
	entry, ok := s.recvQ.peek()
	if !ok {
		return
	}
	if cancelEntry(entry.opts.Token) {
		s.recvQ.pop()
		s.dispatchReceive(entry.cb, ReceiveEvent{Type: Canceled, Err: errCancelled("receive")})
		s.attemptDrainReceiveTLS()
		return
	}
	s.tlsRecvBusy = true
	buf := make([]byte, entry.maxSize-len(entry.pending))
	session := s.tlsSession
	go func() {
		n, err := session.Read(buf)
		s.str.Execute(func() {
			s.tlsRecvBusy = false
			s.completeTLSReceive(entry, buf, n, err)
		})
	}()
}

func (s *Stream) completeTLSReceive(entry *receiveEntry, buf []byte, n int, err error) {
	if err != nil {
		s.recvQ.pop()
		s.readClosed = true
		if err == io.EOF {
			s.dispatchReceive(entry.cb, ReceiveEvent{Type: Complete, Data: entry.pending, Err: errEOF("receive")})
		} else {
			s.dispatchReceive(entry.cb, ReceiveEvent{Type: Error, Data: entry.pending, Err: ntcerr.Wrap(ntcerr.Classify(err), "receive", "", err)})
		}
		s.attemptDrainReceiveTLS()
		return
	}
	entry.pending = append(entry.pending, buf[:n]...)
	if len(entry.pending) < entry.minSize {
		s.attemptDrainReceiveTLS()
		return
	}
	wmEvent, _ := s.recvQ.pop()
	s.reportRecvWatermark(wmEvent)
	s.dispatchReceive(entry.cb, ReceiveEvent{Type: Complete, Data: entry.pending, Timestamp: time.Now()})
	s.attemptDrainReceiveTLS()
}

// rawConn adapts a Stream's non-blocking, reactor-driven file descriptor to
// the blocking net.Conn shape a tlsio.Engine's handshake expects: Read and
// Write retry under engine-reported readiness rather than returning
// EWOULDBLOCK, parking the calling (handshake) goroutine, never the
// strand, until the fd is ready or ctx is done.
type rawConn struct {
	s   *Stream
	ctx context.Context
}

func (c *rawConn) Read(p []byte) (int, error) {
	for {
		n, err := ioctl.Readv(int(c.s.handle), [][]byte{p})
		if err == nil {
			if n == 0 && len(p) > 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		if ntcerr.Classify(err) != ntcerr.WouldBlock {
			return n, err
		}
		if werr := c.wait(engine.InterestReadable); werr != nil {
			return 0, werr
		}
	}
}

func (c *rawConn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := ioctl.Writev(int(c.s.handle), [][]byte{p[written:]})
		written += n
		if err != nil {
			if ntcerr.Classify(err) != ntcerr.WouldBlock {
				return written, err
			}
			if werr := c.wait(engine.InterestWritable); werr != nil {
				return written, werr
			}
			continue
		}
		if n == 0 {
			if werr := c.wait(engine.InterestWritable); werr != nil {
				return written, werr
			}
		}
	}
	return written, nil
}

func (c *rawConn) wait(interest engine.Interest) error {
	ready := make(chan struct{})
	if err := c.s.eng.Show(c.s.handle, interest, func(engine.Events) { close(ready) }); err != nil {
		return err
	}
	select {
	case <-ready:
		return nil
	case <-c.ctx.Done():
		_ = c.s.eng.Hide(c.s.handle, interest)
		return c.ctx.Err()
	}
}

// Close is a no-op: the raw file descriptor's lifetime is owned by Stream,
// not by the tlsio.Session layered over it. Calling Session.Close only
// sends a close-notify; it must never close the socket Downgrade still
// needs.
func (c *rawConn) Close() error { return nil }

func (c *rawConn) LocalAddr() net.Addr  { return endpointAddr{c.s.transport, c.s.local} }
func (c *rawConn) RemoteAddr() net.Addr { return endpointAddr{c.s.transport, c.s.remote} }

func (c *rawConn) SetDeadline(t time.Time) error      { return nil }
func (c *rawConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *rawConn) SetWriteDeadline(t time.Time) error { return nil }

// endpointAddr adapts Endpoint to net.Addr for rawConn's Local/RemoteAddr.
type endpointAddr struct {
	transport Transport
	endpoint  Endpoint
}

func (a endpointAddr) Network() string { return a.transport.String() }
func (a endpointAddr) String() string  { return a.endpoint.String() }
