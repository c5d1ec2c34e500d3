//go:build unix

package socket

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/ntf-core-sub027/engine"
)

// freePort asks the OS for an ephemeral TCP port, closing the probe
// listener before returning it so Listener.Bind can reuse it.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestStreamConnectSendReceiveRoundTrip(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	port := freePort(t)
	ep := IP4(net.ParseIP("127.0.0.1"), port)

	ln := NewListener(r, nil, nil, nil)
	require.NoError(t, ln.Open(TransportTCP4, Options{}))
	require.NoError(t, ln.Bind(ep, Options{}))
	require.NoError(t, ln.Listen(16))

	acceptedCh := make(chan *Stream, 1)
	ln.Accept(Options{}, func(ev AcceptEvent) {
		require.Equal(t, Complete, ev.Type)
		acceptedCh <- ev.Stream
	})

	client := NewStream(r, nil, nil)
	require.NoError(t, client.Open(TransportTCP4, Options{}))

	connectedCh := make(chan struct{}, 1)
	client.Connect(ep, Options{}, func(ev ConnectEvent) {
		require.Equal(t, Complete, ev.Type)
		connectedCh <- struct{}{}
	})

	select {
	case <-connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not complete")
	}

	var server *Stream
	select {
	case server = <-acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not complete")
	}

	sentCh := make(chan struct{}, 1)
	client.Send([]byte("ping"), Options{}, func(ev SendEvent) {
		require.Equal(t, Complete, ev.Type)
		require.Equal(t, 4, ev.BytesWritten)
		sentCh <- struct{}{}
	})

	recvCh := make(chan string, 1)
	server.Receive(4, 4, Options{}, func(ev ReceiveEvent) {
		require.Equal(t, Complete, ev.Type)
		recvCh <- string(ev.Data)
	})

	select {
	case <-sentCh:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not complete")
	}
	select {
	case got := <-recvCh:
		require.Equal(t, "ping", got)
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not complete")
	}

	doneCh := make(chan struct{}, 1)
	client.Close(func() { doneCh <- struct{}{} })
	server.Close(func() {})
	ln.Close(func() {})
	<-doneCh
}

func TestStreamConnectRefusedReportsError(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	port := freePort(t) // nothing listens on this port
	ep := IP4(net.ParseIP("127.0.0.1"), port)

	client := NewStream(r, nil, nil)
	require.NoError(t, client.Open(TransportTCP4, Options{}))

	errCh := make(chan *ConnectEvent, 1)
	client.Connect(ep, Options{}, func(ev ConnectEvent) {
		errCh <- &ev
	})

	select {
	case ev := <-errCh:
		require.Equal(t, Error, ev.Type)
		require.NotNil(t, ev.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not complete")
	}
}

// TestStreamReceiveAccumulatesAcrossShortReads exercises a minSize larger
// than one read delivers: the server requests 8 bytes while the client writes them in two separate
// 4-byte sends, forcing at least one short read. The bytes already
// consumed from the kernel on the short read must accumulate rather than
// be discarded, per spec.md §3's minSize-gated receive invariant.
func TestStreamReceiveAccumulatesAcrossShortReads(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	port := freePort(t)
	ep := IP4(net.ParseIP("127.0.0.1"), port)

	ln := NewListener(r, nil, nil, nil)
	require.NoError(t, ln.Open(TransportTCP4, Options{}))
	require.NoError(t, ln.Bind(ep, Options{}))
	require.NoError(t, ln.Listen(16))

	acceptedCh := make(chan *Stream, 1)
	ln.Accept(Options{}, func(ev AcceptEvent) {
		require.Equal(t, Complete, ev.Type)
		acceptedCh <- ev.Stream
	})

	client := NewStream(r, nil, nil)
	require.NoError(t, client.Open(TransportTCP4, Options{}))

	connectedCh := make(chan struct{}, 1)
	client.Connect(ep, Options{}, func(ev ConnectEvent) { connectedCh <- struct{}{} })
	select {
	case <-connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not complete")
	}

	var server *Stream
	select {
	case server = <-acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not complete")
	}

	recvCh := make(chan string, 1)
	server.Receive(8, 8, Options{}, func(ev ReceiveEvent) {
		require.Equal(t, Complete, ev.Type)
		recvCh <- string(ev.Data)
	})

	firstSent := make(chan struct{}, 1)
	client.Send([]byte("ABCD"), Options{}, func(ev SendEvent) {
		require.Equal(t, Complete, ev.Type)
		firstSent <- struct{}{}
	})
	select {
	case <-firstSent:
	case <-time.After(2 * time.Second):
		t.Fatal("first send did not complete")
	}

	// Give the reactor a chance to deliver the short read (4 of 8 bytes)
	// and re-arm readable interest before the rest arrives.
	time.Sleep(100 * time.Millisecond)

	secondSent := make(chan struct{}, 1)
	client.Send([]byte("EFGH"), Options{}, func(ev SendEvent) {
		require.Equal(t, Complete, ev.Type)
		secondSent <- struct{}{}
	})
	select {
	case <-secondSent:
	case <-time.After(2 * time.Second):
		t.Fatal("second send did not complete")
	}

	select {
	case got := <-recvCh:
		require.Equal(t, "ABCDEFGH", got, "bytes from the first short read must be retained, not discarded")
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not complete")
	}

	client.Close(func() {})
	server.Close(func() {})
	ln.Close(func() {})
}

func TestStreamSendAfterCloseFailsImmediately(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	port := freePort(t)
	ep := IP4(net.ParseIP("127.0.0.1"), port)

	ln := NewListener(r, nil, nil, nil)
	require.NoError(t, ln.Open(TransportTCP4, Options{}))
	require.NoError(t, ln.Bind(ep, Options{}))
	require.NoError(t, ln.Listen(16))
	ln.Accept(Options{}, func(AcceptEvent) {})

	client := NewStream(r, nil, nil)
	require.NoError(t, client.Open(TransportTCP4, Options{}))

	connectedCh := make(chan struct{}, 1)
	client.Connect(ep, Options{}, func(ev ConnectEvent) { connectedCh <- struct{}{} })
	select {
	case <-connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not complete")
	}

	closedCh := make(chan struct{}, 1)
	client.Close(func() { closedCh <- struct{}{} })
	<-closedCh

	errCh := make(chan SendEvent, 1)
	client.Send([]byte("x"), Options{}, func(ev SendEvent) { errCh <- ev })
	ev := <-errCh
	require.Equal(t, Error, ev.Type)
}
