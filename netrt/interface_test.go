//go:build unix

package netrt

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/ntf-core-sub027/chronology"
	"github.com/bloomberg/ntf-core-sub027/socket"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestInterfaceCreateStreamSendReceive(t *testing.T) {
	iface, err := New(WithThreads(2))
	require.NoError(t, err)
	defer iface.Close()

	port := freePort(t)
	ep := socket.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: port}

	ln := iface.CreateListener()
	require.NoError(t, ln.Open(socket.TransportTCP4, socket.Options{}))
	require.NoError(t, ln.Bind(ep, socket.Options{}))
	require.NoError(t, ln.Listen(16))

	client := iface.CreateStream()
	require.NoError(t, client.Open(socket.TransportTCP4, socket.Options{}))

	connectDone := make(chan socket.ConnectEvent, 1)
	client.Connect(ep, socket.Options{}, func(ev socket.ConnectEvent) { connectDone <- ev })

	acceptDone := make(chan socket.AcceptEvent, 1)
	ln.Accept(socket.Options{}, func(ev socket.AcceptEvent) { acceptDone <- ev })

	select {
	case ev := <-connectDone:
		require.Equal(t, socket.Complete, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	var server *socket.Stream
	select {
	case ev := <-acceptDone:
		require.Equal(t, socket.Complete, ev.Type)
		server = ev.Stream
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}

	sendDone := make(chan socket.SendEvent, 1)
	client.Send([]byte("ping"), socket.Options{}, func(ev socket.SendEvent) { sendDone <- ev })

	select {
	case ev := <-sendDone:
		require.Equal(t, socket.Complete, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send")
	}

	recvDone := make(chan socket.ReceiveEvent, 1)
	server.Receive(4, 4, socket.Options{}, func(ev socket.ReceiveEvent) { recvDone <- ev })

	select {
	case ev := <-recvDone:
		require.Equal(t, socket.Complete, ev.Type)
		require.Equal(t, "ping", string(ev.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for receive")
	}
}

func TestInterfaceAddTimerFires(t *testing.T) {
	iface, err := New(WithThreads(1))
	require.NoError(t, err)
	defer iface.Close()

	fired := make(chan chronology.Classifier, 1)
	iface.AddTimer(time.Now().Add(10*time.Millisecond), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		fired <- class
	}, nil)

	select {
	case class := <-fired:
		require.Equal(t, chronology.Fired, class)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer")
	}
}

func TestInterfaceResolverSharedAcrossThreads(t *testing.T) {
	iface, err := New(WithThreads(3))
	require.NoError(t, err)
	defer iface.Close()

	require.NotNil(t, iface.Resolver())
	require.Same(t, iface.Resolver(), iface.Resolver())
}

func TestInterfaceHandleCeilingDeniesOverflow(t *testing.T) {
	iface, err := New(WithThreads(1), WithHandleCeiling(1))
	require.NoError(t, err)
	defer iface.Close()

	first := iface.CreateStream()
	require.NoError(t, first.Open(socket.TransportTCP4, socket.Options{}))

	second := iface.CreateStream()
	err = second.Open(socket.TransportTCP4, socket.Options{})
	require.Error(t, err)
}

func TestInterfaceCloseIsIdempotent(t *testing.T) {
	iface, err := New(WithThreads(2))
	require.NoError(t, err)

	require.NoError(t, iface.Close())
	require.NoError(t, iface.Close())
}
