//go:build unix

package socket

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/ntf-core-sub027/engine"
)

func TestDatagramConnectedSendReceiveRoundTrip(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	serverPort := freePort(t)
	serverEP := IP4(net.ParseIP("127.0.0.1"), serverPort)

	server := NewDatagram(r, nil, nil)
	require.NoError(t, server.Open(TransportUDP4, Options{}))
	require.NoError(t, server.Bind(serverEP, Options{}))

	clientPort := freePort(t)
	clientEP := IP4(net.ParseIP("127.0.0.1"), clientPort)

	client := NewDatagram(r, nil, nil)
	require.NoError(t, client.Open(TransportUDP4, Options{}))
	require.NoError(t, client.Bind(clientEP, Options{}))
	require.NoError(t, client.Connect(serverEP, Options{}))
	require.NoError(t, server.Connect(clientEP, Options{}))

	recvCh := make(chan ReceiveEvent, 1)
	server.Receive(1500, Options{}, func(ev ReceiveEvent) { recvCh <- ev })

	sentCh := make(chan SendEvent, 1)
	client.Send(Endpoint{}, []byte("hello"), Options{}, func(ev SendEvent) { sentCh <- ev })

	select {
	case ev := <-sentCh:
		require.Equal(t, Complete, ev.Type)
		require.Equal(t, 5, ev.BytesWritten)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not complete")
	}

	select {
	case ev := <-recvCh:
		require.Equal(t, Complete, ev.Type)
		require.Equal(t, "hello", string(ev.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not complete")
	}

	doneCh := make(chan struct{}, 1)
	client.Close(func() { doneCh <- struct{}{} })
	server.Close(func() {})
	<-doneCh
}

// TestDatagramUnconnectedReceiveReportsSource exercises the standard
// bind-and-receive-from-many-peers pattern: the server never connects, so
// its Source must come from recvfrom(2) itself rather than getpeername(2),
// which would fail with ENOTCONN on an unconnected socket.
func TestDatagramUnconnectedReceiveReportsSource(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	serverPort := freePort(t)
	serverEP := IP4(net.ParseIP("127.0.0.1"), serverPort)

	server := NewDatagram(r, nil, nil)
	require.NoError(t, server.Open(TransportUDP4, Options{}))
	require.NoError(t, server.Bind(serverEP, Options{}))

	clientPort := freePort(t)
	clientEP := IP4(net.ParseIP("127.0.0.1"), clientPort)

	client := NewDatagram(r, nil, nil)
	require.NoError(t, client.Open(TransportUDP4, Options{}))
	require.NoError(t, client.Bind(clientEP, Options{}))
	// The client connects so Send can use the write(2)-style path; the
	// server, unlike TestDatagramConnectedSendReceiveRoundTrip, never
	// connects back, matching the standard multi-peer server pattern.
	require.NoError(t, client.Connect(serverEP, Options{}))

	recvCh := make(chan ReceiveEvent, 1)
	server.Receive(1500, Options{}, func(ev ReceiveEvent) { recvCh <- ev })

	sentCh := make(chan SendEvent, 1)
	client.Send(serverEP, []byte("hi"), Options{}, func(ev SendEvent) { sentCh <- ev })

	select {
	case ev := <-sentCh:
		require.Equal(t, Complete, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not complete")
	}

	select {
	case ev := <-recvCh:
		require.Equal(t, Complete, ev.Type)
		require.Equal(t, "hi", string(ev.Data))
		require.Equal(t, clientEP.Port, ev.Source.Port, "source endpoint must be reported even though the server never connected")
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not complete")
	}

	doneCh := make(chan struct{}, 1)
	client.Close(func() { doneCh <- struct{}{} })
	server.Close(func() {})
	<-doneCh
}

func TestDatagramCloseCancelsPendingReceive(t *testing.T) {
	r, err := engine.NewReactor()
	require.NoError(t, err)
	go r.Run(func() bool { return false })
	defer r.Close()

	port := freePort(t)
	ep := IP4(net.ParseIP("127.0.0.1"), port)

	d := NewDatagram(r, nil, nil)
	require.NoError(t, d.Open(TransportUDP4, Options{}))
	require.NoError(t, d.Bind(ep, Options{}))

	cancelCh := make(chan ReceiveEvent, 1)
	d.Receive(1500, Options{}, func(ev ReceiveEvent) { cancelCh <- ev })

	closedCh := make(chan struct{}, 1)
	d.Close(func() { closedCh <- struct{}{} })

	select {
	case ev := <-cancelCh:
		require.Equal(t, Canceled, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("pending receive was not canceled")
	}
	<-closedCh
}
