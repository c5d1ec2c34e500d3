//go:build unix

package socket

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/ntf-core-sub027/engine"
	"github.com/bloomberg/ntf-core-sub027/tlsio"
)

// fakeTLSEngine is a minimal tlsio.Engine for tests: its "handshake"
// exchanges one magic byte each way over the raw connection, and its
// steady-state Read/Write XOR every byte with a fixed key. It exists only
// to prove Stream.Upgrade/Downgrade actually drive a tlsio.Session rather
// than leaving the interfaces dangling; it is not a real cipher.
type fakeTLSEngine struct{}

func (fakeTLSEngine) Name() string { return "fake" }

func (fakeTLSEngine) NewClientSession(conn net.Conn) tlsio.Session {
	return &fakeTLSSession{Conn: conn}
}

func (fakeTLSEngine) NewServerSession(conn net.Conn) tlsio.Session {
	return &fakeTLSSession{Conn: conn}
}

type fakeTLSSession struct {
	net.Conn
}

func (s *fakeTLSSession) Handshake(ctx context.Context) error {
	if _, err := s.Conn.Write([]byte{0x42}); err != nil {
		return err
	}
	buf := make([]byte, 1)
	_, err := io.ReadFull(s.Conn, buf)
	return err
}

func (s *fakeTLSSession) Read(p []byte) (int, error) {
	n, err := s.Conn.Read(p)
	for i := 0; i < n; i++ {
		p[i] ^= 0xff
	}
	return n, err
}

func (s *fakeTLSSession) Write(p []byte) (int, error) {
	ciphertext := make([]byte, len(p))
	for i, b := range p {
		ciphertext[i] = b ^ 0xff
	}
	return s.Conn.Write(ciphertext)
}

func TestStreamUpgradeRoutesDataPlaneThroughSession(t *testing.T) {
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clientUpgradedCh := make(chan UpgradeEvent, 1)
	serverUpgradedCh := make(chan UpgradeEvent, 1)
	client.Upgrade(ctx, fakeTLSEngine{}, false, func(ev UpgradeEvent) { clientUpgradedCh <- ev })
	server.Upgrade(ctx, fakeTLSEngine{}, true, func(ev UpgradeEvent) { serverUpgradedCh <- ev })

	select {
	case ev := <-clientUpgradedCh:
		require.Equal(t, Complete, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("client upgrade did not complete")
	}
	select {
	case ev := <-serverUpgradedCh:
		require.Equal(t, Complete, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("server upgrade did not complete")
	}

	recvCh := make(chan string, 1)
	server.Receive(4, 4, Options{}, func(ev ReceiveEvent) {
		require.Equal(t, Complete, ev.Type)
		recvCh <- string(ev.Data)
	})

	sentCh := make(chan struct{}, 1)
	client.Send([]byte("ping"), Options{}, func(ev SendEvent) {
		require.Equal(t, Complete, ev.Type)
		sentCh <- struct{}{}
	})
	select {
	case <-sentCh:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not complete")
	}

	select {
	case got := <-recvCh:
		require.Equal(t, "ping", got, "plaintext must round-trip through the session's encrypt/decrypt")
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not complete")
	}

	downgradedCh := make(chan DowngradeEvent, 1)
	client.Downgrade(func(ev DowngradeEvent) { downgradedCh <- ev })
	select {
	case <-downgradedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("downgrade did not complete")
	}

	client.Close(func() {})
	server.Close(func() {})
	ln.Close(func() {})
}
