// Package tlsio defines the encryption upgrade/downgrade surface from
// spec.md §4.5.5: an interface over a TLS session that a socket's
// data-plane I/O can be redirected through, without this module importing
// or depending on any concrete TLS implementation. Per spec.md §1, the
// concrete backend (crypto/tls or otherwise) is an external collaborator
// wired in by the application, not a dependency of this package.
//
// Grounded on the teacher pack's bassosimone-nop TLSEngine/TLSConn split
// (nop's tls.go): an engine builds a session bound to an existing net.Conn,
// and the session embeds net.Conn itself so encrypted data plane traffic
// flows through the same Read/Write surface the raw socket used before the
// upgrade.
package tlsio

import (
	"context"
	"net"
)

// Session is one upgraded connection's encryption state, grounded on
// bassosimone-nop's TLSConn. Concrete implementations typically wrap
// *tls.Conn, but this package never imports crypto/tls itself.
type Session interface {
	// Handshake performs (or continues) the handshake, honoring ctx
	// cancellation.
	Handshake(ctx context.Context) error

	// Embedding Conn lets Read/Write transparently decrypt/encrypt
	// application data once Handshake has completed.
	net.Conn
}

// Engine constructs Sessions bound to conn; concrete implementations bind
// it to a specific TLS library and configuration, grounded on
// bassosimone-nop's TLSEngine.
type Engine interface {
	// Name identifies the engine for diagnostics (e.g. "stdlib").
	Name() string
	// NewClientSession creates a client-role Session wrapping conn.
	NewClientSession(conn net.Conn) Session
	// NewServerSession creates a server-role Session wrapping conn.
	NewServerSession(conn net.Conn) Session
}
