// Package ioctl implements the platform I/O primitives component of
// spec.md §2: non-blocking socket setup, scatter/gather send/receive, and
// socket option plumbing, split per platform behind a single API so the
// socket package makes no syscalls of its own (it imports golang.org/x/sys
// only for address-family and socket-type constants).
//
// Grounded on the teacher's eventloop/fd_unix.go and fd_windows.go thin
// syscall wrappers (closeFD/readFD/writeFD), expanded to the fuller
// primitive set spec.md's component table names.
package ioctl

import "net"

// Endpoint mirrors the address shape a socket is opened against, decoupled
// from the socket package so this package has no import-cycle on it.
type Endpoint struct {
	IP   net.IP
	Port int
	// Zone is the IPv6 scope/zone id, empty for v4 or zone-less v6.
	Zone string
	// Local is a filesystem path for local-stream/local-datagram transports;
	// when non-empty, IP/Port/Zone are ignored.
	Local string
}

// IOVec is one buffer of a scatter/gather operation.
type IOVec = []byte

// Shutdown direction, passed to Shutdown independent of platform constants.
const (
	ShutRead = iota
	ShutWrite
	ShutReadWrite
)
