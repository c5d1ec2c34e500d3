// Package socket implements the stream, listener, and datagram state
// machines from spec.md §4.5: open/detach lifecycle, send/receive/accept
// queues with watermark-driven backpressure, flow control, and the
// encryption upgrade/downgrade surface.
//
// Grounded on the teacher's eventloop.Loop ingress-queue-plus-state-machine
// shape (eventloop/loop.go's ChunkedIngress and FastState), adapted from
// "scheduled task" to "pending socket operation" — and on spec.md §3/§4.5
// directly, since the queue watermark semantics have no teacher analog
// beyond the generic high/low-watermark idea.
package socket

import (
	"fmt"
	"net"

	"github.com/bloomberg/ntf-core-sub027/internal/ioctl"
)

// Transport is the tagged variant over supported socket kinds, spec.md §3.
type Transport int

const (
	TransportTCP4 Transport = iota
	TransportTCP6
	TransportUDP4
	TransportUDP6
	TransportLocalStream
	TransportLocalDatagram
)

func (t Transport) String() string {
	switch t {
	case TransportTCP4:
		return "tcp4"
	case TransportTCP6:
		return "tcp6"
	case TransportUDP4:
		return "udp4"
	case TransportUDP6:
		return "udp6"
	case TransportLocalStream:
		return "local-stream"
	case TransportLocalDatagram:
		return "local-datagram"
	default:
		return "unknown"
	}
}

// IsStream reports whether t is a connection-oriented transport.
func (t Transport) IsStream() bool {
	return t == TransportTCP4 || t == TransportTCP6 || t == TransportLocalStream
}

// IsLocal reports whether t addresses the local filesystem namespace
// rather than an IP endpoint.
func (t Transport) IsLocal() bool {
	return t == TransportLocalStream || t == TransportLocalDatagram
}

// Endpoint is the tagged variant over (IPv4, port), (IPv6, port, scope),
// and local filesystem name from spec.md §3. Equal by value; String()
// renders canonical syntax, bracketing IPv6 addresses combined with a port.
type Endpoint struct {
	IP    net.IP
	Port  int
	Scope string
	Local string
}

// IP4 constructs an IPv4 endpoint.
func IP4(ip net.IP, port int) Endpoint { return Endpoint{IP: ip.To4(), Port: port} }

// IP6 constructs an IPv6 endpoint, optionally scoped.
func IP6(ip net.IP, port int, scope string) Endpoint {
	return Endpoint{IP: ip.To16(), Port: port, Scope: scope}
}

// Path constructs a local filesystem endpoint.
func Path(name string) Endpoint { return Endpoint{Local: name} }

// IsLocal reports whether e names a filesystem path rather than an IP.
func (e Endpoint) IsLocal() bool { return e.Local != "" }

// String renders e in canonical syntax: bracketed IPv6 when combined with
// a port, plain dotted-quad for IPv4, bare path for local endpoints.
func (e Endpoint) String() string {
	if e.IsLocal() {
		return e.Local
	}
	if e.IP.To4() == nil && len(e.IP) > 0 {
		host := e.IP.String()
		if e.Scope != "" {
			host += "%" + e.Scope
		}
		if e.Port != 0 {
			return fmt.Sprintf("[%s]:%d", host, e.Port)
		}
		return host
	}
	if e.Port != 0 {
		return fmt.Sprintf("%s:%d", e.IP.String(), e.Port)
	}
	return e.IP.String()
}

func (e Endpoint) toIoctl() ioctl.Endpoint {
	return ioctl.Endpoint{IP: e.IP, Port: e.Port, Zone: e.Scope, Local: e.Local}
}

func fromIoctl(ep ioctl.Endpoint) Endpoint {
	return Endpoint{IP: ep.IP, Port: ep.Port, Scope: ep.Zone, Local: ep.Local}
}

func domainTypeProto(t Transport) (domain, typ, proto int) {
	switch t {
	case TransportTCP4:
		return sockAFInet, sockStream, 0
	case TransportTCP6:
		return sockAFInet6, sockStream, 0
	case TransportUDP4:
		return sockAFInet, sockDgram, 0
	case TransportUDP6:
		return sockAFInet6, sockDgram, 0
	case TransportLocalStream:
		return sockAFUnix, sockStream, 0
	case TransportLocalDatagram:
		return sockAFUnix, sockDgram, 0
	default:
		return sockAFInet, sockStream, 0
	}
}
