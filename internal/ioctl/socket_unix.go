//go:build unix

package ioctl

import (
	"net"

	"golang.org/x/sys/unix"
)

// Socket creates a new non-blocking, close-on-exec socket for domain/typ/proto
// (unix.AF_INET, unix.SOCK_STREAM, 0, for example).
func Socket(domain, typ, proto int) (int, error) {
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return 0, err
	}
	return fd, nil
}

// SetNonblock arms or disarms O_NONBLOCK on fd.
func SetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

func sockaddr(ep Endpoint) (unix.Sockaddr, error) {
	if ep.Local != "" {
		return &unix.SockaddrUnix{Name: ep.Local}, nil
	}
	if ip4 := ep.IP.To4(); ip4 != nil {
		var addr unix.SockaddrInet4
		addr.Port = ep.Port
		copy(addr.Addr[:], ip4)
		return &addr, nil
	}
	var addr unix.SockaddrInet6
	addr.Port = ep.Port
	copy(addr.Addr[:], ep.IP.To16())
	if ep.Zone != "" {
		if iface, err := net.InterfaceByName(ep.Zone); err == nil {
			addr.ZoneId = uint32(iface.Index)
		}
	}
	return &addr, nil
}

func endpointFromSockaddr(sa unix.Sockaddr) Endpoint {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return Endpoint{IP: net.IP(a.Addr[:]).To4(), Port: a.Port}
	case *unix.SockaddrInet6:
		ep := Endpoint{IP: net.IP(a.Addr[:]), Port: a.Port}
		if a.ZoneId != 0 {
			if iface, err := net.InterfaceByIndex(int(a.ZoneId)); err == nil {
				ep.Zone = iface.Name
			}
		}
		return ep
	case *unix.SockaddrUnix:
		return Endpoint{Local: a.Name}
	default:
		return Endpoint{}
	}
}

// Bind binds fd to ep.
func Bind(fd int, ep Endpoint) error {
	sa, err := sockaddr(ep)
	if err != nil {
		return err
	}
	return unix.Bind(fd, sa)
}

// Connect begins (possibly asynchronously, given fd is non-blocking)
// connecting fd to ep. A return of unix.EINPROGRESS is the expected
// in-progress signal the caller arms write-readiness on.
func Connect(fd int, ep Endpoint) error {
	sa, err := sockaddr(ep)
	if err != nil {
		return err
	}
	return unix.Connect(fd, sa)
}

// Listen marks fd as accepting connections with the given backlog.
func Listen(fd int, backlog int) error {
	return unix.Listen(fd, backlog)
}

// Accept accepts one pending connection on fd, returning the new
// non-blocking, close-on-exec socket and the peer endpoint.
func Accept(fd int) (int, Endpoint, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return 0, Endpoint{}, err
	}
	return nfd, endpointFromSockaddr(sa), nil
}

// LocalAddr returns the endpoint fd is bound to.
func LocalAddr(fd int) (Endpoint, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Endpoint{}, err
	}
	return endpointFromSockaddr(sa), nil
}

// RemoteAddr returns the endpoint fd is connected to.
func RemoteAddr(fd int) (Endpoint, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return Endpoint{}, err
	}
	return endpointFromSockaddr(sa), nil
}

// Readv performs a scatter read into bufs, spec.md's "scatter/gather"
// primitive.
func Readv(fd int, bufs []IOVec) (int, error) {
	return unix.Readv(fd, bufs)
}

// RecvFrom reads one datagram into buf and reports the endpoint it arrived
// from via recvfrom(2), the only way to learn a peer's address on an
// unconnected (bind-and-receive-from-many) datagram socket: getpeername(2)
// only works once connect(2) has fixed a single default peer.
func RecvFrom(fd int, buf []byte) (int, Endpoint, error) {
	n, sa, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return n, Endpoint{}, err
	}
	if sa == nil {
		return n, Endpoint{}, nil
	}
	return n, endpointFromSockaddr(sa), nil
}

// Writev performs a gather write from bufs.
func Writev(fd int, bufs []IOVec) (int, error) {
	return unix.Writev(fd, bufs)
}

// Shutdown shuts down the read, write, or both halves of fd per the
// package's ShutRead/ShutWrite/ShutReadWrite constants.
func Shutdown(fd int, how int) error {
	switch how {
	case ShutRead:
		return unix.Shutdown(fd, unix.SHUT_RD)
	case ShutWrite:
		return unix.Shutdown(fd, unix.SHUT_WR)
	default:
		return unix.Shutdown(fd, unix.SHUT_RDWR)
	}
}

// SetReuseAddr toggles SO_REUSEADDR.
func SetReuseAddr(fd int, enabled bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(enabled))
}

// SetKeepAlive toggles SO_KEEPALIVE.
func SetKeepAlive(fd int, enabled bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(enabled))
}

// SetNoDelay toggles TCP_NODELAY.
func SetNoDelay(fd int, enabled bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(enabled))
}

// SetSendBufferSize sets SO_SNDBUF.
func SetSendBufferSize(fd, bytes int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, bytes)
}

// SetRecvBufferSize sets SO_RCVBUF.
func SetRecvBufferSize(fd, bytes int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bytes)
}

// PendingError drains and returns SO_ERROR, the standard way to discover
// whether a non-blocking connect succeeded once the socket is writable.
func PendingError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
