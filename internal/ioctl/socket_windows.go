//go:build windows

package ioctl

import (
	"errors"
	"net"

	"golang.org/x/sys/windows"
)

// ErrNotificationsUnsupported is returned by RecvErrQueue; Windows has no
// socket error-queue equivalent, so InterestNotifications is simply never
// satisfied on this back end.
var ErrNotificationsUnsupported = errors.New("ioctl: notification queue not supported on this platform")

// Socket creates a new overlapped-capable socket for domain/typ/proto.
func Socket(domain, typ, proto int) (int, error) {
	fd, err := windows.WSASocket(int32(domain), int32(typ), int32(proto), nil, 0, windows.WSA_FLAG_OVERLAPPED)
	if err != nil {
		return 0, err
	}
	return int(fd), nil
}

// SetNonblock is a no-op on Windows: overlapped sockets are driven entirely
// through IOCP completions rather than EWOULDBLOCK polling.
func SetNonblock(fd int, nonblocking bool) error { return nil }

// Close closes fd.
func Close(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func sockaddr(ep Endpoint) (windows.Sockaddr, error) {
	if ip4 := ep.IP.To4(); ip4 != nil {
		var addr windows.SockaddrInet4
		addr.Port = ep.Port
		copy(addr.Addr[:], ip4)
		return &addr, nil
	}
	var addr windows.SockaddrInet6
	addr.Port = ep.Port
	copy(addr.Addr[:], ep.IP.To16())
	return &addr, nil
}

func endpointFromSockaddr(sa windows.Sockaddr) Endpoint {
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		return Endpoint{IP: net.IP(a.Addr[:]).To4(), Port: a.Port}
	case *windows.SockaddrInet6:
		return Endpoint{IP: net.IP(a.Addr[:]), Port: a.Port}
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
	return windows.Bind(windows.Handle(fd), sa)
}

// Connect connects fd to ep. Overlapped ConnectEx is issued by the socket
// package directly against the raw handle; this synchronous Connect is used
// only for the non-IOCP paths (e.g. UDP "connect" for default peer).
func Connect(fd int, ep Endpoint) error {
	sa, err := sockaddr(ep)
	if err != nil {
		return err
	}
	return windows.Connect(windows.Handle(fd), sa)
}

// Listen marks fd as accepting connections.
func Listen(fd int, backlog int) error {
	return windows.Listen(windows.Handle(fd), backlog)
}

// Accept accepts one pending connection on fd.
func Accept(fd int) (int, Endpoint, error) {
	nfd, sa, err := windows.Accept(windows.Handle(fd))
	if err != nil {
		return 0, Endpoint{}, err
	}
	return int(nfd), endpointFromSockaddr(sa), nil
}

// LocalAddr returns the endpoint fd is bound to.
func LocalAddr(fd int) (Endpoint, error) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return Endpoint{}, err
	}
	return endpointFromSockaddr(sa), nil
}

// RemoteAddr returns the endpoint fd is connected to.
func RemoteAddr(fd int) (Endpoint, error) {
	sa, err := windows.Getpeername(windows.Handle(fd))
	if err != nil {
		return Endpoint{}, err
	}
	return endpointFromSockaddr(sa), nil
}

// Readv performs a scatter read via WSARecv across multiple buffers.
func Readv(fd int, bufs []IOVec) (int, error) {
	wsabufs := make([]windows.WSABuf, len(bufs))
	for i, b := range bufs {
		wsabufs[i] = windows.WSABuf{Len: uint32(len(b))}
		if len(b) > 0 {
			wsabufs[i].Buf = &b[0]
		}
	}
	var n, flags uint32
	err := windows.WSARecv(windows.Handle(fd), &wsabufs[0], uint32(len(wsabufs)), &n, &flags, nil, nil)
	return int(n), err
}

// RecvFrom reads one datagram into buf and reports the endpoint it arrived
// from, the Windows counterpart of recvfrom(2): on an unconnected socket
// getpeername has no peer to report, so datagram receive must ask the
// kernel for the source address on every read instead.
func RecvFrom(fd int, buf []byte) (int, Endpoint, error) {
	n, sa, err := windows.Recvfrom(windows.Handle(fd), buf, 0)
	if err != nil {
		return n, Endpoint{}, err
	}
	if sa == nil {
		return n, Endpoint{}, nil
	}
	return n, endpointFromSockaddr(sa), nil
}

// Writev performs a gather write via WSASend across multiple buffers.
func Writev(fd int, bufs []IOVec) (int, error) {
	wsabufs := make([]windows.WSABuf, len(bufs))
	for i, b := range bufs {
		wsabufs[i] = windows.WSABuf{Len: uint32(len(b))}
		if len(b) > 0 {
			wsabufs[i].Buf = &b[0]
		}
	}
	var n uint32
	err := windows.WSASend(windows.Handle(fd), &wsabufs[0], uint32(len(wsabufs)), &n, 0, nil, nil)
	return int(n), err
}

// Shutdown shuts down the read, write, or both halves of fd per the
// package's ShutRead/ShutWrite/ShutReadWrite constants.
func Shutdown(fd int, how int) error {
	switch how {
	case ShutRead:
		return windows.Shutdown(windows.Handle(fd), windows.SHUT_RD)
	case ShutWrite:
		return windows.Shutdown(windows.Handle(fd), windows.SHUT_WR)
	default:
		return windows.Shutdown(windows.Handle(fd), windows.SHUT_RDWR)
	}
}

// SetReuseAddr toggles SO_REUSEADDR.
func SetReuseAddr(fd int, enabled bool) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, boolToInt(enabled))
}

// SetKeepAlive toggles SO_KEEPALIVE.
func SetKeepAlive(fd int, enabled bool) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_KEEPALIVE, boolToInt(enabled))
}

// SetNoDelay toggles TCP_NODELAY.
func SetNoDelay(fd int, enabled bool) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_TCP, windows.TCP_NODELAY, boolToInt(enabled))
}

// SetSendBufferSize sets SO_SNDBUF.
func SetSendBufferSize(fd, bytes int) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_SNDBUF, bytes)
}

// SetRecvBufferSize sets SO_RCVBUF.
func SetRecvBufferSize(fd, bytes int) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_RCVBUF, bytes)
}

// PendingError drains and returns SO_ERROR.
func PendingError(fd int) error {
	errno, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return windows.Errno(errno)
}

// RecvErrQueue has no Windows equivalent.
func RecvErrQueue(fd int, buf []byte) (n int, oob []byte, err error) {
	return 0, nil, ErrNotificationsUnsupported
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
