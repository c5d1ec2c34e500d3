//go:build unix

package ioctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSocketListenAcceptConnectRoundTrip(t *testing.T) {
	lfd, err := Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer Close(lfd)

	require.NoError(t, SetReuseAddr(lfd, true))
	require.NoError(t, Bind(lfd, Endpoint{IP: []byte{127, 0, 0, 1}, Port: 0}))
	require.NoError(t, Listen(lfd, 16))

	laddr, err := LocalAddr(lfd)
	require.NoError(t, err)
	require.NotZero(t, laddr.Port)

	cfd, err := Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer Close(cfd)

	err = Connect(cfd, laddr)
	if err != nil {
		require.ErrorIs(t, err, unix.EINPROGRESS)
	}

	var sfd int
	require.Eventually(t, func() bool {
		nfd, _, acceptErr := Accept(lfd)
		if acceptErr != nil {
			return false
		}
		sfd = nfd
		return true
	}, 2*time.Second, 5*time.Millisecond)
	defer Close(sfd)

	require.Eventually(t, func() bool {
		return PendingError(cfd) == nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, SetNoDelay(cfd, true))
	require.NoError(t, SetKeepAlive(sfd, true))

	payload := [][]byte{[]byte("hello, "), []byte("world")}
	var n int
	require.Eventually(t, func() bool {
		written, writeErr := Writev(cfd, payload)
		if writeErr != nil {
			return false
		}
		n = written
		return true
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, len("hello, world"), n)

	buf := make([]byte, 64)
	var got int
	require.Eventually(t, func() bool {
		read, readErr := Readv(sfd, [][]byte{buf})
		if readErr != nil {
			return false
		}
		got = read
		return got > 0
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "hello, world", string(buf[:got]))

	require.NoError(t, Shutdown(cfd, ShutWrite))
}

func TestRecvErrQueueNeverBlocks(t *testing.T) {
	fd, err := Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	defer Close(fd)

	_, _, err = RecvErrQueue(fd, make([]byte, 64))
	require.Error(t, err)
}
