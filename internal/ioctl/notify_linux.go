//go:build linux

package ioctl

import "golang.org/x/sys/unix"

// RecvErrQueue drains one message from fd's socket error queue — the
// notification-queue primitive spec.md's component table names, carrying
// zero-copy send completions and hardware timestamps on Linux. Returns
// unix.EAGAIN when nothing is pending.
func RecvErrQueue(fd int, buf []byte) (n int, oob []byte, err error) {
	oobBuf := make([]byte, 512)
	n, oobn, _, _, err := unix.Recvmsg(fd, buf, oobBuf, unix.MSG_ERRQUEUE)
	if err != nil {
		return 0, nil, err
	}
	return n, oobBuf[:oobn], nil
}
