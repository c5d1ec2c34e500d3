//go:build unix

package socket

import "golang.org/x/sys/unix"

const (
	sockAFInet  = unix.AF_INET
	sockAFInet6 = unix.AF_INET6
	sockAFUnix  = unix.AF_UNIX
	sockStream  = unix.SOCK_STREAM
	sockDgram   = unix.SOCK_DGRAM
)
