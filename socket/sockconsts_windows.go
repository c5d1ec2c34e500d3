//go:build windows

package socket

import "golang.org/x/sys/windows"

const (
	sockAFInet  = windows.AF_INET
	sockAFInet6 = windows.AF_INET6
	sockAFUnix  = 1 // AF_UNIX; local-transport sockets are unsupported pre-Win10 but the constant is stable
	sockStream  = windows.SOCK_STREAM
	sockDgram   = windows.SOCK_DGRAM
)
