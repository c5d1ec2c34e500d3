//go:build unix && !linux

package ioctl

import "errors"

// ErrNotificationsUnsupported is returned by RecvErrQueue on platforms
// without a socket error-queue equivalent.
var ErrNotificationsUnsupported = errors.New("ioctl: notification queue not supported on this platform")

// RecvErrQueue is a no-op outside Linux; InterestNotifications is simply
// never satisfied on these back ends.
func RecvErrQueue(fd int, buf []byte) (n int, oob []byte, err error) {
	return 0, nil, ErrNotificationsUnsupported
}
