//go:build unix && !linux

package engine

import "golang.org/x/sys/unix"

// createWakeFD creates a self-pipe for wake-up notifications on platforms
// without eventfd. Grounded on eventloop/wakeup_darwin.go's createWakeFd.
func createWakeFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		closeWakeFD(fds[0], fds[1])
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		closeWakeFD(fds[0], fds[1])
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func writeWake(writeFD int) error {
	_, err := unix.Write(writeFD, []byte{1})
	return err
}

func drainWake(readFD int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD {
		_ = unix.Close(writeFD)
	}
}
