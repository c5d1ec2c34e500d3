//go:build unix

// Adapted from the errno-table pattern in bassosimone/nop's errclass package
// (itself adapted from github.com/rbmk-project/rbmk/pkg/common/errclass).

package ntcerr

import (
	"errors"

	"golang.org/x/sys/unix"
)

const (
	errEADDRNOTAVAIL   = unix.EADDRNOTAVAIL
	errEADDRINUSE      = unix.EADDRINUSE
	errECONNABORTED    = unix.ECONNABORTED
	errECONNREFUSED    = unix.ECONNREFUSED
	errECONNRESET      = unix.ECONNRESET
	errEHOSTUNREACH    = unix.EHOSTUNREACH
	errEINVAL          = unix.EINVAL
	errEINTR           = unix.EINTR
	errENETDOWN        = unix.ENETDOWN
	errENETUNREACH     = unix.ENETUNREACH
	errENOBUFS         = unix.ENOBUFS
	errENOTCONN        = unix.ENOTCONN
	errEPROTONOSUPPORT = unix.EPROTONOSUPPORT
	errETIMEDOUT       = unix.ETIMEDOUT
	errEAGAIN          = unix.EAGAIN
	errEPIPE           = unix.EPIPE
)

// Classify maps a raw OS error to its taxonomy Kind. Unrecognized errors
// classify as Unknown, retaining the raw error for diagnostics.
func Classify(err error) Kind {
	if err == nil {
		return OK
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return Unknown
	}
	switch errno {
	case errEAGAIN:
		return WouldBlock
	case errEINTR:
		return WouldBlock
	case errECONNREFUSED:
		return ConnectionRefused
	case errECONNRESET, errEPIPE:
		return ConnectionReset
	case errECONNABORTED, errENOTCONN:
		return ConnectionDead
	case errEHOSTUNREACH, errENETUNREACH, errENETDOWN:
		return Unreachable
	case errEADDRINUSE:
		return AddressInUse
	case errEADDRNOTAVAIL:
		return AddressMalformed
	case errEINVAL, errEPROTONOSUPPORT:
		return Invalid
	case errENOBUFS:
		return Limit
	case errETIMEDOUT:
		return WouldBlock
	default:
		return Unknown
	}
}
