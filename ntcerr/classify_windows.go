//go:build windows

// Adapted from the errno-table pattern in bassosimone/nop's errclass package
// (itself adapted from github.com/rbmk-project/rbmk/pkg/common/errclass).

package ntcerr

import (
	"errors"

	"golang.org/x/sys/windows"
)

const (
	errEADDRNOTAVAIL   = windows.WSAEADDRNOTAVAIL
	errEADDRINUSE      = windows.WSAEADDRINUSE
	errECONNABORTED    = windows.WSAECONNABORTED
	errECONNREFUSED    = windows.WSAECONNREFUSED
	errECONNRESET      = windows.WSAECONNRESET
	errEHOSTUNREACH    = windows.WSAEHOSTUNREACH
	errEINVAL          = windows.WSAEINVAL
	errEINTR           = windows.WSAEINTR
	errENETDOWN        = windows.WSAENETDOWN
	errENETUNREACH     = windows.WSAENETUNREACH
	errENOBUFS         = windows.WSAENOBUFS
	errENOTCONN        = windows.WSAENOTCONN
	errEPROTONOSUPPORT = windows.WSAEPROTONOSUPPORT
	errETIMEDOUT       = windows.WSAETIMEDOUT
	errEWOULDBLOCK     = windows.WSAEWOULDBLOCK
)

// Classify maps a raw OS error to its taxonomy Kind.
func Classify(err error) Kind {
	if err == nil {
		return OK
	}
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return Unknown
	}
	switch errno {
	case errEWOULDBLOCK, errEINTR:
		return WouldBlock
	case errECONNREFUSED:
		return ConnectionRefused
	case errECONNRESET:
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
