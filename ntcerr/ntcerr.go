// Package ntcerr defines the error taxonomy used across this module.
//
// Every operation reports its outcome through an *Error carrying one of the
// fixed Kind values below, rather than through type-specific sentinel errors
// or panics. Kind is the thing callers should switch on; the wrapped Errno
// and Op/Addr fields are diagnostic detail.
package ntcerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy from the specification, §7.
type Kind int

const (
	// OK indicates the absence of an error. Zero value so the zero Kind is safe.
	OK Kind = iota
	// Cancelled indicates the operation was aborted at application request.
	Cancelled
	// WouldBlock indicates a non-blocking retry is needed with no more specific classification.
	WouldBlock
	// WouldBlockSend indicates a send deadline expired before the queue drained.
	WouldBlockSend
	// WouldBlockReceive indicates a receive deadline expired before minSize bytes arrived.
	WouldBlockReceive
	// WouldBlockConnect indicates a connect deadline expired before the handle became writable.
	WouldBlockConnect
	// EOF indicates the peer closed its send side and no more data will arrive.
	EOF
	// ConnectionRefused indicates the remote peer actively refused the connection.
	ConnectionRefused
	// ConnectionDead indicates the connection was shut down immediately and operations on it fail.
	ConnectionDead
	// ConnectionReset indicates the peer reset the connection (RST).
	ConnectionReset
	// Unreachable indicates the network or host is unreachable.
	Unreachable
	// AddressInUse indicates bind failed because the address is already bound.
	AddressInUse
	// AddressMalformed indicates an endpoint could not be parsed or is otherwise invalid.
	AddressMalformed
	// Invalid indicates a configuration or argument error not otherwise classified.
	Invalid
	// Limit indicates a reservation (descriptors, connections, queue bytes) denied the operation.
	Limit
	// NotImplemented indicates the requested feature is absent on the running platform.
	NotImplemented
	// Unknown indicates an unmapped system error; RawErrno carries the raw code for diagnostics.
	Unknown
)

// String renders the Kind using the verbatim taxonomy names from spec.md §7.
func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case Cancelled:
		return "CANCELLED"
	case WouldBlock:
		return "WOULD_BLOCK"
	case WouldBlockSend:
		return "WOULD_BLOCK_SEND"
	case WouldBlockReceive:
		return "WOULD_BLOCK_RECEIVE"
	case WouldBlockConnect:
		return "WOULD_BLOCK_CONNECT"
	case EOF:
		return "EOF"
	case ConnectionRefused:
		return "CONNECTION_REFUSED"
	case ConnectionDead:
		return "CONNECTION_DEAD"
	case ConnectionReset:
		return "CONNECTION_RESET"
	case Unreachable:
		return "UNREACHABLE"
	case AddressInUse:
		return "ADDRESS_IN_USE"
	case AddressMalformed:
		return "ADDRESS_MALFORMED"
	case Invalid:
		return "INVALID"
	case Limit:
		return "LIMIT"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	case Unknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// Error is the single error type used throughout the module. Operations
// never raise; they always signal through a result or event carrying one
// of these, per spec.md §9's "exception-based signaling is collapsed"
// design note.
type Error struct {
	Kind Kind
	// Op names the operation that failed (e.g. "connect", "send").
	Op string
	// Addr optionally names the endpoint involved.
	Addr string
	// RawErrno is the underlying OS error, present when Kind == Unknown or
	// when a caller wants the original errno alongside the classified Kind.
	RawErrno error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Addr != "" {
		msg += " (" + e.Addr + ")"
	}
	if e.RawErrno != nil {
		msg += ": " + e.RawErrno.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.RawErrno }

// Is reports whether target carries the same Kind, so callers can use
// errors.Is(err, ntcerr.New(ntcerr.EOF, "", "")) style comparisons, or more
// conveniently errors.Is(err, ntcerr.Sentinel(ntcerr.EOF)).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with the given Kind, operation name, and address.
func New(kind Kind, op, addr string) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr}
}

// Wrap constructs an *Error classifying raw, retaining it as the cause.
func Wrap(kind Kind, op, addr string, raw error) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr, RawErrno: raw}
}

// Sentinel returns a bare *Error carrying only kind, suitable for use with
// errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// KindOf extracts the Kind from err, returning Unknown if err is not an
// *Error (or does not wrap one).
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Fmt builds an *Error with a formatted Op, analogous to fmt.Errorf for the
// rest of the taxonomy.
func Fmt(kind Kind, raw error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), RawErrno: raw}
}
