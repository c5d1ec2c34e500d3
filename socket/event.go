package socket

import (
	"time"

	"github.com/bloomberg/ntf-core-sub027/ntcerr"
)

// EventType classifies one delivered Event per spec.md §6.
type EventType int

const (
	Complete EventType = iota
	Error
	Initiated
	Canceled
	Closed
)

func (t EventType) String() string {
	switch t {
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	case Initiated:
		return "INITIATED"
	case Canceled:
		return "CANCELED"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectEvent is delivered to a connect() callback.
type ConnectEvent struct {
	Type EventType
	Err  *ntcerr.Error
}

// SendEvent is delivered to a send() callback. Send-queue watermark
// crossings are not reported through SendEvent; they go to the handler
// installed with SetSendWatermarkHandler.
type SendEvent struct {
	Type         EventType
	BytesWritten int
	Err          *ntcerr.Error
	// Watermark is not set by any socket in this package; it is always the
	// zero WatermarkEvent.
	Watermark WatermarkEvent
}

// ReceiveEvent is delivered to a receive() callback.
type ReceiveEvent struct {
	Type    EventType
	Data    []byte
	Source  Endpoint // datagram sockets only
	Err     *ntcerr.Error
	Timestamp time.Time
}

// AcceptEvent is delivered to an accept() callback.
type AcceptEvent struct {
	Type   EventType
	Stream *Stream
	Err    *ntcerr.Error
}

// ShutdownEvent reports a direction closing, per spec.md §4.5.1.
type ShutdownEvent struct {
	Origin      ShutdownOrigin
	ReadClosed  bool
	WriteClosed bool
	Err         *ntcerr.Error
}

// ShutdownOrigin distinguishes a locally requested shutdown from one
// observed from the peer.
type ShutdownOrigin int

const (
	ShutdownLocal ShutdownOrigin = iota
	ShutdownRemote
)

// UpgradeEvent reports encryption upgrade progress, spec.md §4.5.5.
type UpgradeEvent struct {
	Type EventType
	Err  *ntcerr.Error
}

// DowngradeEvent reports encryption downgrade progress, spec.md §4.5.5.
type DowngradeEvent struct {
	ReadClosed  bool
	WriteClosed bool
	Err         *ntcerr.Error
}

// WatermarkLevel distinguishes which crossing a WatermarkEvent reports.
type WatermarkLevel int

const (
	WatermarkLow WatermarkLevel = iota
	WatermarkHigh
)

// WatermarkEvent reports an at-most-once-per-crossing queue watermark
// transition, spec.md §4.5.4.
type WatermarkEvent struct {
	Level     WatermarkLevel
	QueueSize int
}
