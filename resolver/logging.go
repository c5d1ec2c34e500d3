package resolver

import (
	"io"
	"log/slog"
	"sync/atomic"
)

// logger is the package-level structured logger, grounded on the
// teacher pack's bassosimone/nop DNSExchangeLogContext pattern
// (dnsexchange.go): a swappable slog.Logger defaulting to discard,
// logging at info level with structured key-value fields.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLogger installs l as the package-level logger for subsequent
// resolver operations. Passing nil restores the discard logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

func currentLogger() *slog.Logger {
	return logger.Load()
}
