//go:build unix

package engine

import "errors"

// Standard errors returned by reactor back ends.
var (
	ErrFDAlreadyRegistered = errors.New("engine: fd already registered")
	ErrFDNotRegistered     = errors.New("engine: fd not registered")
	ErrEngineClosed        = errors.New("engine: engine is closed")
	ErrAlreadyRunning      = errors.New("engine: Run is already in progress")
)
