//go:build windows

package netrt

import "github.com/bloomberg/ntf-core-sub027/engine"

// newPlatformEngine constructs the engine back end native to this
// platform: a completion-based Proactor on Windows (IOCP).
func newPlatformEngine() (engine.Engine, error) {
	return engine.NewProactor()
}
