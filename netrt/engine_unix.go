//go:build unix

package netrt

import "github.com/bloomberg/ntf-core-sub027/engine"

// newPlatformEngine constructs the engine back end native to this
// platform: a readiness-based Reactor on Unix (epoll/kqueue/poll).
func newPlatformEngine() (engine.Engine, error) {
	return engine.NewReactor()
}
