package registry

import (
	"fmt"
	"time"

	"github.com/simbridge-dev/simbridge/pkg/server"
)

// defaultHost is where sessions are reachable. Visualization servers bind
// loopback by default; hosts embed the URL in a local display surface.
const defaultHost = "127.0.0.1"

// Session is one live visualization server: the server, the goroutine
// serving it, the port it bound, and the configuration key it was built
// from. Sessions are created and owned by a Registry.
type Session struct {
	// Key is the configuration key the session was built from.
	Key ConfigKey

	// ID uniquely identifies this session instance. A key that is recreated
	// after its server died gets a fresh ID (and a fresh port).
	ID string

	// Server is the owned visualization server.
	Server *server.Server

	// Port is the bound TCP port.
	Port int

	// StartedAt is when the serving goroutine was launched.
	StartedAt time.Time

	// done is closed when the serving goroutine exits. Its state is the
	// authoritative liveness signal.
	done chan struct{}
}

// Alive reports whether the serving goroutine is still running. A session
// whose goroutine has exited is treated as absent by the registry even if
// still present in the map.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when the serving goroutine exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// URL returns the session's base URL.
func (s *Session) URL() string {
	return fmt.Sprintf("http://%s:%d", defaultHost, s.Port)
}

// ActionURL returns the URL of a sub-action path, e.g. ActionURL("shutdown").
func (s *Session) ActionURL(action string) string {
	return s.URL() + "/" + action
}
