package registry

import "errors"

// Sentinel errors for registry and lifecycle operations.
var (
	// ErrServerDied is returned by WaitUntilReady when the session's serving
	// goroutine terminated before the port became reachable.
	ErrServerDied = errors.New("registry: server died before becoming ready")

	// ErrShutdownDeadline is returned by ShutdownAll when one or more
	// sessions did not stop within their share of the deadline. Those
	// sessions are abandoned, not killed; the error is advisory.
	ErrShutdownDeadline = errors.New("registry: shutdown deadline exceeded")
)
