package server

import (
	"net/http"
	"time"
)

// Config holds configuration for a visualization server.
type Config struct {
	// Address is the listen address. Default: "127.0.0.1:0" (ephemeral port).
	Address string

	// Title is the index page title. Default: "simbridge".
	Title string

	// Key is the configuration key this server was built from. Attached to
	// traces and the index page; empty is fine for standalone servers.
	Key string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 1024.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 1024.
	WriteBufferSize int

	// CheckOrigin validates WebSocket upgrade origins.
	// Default: allow all (the server binds to loopback by default).
	CheckOrigin func(r *http.Request) bool

	// PollInterval is how often each client connection drains its component.
	// Default: 10 milliseconds.
	PollInterval time.Duration

	// WriteTimeout is the per-frame write deadline on client connections.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds the graceful drain triggered by the shutdown
	// endpoint. Default: 5 seconds.
	ShutdownTimeout time.Duration

	// DisableMetrics turns off the Prometheus middleware and the /metrics
	// endpoint. Metrics are on by default; the inverted flag keeps the
	// zero-value Config consistent with DefaultConfig.
	DisableMetrics bool

	// DisableTracing turns off the OpenTelemetry span around each request.
	// Tracing is on by default.
	DisableTracing bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         "127.0.0.1:0",
		Title:           "simbridge",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
		PollInterval:    10 * time.Millisecond,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
