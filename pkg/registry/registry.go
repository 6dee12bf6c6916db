package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/simbridge-dev/simbridge/pkg/middleware"
	"github.com/simbridge-dev/simbridge/pkg/server"
)

// ConfigKey identifies a visualization session. Two callers presenting the
// same key share one server; a typical key is the absolute path of the
// session's configuration file.
type ConfigKey string

// Factory builds a configured, unstarted server for a session. It is called
// under the registry lock, at most once per live session.
type Factory func() (*server.Server, error)

// Registry maps configuration keys to live server sessions. It guarantees
// at most one live session per key: concurrent GetOrCreate calls for the
// same key observe a single creation and every other caller reuses it.
type Registry struct {
	mu       sync.Mutex
	sessions map[ConfigKey]*Session

	// everKeys records every key a session was ever created for, surviving
	// Release and the shutdown sweep.
	everKeys map[ConfigKey]struct{}

	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an empty registry. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[ConfigKey]*Session),
		everKeys: make(map[ConfigKey]struct{}),
		logger:   logger.With("component", "registry"),
		tracer:   otel.Tracer("simbridge/registry"),
	}
}

// Default is the process-wide registry used when callers do not carry one.
var Default = New(nil)

// GetOrCreate returns the live session for key, creating it if no live
// session exists. A session whose serving goroutine has exited is replaced
// by a fresh one with a new ID and port; the dead entry is forgotten.
func (r *Registry) GetOrCreate(ctx context.Context, key ConfigKey, factory Factory) (*Session, error) {
	_, span := r.tracer.Start(ctx, "simbridge.get_or_create",
		trace.WithAttributes(attribute.String("simbridge.config_key", string(key))))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[key]; ok {
		if sess.Alive() {
			middleware.RecordSessionReuse()
			span.SetAttributes(attribute.Bool("simbridge.session_reused", true))
			r.logger.Debug("reusing session", "key", key, "id", sess.ID, "port", sess.Port)
			return sess, nil
		}
		r.logger.Info("session died, recreating", "key", key, "id", sess.ID)
		delete(r.sessions, key)
	}

	srv, err := factory()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("registry: session factory for %q: %w", key, err)
	}
	if err := srv.Start(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("registry: starting session for %q: %w", key, err)
	}

	sess := &Session{
		Key:       key,
		ID:        uuid.NewString(),
		Server:    srv,
		Port:      srv.Port(),
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(sess.done)
		defer middleware.RecordSessionClose()
		if err := srv.Serve(); err != nil {
			r.logger.Error("session serve failed", "key", key, "id", sess.ID, "error", err)
		}
	}()
	r.sessions[key] = sess
	r.everKeys[key] = struct{}{}

	middleware.RecordSessionCreate()
	span.SetAttributes(attribute.Int("simbridge.session_port", sess.Port))
	r.logger.Info("session created", "key", key, "id", sess.ID, "port", sess.Port)
	return sess, nil
}

// Get returns the session for key if one exists and is alive.
func (r *Registry) Get(key ConfigKey) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[key]
	if !ok || !sess.Alive() {
		return nil, false
	}
	return sess, true
}

// Release forgets the session for key without stopping it. The next
// GetOrCreate for the key builds a fresh session.
func (r *Registry) Release(key ConfigKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// AllKeys returns every key a session was ever created for, in sorted
// order. Keys stay listed after their sessions die, are released, or are
// swept by ShutdownAll.
func (r *Registry) AllKeys() []ConfigKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]ConfigKey, 0, len(r.everKeys))
	for k := range r.everKeys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sess := range r.sessions {
		if sess.Alive() {
			n++
		}
	}
	return n
}

// WaitUntilReady blocks until the session's port accepts TCP connections,
// probing every pollInterval. It returns ErrServerDied if the serving
// goroutine exits first, or the context error on cancellation.
func WaitUntilReady(ctx context.Context, sess *Session, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	addr := net.JoinHostPort(defaultHost, fmt.Sprintf("%d", sess.Port))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.done:
			return ErrServerDied
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, pollInterval)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.done:
			return ErrServerDied
		case <-time.After(pollInterval):
		}
	}
}
