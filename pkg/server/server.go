// Package server implements the visualization server: an HTTP/WebSocket
// endpoint that serves the index page and static assets, streams each
// attached component's telemetry to connected clients as text frames, and
// accepts a coordinated shutdown signal.
//
// A Server owns its components. The network side only ever drains them; the
// simulation side only ever ticks them. Servers bind before serving so the
// port is known to the caller even when an ephemeral port is requested.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simbridge-dev/simbridge/pkg/component"
	"github.com/simbridge-dev/simbridge/pkg/middleware"
)

// Server is a single visualization server instance.
type Server struct {
	config *Config

	// Attached components by stream name
	components map[string]*component.Component
	mu         sync.RWMutex

	// Network state
	listener   net.Listener
	httpServer *http.Server
	startMu    sync.Mutex

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// Shutdown coordination
	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	logger *slog.Logger
}

// New creates a Server with the given configuration.
func New(config *Config, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		// Fill in defaults for any unset fields
		defaults := DefaultConfig()
		config = config.Clone()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.Title == "" {
			config.Title = defaults.Title
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.PollInterval == 0 {
			config.PollInterval = defaults.PollInterval
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:     config,
		components: make(map[string]*component.Component),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		shutdownCh: make(chan struct{}),
		logger:     logger.With("component", "viz_server"),
	}
}

// Attach registers a component under the given stream name.
func (s *Server) Attach(name string, c *component.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.components[name]; exists {
		return &ServerError{Op: "attach " + name, Err: ErrComponentExists}
	}
	s.components[name] = c
	return nil
}

// Detach removes a component by name and unwires it from its model.
// Detaching an unknown name is a no-op.
func (s *Server) Detach(name string) {
	s.mu.Lock()
	c, ok := s.components[name]
	delete(s.components, name)
	s.mu.Unlock()

	if ok {
		c.Detach()
	}
}

// Component returns the component attached under name.
func (s *Server) Component(name string) (*component.Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[name]
	return c, ok
}

// ComponentNames returns attached stream names in sorted order.
func (s *Server) ComponentNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the server's HTTP handler for mounting in external
// routers or tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if !s.config.DisableTracing {
		r.Use(middleware.OpenTelemetry(middleware.WithSessionKey(s.config.Key)))
	}
	if !s.config.DisableMetrics {
		r.Use(middleware.Prometheus())
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/shutdown", s.handleShutdown)
	r.Get("/ws/{component}", s.handleStream)
	// The embedded FS is rooted at the package dir, so request paths like
	// /static/app.js already match the FS layout.
	r.Handle("/static/*", http.FileServer(http.FS(staticFS)))

	return r
}

// Start binds the listener. It returns once the port is known; call Serve
// to begin accepting connections.
func (s *Server) Start() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return &ServerError{Op: "listen " + s.config.Address, Err: err}
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server bound", "addr", ln.Addr().String(), "key", s.config.Key)
	return nil
}

// Serve accepts connections and blocks until the server is shut down.
func (s *Server) Serve() error {
	s.startMu.Lock()
	ln := s.listener
	hs := s.httpServer
	s.startMu.Unlock()

	if ln == nil {
		return ErrNotStarted
	}

	err := hs.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Run binds and serves in one call, for standalone use.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.Serve()
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Shutdown gracefully stops the server: open streams are released, attached
// components are detached from their model, and the HTTP server drains
// within ctx. Shutdown is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)

		// Components are always unwired before the owning model goes away.
		s.mu.Lock()
		components := s.components
		s.components = make(map[string]*component.Component)
		s.mu.Unlock()
		for _, c := range components {
			c.Detach()
		}

		s.startMu.Lock()
		hs := s.httpServer
		s.startMu.Unlock()
		if hs != nil {
			err = hs.Shutdown(ctx)
		}

		s.logger.Info("server shutdown complete", "key", s.config.Key)
	})
	return err
}

// ShuttingDown reports whether a shutdown has been requested.
func (s *Server) ShuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleShutdown acknowledges the request, then stops the server in the
// background so the response can still be delivered. This is the endpoint
// the lifecycle manager hits during its shutdown sweep.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("shutting down\n"))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			s.logger.Warn("shutdown drain incomplete", "error", err)
		}
	}()
}
