// Package notebook embeds a live visualization session in a notebook or
// other host environment. A Viz resolves its session through a registry,
// so evaluating the same cell twice reconnects to the running server
// instead of starting a second one.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simbridge-dev/simbridge/pkg/registry"
)

// ErrNotAlive is returned when the session's server cannot be reached
// before the readiness timeout, or died while waiting.
var ErrNotAlive = errors.New("notebook: server is not alive")

const (
	defaultHeight       = 600
	defaultReadyTimeout = 5 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

var embedTemplate = template.Must(template.New("embed").Parse(
	`<iframe src="{{.URL}}" width="100%" height="{{.Height}}" frameborder="0"></iframe>`))

// Options configure a Viz. The zero value is usable.
type Options struct {
	// ConfigPath keys the session. Two Viz values with the same path share
	// one server. When empty, a temp file is created and owned by the Viz.
	ConfigPath string

	// Registry resolves sessions. Defaults to registry.Default.
	Registry *registry.Registry

	// Height is the embed iframe height in pixels. Defaults to 600.
	Height int

	// ReadyTimeout bounds the wait for the server to accept connections.
	// Defaults to 5s.
	ReadyTimeout time.Duration

	// PollInterval is the readiness probe interval. Defaults to 10ms.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Viz is a handle on one visualization session from the host's side.
type Viz struct {
	key  registry.ConfigKey
	reg  *registry.Registry
	sess *registry.Session

	height       int
	readyTimeout time.Duration
	pollInterval time.Duration

	ownsConfig bool
	logger     *slog.Logger
}

// New resolves (or creates) the session for the configured key and returns
// a handle on it. The factory builds the server when no live session exists.
func New(ctx context.Context, factory registry.Factory, opts Options) (*Viz, error) {
	v := &Viz{
		reg:          opts.Registry,
		height:       opts.Height,
		readyTimeout: opts.ReadyTimeout,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
	if v.reg == nil {
		v.reg = registry.Default
	}
	if v.height <= 0 {
		v.height = defaultHeight
	}
	if v.readyTimeout <= 0 {
		v.readyTimeout = defaultReadyTimeout
	}
	if v.pollInterval <= 0 {
		v.pollInterval = defaultPollInterval
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	v.logger = v.logger.With("component", "notebook")

	path := opts.ConfigPath
	if path == "" {
		f, err := os.CreateTemp("", "simbridge-*.yaml")
		if err != nil {
			return nil, fmt.Errorf("notebook: creating session key file: %w", err)
		}
		f.Close()
		path = f.Name()
		v.ownsConfig = true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("notebook: resolving config path: %w", err)
	}
	v.key = registry.ConfigKey(abs)

	sess, err := v.reg.GetOrCreate(ctx, v.key, factory)
	if err != nil {
		return nil, err
	}
	v.sess = sess
	v.logger.Debug("session resolved", "key", v.key, "port", sess.Port)
	return v, nil
}

// Key returns the configuration key this Viz is bound to.
func (v *Viz) Key() registry.ConfigKey { return v.key }

// Session returns the underlying session.
func (v *Viz) Session() *registry.Session { return v.sess }

// URL returns the session's base URL.
func (v *Viz) URL() string { return v.sess.URL() }

// ActionURL returns the URL of a sub-action path on the session.
func (v *Viz) ActionURL(action string) string { return v.sess.ActionURL(action) }

// EmbedHTML renders the iframe snippet pointing at the session.
func (v *Viz) EmbedHTML() (string, error) {
	var b strings.Builder
	err := embedTemplate.Execute(&b, struct {
		URL    string
		Height int
	}{v.URL(), v.height})
	if err != nil {
		return "", fmt.Errorf("notebook: rendering embed: %w", err)
	}
	return b.String(), nil
}

// Display waits for the session to accept connections and returns the
// embed HTML. If the server dies or the readiness timeout elapses, it
// returns ErrNotAlive instead of hanging.
func (v *Viz) Display(ctx context.Context) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, v.readyTimeout)
	defer cancel()
	if err := registry.WaitUntilReady(wctx, v.sess, v.pollInterval); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAlive, err)
	}
	return v.EmbedHTML()
}

// Close stops this Viz's session, releases it from the registry, and
// removes the key file if the Viz created it.
func (v *Viz) Close(ctx context.Context) error {
	err := v.sess.Server.Shutdown(ctx)
	v.reg.Release(v.key)
	if v.ownsConfig {
		if rmErr := os.Remove(string(v.key)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			v.logger.Warn("removing session key file", "error", rmErr)
		}
	}
	return err
}
