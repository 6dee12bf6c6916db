// Package simbridge provides the public API for the simbridge telemetry
// bridge.
//
// This is the recommended import for most hosts:
//
//	import "github.com/simbridge-dev/simbridge"
//
// Usage:
//
//	voc := simbridge.NewVocabulary(16)
//	model := simbridge.NewModel(nil)
//	c, _ := simbridge.AttachPointer(model, src, dst, voc, voc, "pointer", nil)
//	sess, _ := simbridge.DefaultRegistry.GetOrCreate(ctx, key, factory)
package simbridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/simbridge-dev/simbridge/pkg/component"
	"github.com/simbridge-dev/simbridge/pkg/notebook"
	"github.com/simbridge-dev/simbridge/pkg/registry"
	"github.com/simbridge-dev/simbridge/pkg/server"
	"github.com/simbridge-dev/simbridge/pkg/sim"
	"github.com/simbridge-dev/simbridge/pkg/vocab"
)

// =============================================================================
// Vocabulary
// =============================================================================

// Vocabulary is an ordered set of named basis vectors of fixed
// dimensionality.
type Vocabulary = vocab.Vocabulary

// Match is one vocabulary key with its dot-product similarity.
type Match = vocab.Match

// NewVocabulary creates an empty vocabulary of the given dimensionality.
func NewVocabulary(dims int) *Vocabulary {
	return vocab.New(dims)
}

// =============================================================================
// Components
// =============================================================================

// Transform converts one tick's input vector into display text plus a
// feedback vector.
type Transform = component.Transform

// Component buffers per-tick telemetry between the simulation thread and
// the network consumer.
type Component = component.Component

// Sink receives drained telemetry messages, typically a websocket.
type Sink = component.Sink

// TransportError marks a transient delivery failure; the undelivered
// messages stay buffered for the next drain.
type TransportError = component.TransportError

// NewComponent creates a telemetry component around a transform.
func NewComponent(label string, tf Transform, logger *slog.Logger) *Component {
	return component.New(label, tf, logger)
}

// PointerTransform builds the semantic-pointer transform: matches above
// threshold formatted as "0.85A;0.42B" in vocabulary order.
func PointerTransform(out, in *Vocabulary) (Transform, error) {
	return component.PointerTransform(out, in)
}

// AttachPointer wires a pointer component into a model between src and dst.
func AttachPointer(m *Model, src, dst *Node, out, in *Vocabulary, label string, logger *slog.Logger) (*Component, error) {
	return component.AttachPointer(m, src, dst, out, in, label, logger)
}

// =============================================================================
// Simulation
// =============================================================================

// Model is the dataflow graph the stepper drives.
type Model = sim.Model

// Node is one per-tick callback in the graph.
type Node = sim.Node

// Stepper drives a model on a fixed-dt loop in its own goroutine.
type Stepper = sim.Stepper

// NewModel creates an empty model.
func NewModel(logger *slog.Logger) *Model {
	return sim.NewModel(logger)
}

// NewStepper creates a stepper for the model. interval zero free-runs.
func NewStepper(m *Model, dt float64, interval time.Duration, logger *slog.Logger) *Stepper {
	return sim.NewStepper(m, dt, interval, logger)
}

// =============================================================================
// Server & sessions
// =============================================================================

// Server is the visualization server streaming component telemetry.
type Server = server.Server

// ServerConfig configures a Server.
type ServerConfig = server.Config

// Registry maps configuration keys to live server sessions.
type Registry = registry.Registry

// Session is one live server owned by a registry.
type Session = registry.Session

// ConfigKey identifies a session, commonly a config file path.
type ConfigKey = registry.ConfigKey

// DefaultRegistry is the process-wide session registry.
var DefaultRegistry = registry.Default

// NewServer creates a server; nil config gets defaults.
func NewServer(cfg *ServerConfig, logger *slog.Logger) *Server {
	return server.New(cfg, logger)
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() *ServerConfig {
	return server.DefaultConfig()
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return registry.New(logger)
}

// WaitUntilReady blocks until the session accepts connections, fails fast
// if its server dies, and honors ctx for timeouts.
func WaitUntilReady(ctx context.Context, sess *Session, pollInterval time.Duration) error {
	return registry.WaitUntilReady(ctx, sess, pollInterval)
}

// =============================================================================
// Notebook embedding
// =============================================================================

// Viz embeds a live session in a notebook or other host surface.
type Viz = notebook.Viz

// VizOptions configure NewViz.
type VizOptions = notebook.Options

// NewViz resolves (or creates) the session for the options' config key.
func NewViz(ctx context.Context, factory registry.Factory, opts VizOptions) (*Viz, error) {
	return notebook.New(ctx, factory, opts)
}
