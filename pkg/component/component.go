// Package component implements the telemetry relay between a running
// simulation and a connected client: per-tick callbacks that buffer display
// messages, and a drain path that flushes them to a client sink.
//
// Each Component has exactly one producer (the simulation tick goroutine,
// via OnTick) and exactly one consumer (the connection-serving goroutine,
// via Drain). The buffer is unbounded and strictly FIFO; messages are never
// dropped by the producer and never reordered. A transport failure while
// draining leaves the unsent messages buffered for the next drain call, so
// delivery to the sink is at-least-once.
package component

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simbridge-dev/simbridge/pkg/middleware"
)

// Transform decodes one simulation time-step's raw output vector into a
// display string and the feedback vector to route back into the simulation.
// Transforms must be pure: no blocking, no shared mutable state.
type Transform func(t float64, x []float64) (text string, feedback []float64)

// Sink accepts drained telemetry messages, one text frame per message.
type Sink interface {
	WriteText(msg string) error
}

// TransportError wraps a sink write failure. It is transient: the failed
// message and everything after it stay buffered, and draining resumes on the
// next call.
type TransportError struct {
	Component string
	Err       error
}

// Error returns the error message with component context.
func (e *TransportError) Error() string {
	return fmt.Sprintf("component %s: transport: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Component relays one visualization element's telemetry. Create it with
// New, wire it into a model (see AttachPointer), serve it via Drain, and
// Detach it when the element is removed.
type Component struct {
	label     string
	transform Transform

	// buf holds formatted messages oldest-first. One producer goroutine
	// appends, one consumer goroutine pops; the mutex provides the
	// happens-before edge between the two.
	mu  sync.Mutex
	buf []string

	// unwire removes the component's dataflow edges from the model.
	wireMu sync.Mutex
	unwire func()

	ticks   atomic.Uint64
	drained atomic.Uint64

	logger *slog.Logger
}

// New creates a Component with the given transform. The component is not
// wired into any model until Wire is called.
func New(label string, transform Transform, logger *slog.Logger) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	return &Component{
		label:     label,
		transform: transform,
		logger:    logger.With("component", "viz_component", "label", label),
	}
}

// Label returns the component's display label.
func (c *Component) Label() string {
	return c.label
}

// OnTick is the per-tick callback, invoked synchronously on the simulation's
// tick goroutine. It applies the transform, appends exactly one message to
// the buffer, and returns the feedback vector. It never blocks on the
// network layer.
func (c *Component) OnTick(t float64, x []float64) []float64 {
	text, feedback := c.transform(t, x)
	msg := fmt.Sprintf("%g %s", t, text)

	c.mu.Lock()
	c.buf = append(c.buf, msg)
	c.mu.Unlock()

	c.ticks.Add(1)
	middleware.RecordTick()
	return feedback
}

// Drain flushes buffered messages to sink in FIFO order until the buffer is
// empty. On a sink write failure it stops for this call, keeps the failed
// message and everything newer buffered, and returns a *TransportError.
//
// Drain is meant to be called by a single connection-serving goroutine at
// its own pace.
func (c *Component) Drain(sink Sink) error {
	start := time.Now()
	defer middleware.RecordDrainDuration(time.Since(start))

	sent := 0
	for {
		c.mu.Lock()
		if len(c.buf) == 0 {
			c.mu.Unlock()
			break
		}
		msg := c.buf[0]
		c.mu.Unlock()

		if err := sink.WriteText(msg); err != nil {
			middleware.RecordDrainError()
			c.logger.Debug("drain halted", "sent", sent, "error", err)
			return &TransportError{Component: c.label, Err: err}
		}

		// Pop only after the write succeeded so a failed message is retried
		// on the next drain call.
		c.mu.Lock()
		c.buf = c.buf[1:]
		c.mu.Unlock()

		sent++
	}

	if sent > 0 {
		c.drained.Add(uint64(sent))
		middleware.RecordDrained(sent)
	}
	return nil
}

// Wire installs the closure that removes the component's dataflow edges.
// It is called once, by whatever attaches the component to a model.
func (c *Component) Wire(unwire func()) {
	c.wireMu.Lock()
	defer c.wireMu.Unlock()
	c.unwire = unwire
}

// Detach idempotently removes the component's wiring from the live model.
// It is safe to call if the model has already been torn down (no-op) and
// safe to call concurrently with an in-flight OnTick or Drain.
func (c *Component) Detach() {
	c.wireMu.Lock()
	unwire := c.unwire
	c.unwire = nil
	c.wireMu.Unlock()

	if unwire != nil {
		unwire()
		c.logger.Debug("detached")
	}
}

// Buffered returns the number of messages awaiting drain.
func (c *Component) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Ticks returns the total number of ticks observed.
func (c *Component) Ticks() uint64 {
	return c.ticks.Load()
}

// Drained returns the total number of messages delivered to the sink.
func (c *Component) Drained() uint64 {
	return c.drained.Load()
}
