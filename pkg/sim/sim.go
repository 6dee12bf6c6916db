// Package sim provides the simulation-engine side of the telemetry bridge:
// a dataflow model of callback nodes connected by filtered edges, and a
// fixed-step ticker that drives it on its own goroutine.
//
// The bridge only requires three things from an engine: register a per-tick
// callback with fixed input/output dimensionality, wire it into the dataflow
// graph with a synaptic filter parameter per edge, and unwire it again. This
// package implements that contract with a small in-process engine so the
// bridge is runnable and testable end to end.
package sim

import (
	"log/slog"
	"math"
	"sync"
)

// TickFunc is a per-tick node callback. It receives the simulation time and
// the node's summed, filtered input vector and returns the node's output
// vector for this step.
type TickFunc func(t float64, x []float64) []float64

// Node is a callback node in the dataflow graph.
type Node struct {
	id      int
	Label   string
	SizeIn  int
	SizeOut int

	fn TickFunc

	// out is the node's output from the most recent step. Written only while
	// the owning model's lock is held.
	out []float64
}

// Connection is a directed, optionally filtered edge between two nodes.
//
// A positive synapse applies a first-order lowpass to the signal crossing
// the edge; zero passes the source output through unchanged.
type Connection struct {
	id      int
	src     *Node
	dst     *Node
	synapse float64
	state   []float64
}

// Model is a mutable dataflow graph. All mutation and stepping is serialized
// by an internal lock, so nodes and connections may be added or removed
// concurrently with a running Stepper: an in-flight step either sees the
// wiring intact or already removed, never a torn state.
type Model struct {
	mu     sync.Mutex
	nextID int
	nodes  []*Node
	conns  []*Connection

	logger *slog.Logger
}

// NewModel creates an empty model.
func NewModel(logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{logger: logger.With("component", "sim_model")}
}

// AddNode registers a callback node with fixed dimensionality.
func (m *Model) AddNode(label string, sizeIn, sizeOut int, fn TickFunc) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	n := &Node{
		id:      m.nextID,
		Label:   label,
		SizeIn:  sizeIn,
		SizeOut: sizeOut,
		fn:      fn,
		out:     make([]float64, sizeOut),
	}
	m.nodes = append(m.nodes, n)
	return n
}

// RemoveNode unwires a node and drops every connection touching it.
// Removing a node that is absent (or already removed) is a no-op.
func (m *Model) RemoveNode(n *Node) {
	if n == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.conns[:0]
	for _, c := range m.conns {
		if c.src != n && c.dst != n {
			kept = append(kept, c)
		}
	}
	m.conns = kept

	for i, existing := range m.nodes {
		if existing == n {
			m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
			return
		}
	}
}

// Connect wires src's output into dst's input with the given synaptic filter
// parameter. A synapse of 0 means no filtering.
func (m *Model) Connect(src, dst *Node, synapse float64) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	c := &Connection{
		id:      m.nextID,
		src:     src,
		dst:     dst,
		synapse: synapse,
		state:   make([]float64, src.SizeOut),
	}
	m.conns = append(m.conns, c)
	return c
}

// RemoveConnection unwires an edge. Removing an absent edge is a no-op.
func (m *Model) RemoveConnection(c *Connection) {
	if c == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.conns {
		if existing == c {
			m.conns = append(m.conns[:i], m.conns[i+1:]...)
			return
		}
	}
}

// NodeCount returns the number of nodes currently wired into the model.
func (m *Model) NodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// ConnectionCount returns the number of edges currently wired into the model.
func (m *Model) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Step advances the model by one tick of width dt at simulation time t.
//
// Inputs are gathered from the previous step's outputs so evaluation order
// does not matter; every node then runs exactly once.
func (m *Model) Step(t, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Gather inputs from last-step outputs, filtered per edge.
	inputs := make(map[*Node][]float64, len(m.nodes))
	for _, n := range m.nodes {
		inputs[n] = make([]float64, n.SizeIn)
	}
	for _, c := range m.conns {
		in, ok := inputs[c.dst]
		if !ok {
			continue
		}
		signal := c.filtered(c.src.out, dt)
		for i := 0; i < len(in) && i < len(signal); i++ {
			in[i] += signal[i]
		}
	}

	for _, n := range m.nodes {
		out := n.fn(t, inputs[n])
		if len(out) != n.SizeOut {
			m.logger.Warn("node returned wrong output size",
				"node", n.Label, "got", len(out), "want", n.SizeOut)
			out = make([]float64, n.SizeOut)
		}
		n.out = out
	}
}

// filtered applies the edge's lowpass to x, updating the filter state.
func (c *Connection) filtered(x []float64, dt float64) []float64 {
	if c.synapse <= 0 {
		return x
	}
	decay := math.Exp(-dt / c.synapse)
	for i := 0; i < len(c.state) && i < len(x); i++ {
		c.state[i] = decay*c.state[i] + (1-decay)*x[i]
	}
	return c.state
}
