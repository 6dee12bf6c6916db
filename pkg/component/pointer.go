package component

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/simbridge-dev/simbridge/pkg/sim"
	"github.com/simbridge-dev/simbridge/pkg/vocab"
)

// pointerThreshold is the similarity above which a vocabulary key is
// reported. This threshold is part of the Pointer transform's contract.
const pointerThreshold = 0.01

// PointerTransform builds a Transform that decodes an output vector into
// symbolic similarity matches against out's vocabulary.
//
// Similarity is the plain inner product against every named basis vector.
// Keys scoring above 0.01 are formatted as "%0.2f<key>" and joined by ";",
// in vocabulary definition order; ties and ordering are inherited from that
// order, never re-sorted by magnitude.
//
// The feedback vector is the neutral symbol of the input vocabulary,
// precomputed here so the tick path never parses anything.
func PointerTransform(out, in *vocab.Vocabulary) (Transform, error) {
	neutral, err := in.Parse("0")
	if err != nil {
		return nil, fmt.Errorf("component: neutral symbol: %w", err)
	}

	return func(t float64, x []float64) (string, []float64) {
		matches, err := out.Similarity(x)
		if err != nil {
			return "", neutral
		}

		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			if m.Similarity > pointerThreshold {
				parts = append(parts, fmt.Sprintf("%0.2f%s", m.Similarity, m.Key))
			}
		}
		return strings.Join(parts, ";"), neutral
	}, nil
}

// AttachPointer creates a Pointer component and wires it into the model
// between src (the observed element's output) and dst (its input).
//
// The wiring is two edges around a fresh callback node: observed output
// flows in through a 0.01 synaptic filter, and the neutral feedback flows
// back out unfiltered. Detach removes both edges and the node.
func AttachPointer(m *sim.Model, src, dst *sim.Node, out, in *vocab.Vocabulary, label string, logger *slog.Logger) (*Component, error) {
	tf, err := PointerTransform(out, in)
	if err != nil {
		return nil, err
	}

	c := New(label, tf, logger)
	node := m.AddNode(label, out.Dimensions(), in.Dimensions(), c.OnTick)
	inEdge := m.Connect(src, node, 0.01)
	outEdge := m.Connect(node, dst, 0)

	c.Wire(func() {
		m.RemoveConnection(inEdge)
		m.RemoveConnection(outEdge)
		m.RemoveNode(node)
	})
	return c, nil
}
