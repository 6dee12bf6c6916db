package component

import (
	"testing"

	"github.com/simbridge-dev/simbridge/pkg/sim"
	"github.com/simbridge-dev/simbridge/pkg/vocab"
)

func orthoVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v := vocab.New(2)
	if err := v.Add("A", []float64{1, 0}); err != nil {
		t.Fatalf("Add(A): %v", err)
	}
	if err := v.Add("B", []float64{0, 1}); err != nil {
		t.Fatalf("Add(B): %v", err)
	}
	return v
}

func TestPointerTransformRoundTrip(t *testing.T) {
	v := orthoVocab(t)
	tf, err := PointerTransform(v, v)
	if err != nil {
		t.Fatalf("PointerTransform error: %v", err)
	}

	probe, _ := v.Parse("A")
	text, feedback := tf(0.1, probe)

	if text != "1.00A" {
		t.Errorf("text = %q, want %q", text, "1.00A")
	}
	if len(feedback) != 2 || feedback[0] != 0 || feedback[1] != 0 {
		t.Errorf("feedback = %v, want the zero vector", feedback)
	}
}

func TestPointerTransformSplitVector(t *testing.T) {
	v := orthoVocab(t)
	tf, err := PointerTransform(v, v)
	if err != nil {
		t.Fatalf("PointerTransform error: %v", err)
	}

	probe, err := v.Parse("0.5*A + 0.5*B")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	text, _ := tf(0.1, probe)

	if text != "0.50A;0.50B" {
		t.Errorf("text = %q, want %q (vocabulary order, not magnitude order)", text, "0.50A;0.50B")
	}
}

func TestPointerTransformBelowThreshold(t *testing.T) {
	v := orthoVocab(t)
	tf, err := PointerTransform(v, v)
	if err != nil {
		t.Fatalf("PointerTransform error: %v", err)
	}

	text, _ := tf(0.1, []float64{0.005, 0})
	if text != "" {
		t.Errorf("text = %q, want empty (all similarities below 0.01)", text)
	}
}

func TestPointerTickMessageFormat(t *testing.T) {
	v := orthoVocab(t)
	tf, err := PointerTransform(v, v)
	if err != nil {
		t.Fatalf("PointerTransform error: %v", err)
	}
	c := New("pointer", tf, testLogger())

	probe, _ := v.Parse("A")
	c.OnTick(0.1, probe)

	sink := &sliceSink{}
	if err := c.Drain(sink); err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(sink.msgs) != 1 {
		t.Fatalf("drained %d messages, want 1", len(sink.msgs))
	}
	if sink.msgs[0] != "0.1 1.00A" {
		t.Errorf("message = %q, want %q", sink.msgs[0], "0.1 1.00A")
	}
}

func TestPointerTickMessageSplit(t *testing.T) {
	v := orthoVocab(t)
	tf, err := PointerTransform(v, v)
	if err != nil {
		t.Fatalf("PointerTransform error: %v", err)
	}
	c := New("pointer", tf, testLogger())

	probe, _ := v.Parse("0.5*A + 0.5*B")
	c.OnTick(0.1, probe)

	sink := &sliceSink{}
	if err := c.Drain(sink); err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if sink.msgs[0] != "0.1 0.50A;0.50B" {
		t.Errorf("message = %q, want %q", sink.msgs[0], "0.1 0.50A;0.50B")
	}
}

func TestAttachPointerWiresAndDetaches(t *testing.T) {
	v := orthoVocab(t)
	m := sim.NewModel(testLogger())

	src := m.AddNode("src", 0, 2, func(tm float64, x []float64) []float64 {
		return []float64{1, 0}
	})
	dst := m.AddNode("dst", 2, 0, func(tm float64, x []float64) []float64 {
		return nil
	})

	c, err := AttachPointer(m, src, dst, v, v, "pointer", testLogger())
	if err != nil {
		t.Fatalf("AttachPointer error: %v", err)
	}

	if m.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", m.NodeCount())
	}
	if m.ConnectionCount() != 2 {
		t.Errorf("ConnectionCount() = %d, want 2", m.ConnectionCount())
	}

	c.Detach()
	c.Detach()

	if m.NodeCount() != 2 {
		t.Errorf("NodeCount() = %d after Detach, want 2", m.NodeCount())
	}
	if m.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount() = %d after Detach, want 0", m.ConnectionCount())
	}
}

func TestAttachedPointerProducesMessages(t *testing.T) {
	v := orthoVocab(t)
	m := sim.NewModel(testLogger())

	src := m.AddNode("src", 0, 2, func(tm float64, x []float64) []float64 {
		return []float64{1, 0}
	})
	dst := m.AddNode("dst", 2, 0, func(tm float64, x []float64) []float64 {
		return nil
	})

	c, err := AttachPointer(m, src, dst, v, v, "pointer", testLogger())
	if err != nil {
		t.Fatalf("AttachPointer error: %v", err)
	}
	defer c.Detach()

	for i := 0; i < 10; i++ {
		m.Step(float64(i+1)*0.001, 0.001)
	}

	if c.Buffered() != 10 {
		t.Errorf("Buffered() = %d after 10 steps, want 10 (one message per tick)", c.Buffered())
	}
}
