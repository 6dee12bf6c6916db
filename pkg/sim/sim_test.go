package sim

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStepRunsEveryNodeOnce(t *testing.T) {
	m := NewModel(testLogger())

	var aCalls, bCalls int
	m.AddNode("a", 0, 1, func(tm float64, x []float64) []float64 {
		aCalls++
		return []float64{1}
	})
	m.AddNode("b", 0, 1, func(tm float64, x []float64) []float64 {
		bCalls++
		return []float64{2}
	})

	m.Step(0.001, 0.001)
	m.Step(0.002, 0.001)

	if aCalls != 2 || bCalls != 2 {
		t.Errorf("calls = (%d, %d), want (2, 2)", aCalls, bCalls)
	}
}

func TestConnectionDeliversPreviousOutput(t *testing.T) {
	m := NewModel(testLogger())

	src := m.AddNode("src", 0, 1, func(tm float64, x []float64) []float64 {
		return []float64{3}
	})

	var got float64
	dst := m.AddNode("dst", 1, 0, func(tm float64, x []float64) []float64 {
		got = x[0]
		return nil
	})

	m.Connect(src, dst, 0)

	m.Step(0.001, 0.001)
	if got != 0 {
		t.Errorf("first step input = %v, want 0 (previous output)", got)
	}

	m.Step(0.002, 0.001)
	if got != 3 {
		t.Errorf("second step input = %v, want 3", got)
	}
}

func TestSynapseFiltersSignal(t *testing.T) {
	m := NewModel(testLogger())

	src := m.AddNode("src", 0, 1, func(tm float64, x []float64) []float64 {
		return []float64{1}
	})
	var got float64
	dst := m.AddNode("dst", 1, 0, func(tm float64, x []float64) []float64 {
		got = x[0]
		return nil
	})
	m.Connect(src, dst, 0.01)

	for i := 0; i < 3; i++ {
		m.Step(float64(i+1)*0.001, 0.001)
	}
	if got <= 0 || got >= 1 {
		t.Errorf("filtered input = %v, want between 0 and 1", got)
	}
}

func TestRemoveConnectionIdempotent(t *testing.T) {
	m := NewModel(testLogger())
	a := m.AddNode("a", 0, 1, func(tm float64, x []float64) []float64 { return []float64{0} })
	b := m.AddNode("b", 1, 0, func(tm float64, x []float64) []float64 { return nil })
	c := m.Connect(a, b, 0)

	m.RemoveConnection(c)
	m.RemoveConnection(c)
	m.RemoveConnection(nil)

	if m.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount() = %d, want 0", m.ConnectionCount())
	}
}

func TestRemoveNodeDropsEdges(t *testing.T) {
	m := NewModel(testLogger())
	a := m.AddNode("a", 0, 1, func(tm float64, x []float64) []float64 { return []float64{0} })
	b := m.AddNode("b", 1, 0, func(tm float64, x []float64) []float64 { return nil })
	m.Connect(a, b, 0)

	m.RemoveNode(b)
	m.RemoveNode(b)

	if m.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", m.NodeCount())
	}
	if m.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount() = %d, want 0", m.ConnectionCount())
	}
}

func TestStepperDrivesModel(t *testing.T) {
	m := NewModel(testLogger())

	var ticks atomic.Int64
	m.AddNode("counter", 0, 0, func(tm float64, x []float64) []float64 {
		ticks.Add(1)
		return nil
	})

	s := NewStepper(m, 0.001, time.Millisecond, testLogger())
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	if ticks.Load() < 3 {
		t.Errorf("ticks = %d, want >= 3", ticks.Load())
	}
	if s.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestStepperStopIdempotent(t *testing.T) {
	m := NewModel(testLogger())
	s := NewStepper(m, 0.001, time.Millisecond, testLogger())

	s.Stop() // never started

	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestRemoveDuringStepping(t *testing.T) {
	m := NewModel(testLogger())
	src := m.AddNode("src", 0, 1, func(tm float64, x []float64) []float64 { return []float64{1} })
	dst := m.AddNode("dst", 1, 0, func(tm float64, x []float64) []float64 { return nil })
	c := m.Connect(src, dst, 0)

	s := NewStepper(m, 0.001, 0, testLogger())
	s.Start(context.Background())

	time.Sleep(5 * time.Millisecond)
	m.RemoveConnection(c)
	m.RemoveNode(dst)
	time.Sleep(5 * time.Millisecond)

	s.Stop()

	if m.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", m.NodeCount())
	}
}
