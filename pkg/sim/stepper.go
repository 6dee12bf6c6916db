package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Stepper drives a Model at a fixed simulation timestep on its own
// goroutine. Wall-clock pacing is optional: with a zero Interval the loop
// free-runs, which is what tests want; interactive use typically paces at
// something close to real time.
type Stepper struct {
	model    *Model
	dt       float64
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	logger *slog.Logger
}

// NewStepper creates a stepper for model with simulation timestep dt.
func NewStepper(model *Model, dt float64, interval time.Duration, logger *slog.Logger) *Stepper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stepper{
		model:    model,
		dt:       dt,
		interval: interval,
		logger:   logger.With("component", "stepper"),
	}
}

// Start launches the tick loop. It returns immediately; the loop runs until
// Stop is called or ctx is cancelled. Starting a running stepper is a no-op.
func (s *Stepper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(ctx, s.done)
	s.logger.Info("stepper started", "dt", s.dt, "interval", s.interval)
}

func (s *Stepper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var ticker *time.Ticker
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}

	t := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t += s.dt
		s.model.Step(t, s.dt)

		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// Stop halts the tick loop and waits for the in-flight step to finish.
// Stopping a stopped stepper is a no-op.
func (s *Stepper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.started = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("stepper stopped")
}

// Running reports whether the tick loop is active.
func (s *Stepper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
