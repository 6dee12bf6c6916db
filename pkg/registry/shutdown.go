package registry

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// minShutdownShare is the floor for one session's slice of the overall
// shutdown deadline. Even with the budget exhausted, each remaining
// session gets this long to stop.
const minShutdownShare = time.Millisecond

// ShutdownAll stops every live session, dividing the deadline fairly: each
// session in turn receives the remaining budget split across the sessions
// still waiting, never less than minShutdownShare. A session that does not
// stop within its share is abandoned and ShutdownAll moves on. Returns
// ErrShutdownDeadline (wrapped with the count) if any session was
// abandoned.
func (r *Registry) ShutdownAll(ctx context.Context, deadline time.Duration) error {
	_, span := r.tracer.Start(ctx, "simbridge.shutdown_all",
		trace.WithAttributes(attribute.Int64("simbridge.deadline_ms", deadline.Milliseconds())))
	defer span.End()

	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess.Alive() {
			live = append(live, sess)
		}
	}
	r.sessions = make(map[ConfigKey]*Session)
	r.mu.Unlock()

	span.SetAttributes(attribute.Int("simbridge.session_count", len(live)))
	if len(live) == 0 {
		return nil
	}

	stopAt := time.Now().Add(deadline)
	abandoned := 0
	for i, sess := range live {
		share := time.Until(stopAt) / time.Duration(len(live)-i)
		if share < minShutdownShare {
			share = minShutdownShare
		}
		if !r.stopSession(sess, share) {
			abandoned++
			r.logger.Warn("abandoning session", "key", sess.Key, "id", sess.ID, "share", share)
		}
	}

	if abandoned > 0 {
		span.SetAttributes(attribute.Int("simbridge.abandoned", abandoned))
		return fmt.Errorf("%w: %d of %d sessions still running", ErrShutdownDeadline, abandoned, len(live))
	}
	return nil
}

// stopSession signals the session's shutdown endpoint and waits up to share
// for its serving goroutine to exit. Reports whether the session stopped.
func (r *Registry) stopSession(sess *Session, share time.Duration) bool {
	end := time.Now().Add(share)

	client := &http.Client{Timeout: share}
	resp, err := client.Get(sess.ActionURL("shutdown"))
	if err != nil {
		r.logger.Debug("shutdown signal failed", "key", sess.Key, "error", err)
	} else {
		resp.Body.Close()
	}

	wait := time.Until(end)
	if wait < 0 {
		wait = 0
	}
	select {
	case <-sess.done:
		r.logger.Debug("session stopped", "key", sess.Key, "id", sess.ID)
		return true
	case <-time.After(wait):
		return false
	}
}

// raiseSignal restores default handling for sig and re-delivers it so
// process termination proceeds once the sweep is done. Swapped out in tests.
var raiseSignal = func(sig os.Signal) {
	signal.Reset(sig)
	if s, ok := sig.(syscall.Signal); ok {
		syscall.Kill(os.Getpid(), s)
		return
	}
	os.Exit(1)
}

// RegisterAtExit runs ShutdownAll with the given deadline when the process
// receives SIGINT or SIGTERM, then re-raises the signal so the process still
// terminates. A sweep that overruns never blocks exit. The returned stop
// function unregisters the handler without running the sweep.
func (r *Registry) RegisterAtExit(deadline time.Duration) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-ch
		if !ok {
			return
		}
		if err := r.ShutdownAll(context.Background(), deadline); err != nil {
			r.logger.Warn("exit sweep incomplete", "error", err)
		}
		signal.Stop(ch)
		raiseSignal(sig)
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
