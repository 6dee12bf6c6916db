package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusMiddlewareServes(t *testing.T) {
	mw := Prometheus(WithRegistry(prometheus.NewRegistry()))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/pointer", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestRecordHooksWithoutInit(t *testing.T) {
	// Recording before Prometheus() has initialized the metrics must not panic.
	saved := globalMetrics
	globalMetrics = nil
	defer func() { globalMetrics = saved }()

	RecordSessionCreate()
	RecordSessionReuse()
	RecordSessionClose()
	RecordTick()
	RecordDrained(3)
	RecordDrainError()
	RecordDrainDuration(time.Millisecond)
}

func TestOpenTelemetryMiddlewarePassesThrough(t *testing.T) {
	mw := OpenTelemetry(WithSessionKey("/tmp/cfg-123"))

	var called bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("next handler was not called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestOpenTelemetryFilterSkips(t *testing.T) {
	mw := OpenTelemetry(WithRequestFilter(func(r *http.Request) bool {
		return r.URL.Path != "/healthz"
	}))

	var called bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !called {
		t.Error("filtered request should still reach the next handler")
	}
}
