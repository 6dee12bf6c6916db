// Package middleware provides observability middleware and recording hooks
// for the telemetry bridge: Prometheus metrics and OpenTelemetry tracing.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "simbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "simbridge",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the bridge.
type metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
	sessionsCreated  prometheus.Counter
	sessionsReused   prometheus.Counter
	sessionsClosed   prometheus.Counter
	ticksTotal       prometheus.Counter
	messagesBuffered prometheus.Counter
	messagesDrained  prometheus.Counter
	drainErrors      prometheus.Counter
	drainDuration    prometheus.Histogram
}

// globalMetrics is the singleton metrics instance, created on first call to
// Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests served by visualization servers",
			ConstLabels: config.ConstLabels,
		}, []string{"path", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"path"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of live visualization server sessions",
			ConstLabels: config.ConstLabels,
		}),

		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_created_total",
			Help:        "Total visualization sessions created",
			ConstLabels: config.ConstLabels,
		}),

		sessionsReused: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_reused_total",
			Help:        "Total get-or-create calls answered by a live session",
			ConstLabels: config.ConstLabels,
		}),

		sessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_closed_total",
			Help:        "Total visualization sessions shut down",
			ConstLabels: config.ConstLabels,
		}),

		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "ticks_total",
			Help:        "Total simulation ticks observed by components",
			ConstLabels: config.ConstLabels,
		}),

		messagesBuffered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_buffered_total",
			Help:        "Total telemetry messages appended to component buffers",
			ConstLabels: config.ConstLabels,
		}),

		messagesDrained: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_drained_total",
			Help:        "Total telemetry messages delivered to client sinks",
			ConstLabels: config.ConstLabels,
		}),

		drainErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drain_errors_total",
			Help:        "Total transient transport errors while draining",
			ConstLabels: config.ConstLabels,
		}),

		drainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drain_duration_seconds",
			Help:        "Duration of component drain calls in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

// Prometheus creates HTTP middleware that collects Prometheus metrics for
// every request served by a visualization server.
//
// Metrics collected:
//   - simbridge_http_requests_total: Counter of requests by path and status
//   - simbridge_http_request_duration_seconds: Histogram of request duration
//   - simbridge_active_sessions: Gauge of live sessions (via Record hooks)
//   - simbridge_sessions_created_total / _reused_total / _closed_total
//   - simbridge_ticks_total, simbridge_messages_buffered_total
//   - simbridge_messages_drained_total, simbridge_drain_errors_total
//   - simbridge_drain_duration_seconds
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Prometheus())
//	r.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Initialize metrics once
	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "" {
				path = "/"
			}

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(path, strconv.Itoa(sw.status)).Inc()
		})
	}
}

// statusWriter captures the response status for request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// RecordSessionCreate records a new session creation.
func RecordSessionCreate() {
	if globalMetrics != nil {
		globalMetrics.sessionsCreated.Inc()
		globalMetrics.activeSessions.Inc()
	}
}

// RecordSessionReuse records a get-or-create call answered by a live session.
func RecordSessionReuse() {
	if globalMetrics != nil {
		globalMetrics.sessionsReused.Inc()
	}
}

// RecordSessionClose records a session shutdown.
func RecordSessionClose() {
	if globalMetrics != nil {
		globalMetrics.sessionsClosed.Inc()
		globalMetrics.activeSessions.Dec()
	}
}

// RecordTick records one simulation tick observed by a component.
func RecordTick() {
	if globalMetrics != nil {
		globalMetrics.ticksTotal.Inc()
		globalMetrics.messagesBuffered.Inc()
	}
}

// RecordDrained records messages delivered to a client sink.
func RecordDrained(count int) {
	if globalMetrics != nil {
		globalMetrics.messagesDrained.Add(float64(count))
	}
}

// RecordDrainError records a transient transport error during a drain call.
func RecordDrainError() {
	if globalMetrics != nil {
		globalMetrics.drainErrors.Inc()
	}
}

// RecordDrainDuration records the duration of a drain call.
func RecordDrainDuration(d time.Duration) {
	if globalMetrics != nil {
		globalMetrics.drainDuration.Observe(d.Seconds())
	}
}
