// Package metrics defines the Prometheus collectors used by the dedup service
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	AnalysesTotal        *prometheus.CounterVec
	AnalysisDuration     prometheus.Histogram
	SnapshotPairs        prometheus.Histogram
	DuplicatesFound      prometheus.Histogram
	OverrideChangesTotal *prometheus.CounterVec
	SnapshotCacheHits    prometheus.Counter
	SnapshotCacheMisses  prometheus.Counter
	ActiveSessions       prometheus.Gauge
	EventsPublishedTotal *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_analyses_total",
				Help: "All-pairs analyses by outcome (computed, cached, error).",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dedup_analysis_duration_seconds",
				Help:    "Time to load query sets and produce a snapshot.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		SnapshotPairs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dedup_snapshot_pairs",
				Help:    "Number of subcluster pairs per snapshot.",
				Buckets: []float64{0, 1, 10, 45, 190, 1225, 4950, 19900},
			},
		),
		DuplicatesFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dedup_snapshot_duplicates",
				Help:    "Total intersecting queries across all pairs of a snapshot.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
		),
		OverrideChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_override_changes_total",
				Help: "Override mutations by action (toggle, reset, clear).",
			},
			[]string{"action"},
		),
		SnapshotCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_snapshot_cache_hits_total",
				Help: "Snapshots served from the cache.",
			},
		),
		SnapshotCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_snapshot_cache_misses_total",
				Help: "Snapshot cache lookups that had to compute.",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dedup_active_sessions",
				Help: "Analysis sessions currently held in memory.",
			},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_events_published_total",
				Help: "Events published to Kafka by type and status.",
			},
			[]string{"type", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.SnapshotPairs,
		m.DuplicatesFound,
		m.OverrideChangesTotal,
		m.SnapshotCacheHits,
		m.SnapshotCacheMisses,
		m.ActiveSessions,
		m.EventsPublishedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
