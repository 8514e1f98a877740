// Package telemetry provides application-level observability for the Zenith
// Gateway: structured logging setup and Prometheus metric registration.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the main router at GET /metrics in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4), intended to be scraped
// every 15–60 seconds.
//
// # Label Cardinality
//
// Request metrics are labelled by the upstream target HOST (e.g.
// "api.example.com"), never by the full proxied URL, to prevent unbounded
// label cardinality from user-supplied path segments. Requests that never
// reach target extraction (health checks, unmatched routes) use the literal
// target "none".
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Proxy traffic metrics.
//
// RequestsTotal is a CounterVec with labels {method, status, target} counting
// every request handled by the router, including rejections. ErrorsTotal
// counts the subset with status >= 400.
//
// Example PromQL queries:
//   - Request rate by upstream:  sum by (target) (rate(zenith_http_requests_total[5m]))
//   - Error ratio:               sum(rate(zenith_http_errors_total[5m])) / sum(rate(zenith_http_requests_total[5m]))
//
// RequestDuration is a HistogramVec labelled by {target}; its _sum and _count
// series give total latency and request counts per upstream.
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenith_http_requests_total",
			Help: "Total HTTP requests handled, by method, status code, and upstream target host.",
		},
		[]string{"method", "status", "target"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenith_http_errors_total",
			Help: "Total HTTP error responses (status >= 400), by method, status code, and upstream target host.",
		},
		[]string{"method", "status", "target"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zenith_http_request_duration_seconds",
			Help:    "Histogram of end-to-end request latencies, by upstream target host.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"target"},
	)
)

// Admission pipeline metrics.
//
// RejectionsTotal is a CounterVec with label {reason} counting requests
// stopped before forwarding. Reasons are the problem slugs (unauthorized,
// rate-limited, quota-exceeded, forbidden) plus ssrf-blocked.
//
// LimiterFailOpenTotal counts requests admitted because the shared counter
// store failed mid-flight. A sustained non-zero rate means plan limits are
// not being enforced.
var (
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenith_rejections_total",
			Help: "Total requests rejected by the admission pipeline, by reason slug.",
		},
		[]string{"reason"},
	)

	LimiterFailOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_limiter_fail_open_total",
			Help: "Total requests admitted without limit enforcement due to counter store failures.",
		},
	)
)

// Usage pipeline metrics.
//
// WorkerQueueSize is a Gauge holding the number of usage records pending in
// the durable queue; it is refreshed by the flush worker each cycle, so a
// steadily climbing value indicates the batch writes are failing or falling
// behind. UsageRecordsDroppedTotal counts records discarded because the
// in-process submission buffer was full — the enqueue path never blocks the
// client response, so overflow is shed rather than queued.
var (
	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenith_worker_queue_size",
			Help: "Current number of usage records pending in the durable queue.",
		},
	)

	UsageRecordsFlushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_usage_records_flushed_total",
			Help: "Total usage records successfully persisted by the flush worker.",
		},
	)

	UsageRecordsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_usage_records_dropped_total",
			Help: "Total usage records dropped because the submission buffer was full.",
		},
	)
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB pool. It is sampled every 30 seconds by StartDBStatsCollector
// rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "zenith_db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
