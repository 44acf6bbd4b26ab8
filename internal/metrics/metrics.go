// Package metrics exposes Prometheus instrumentation for the matchmaking
// facade. Grounded on pkg/infra/metrics/prometheus.go's promauto-registered
// vectors, request middleware, and /metrics handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// MatchesFormed counts matches that cleared launch and were bound to
	// players, by pool and match type.
	MatchesFormed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_matches_formed_total",
			Help: "Total matches formed and launched",
		},
		[]string{"pool_name", "match_type"},
	)

	// WaitingOutcomes counts a reenter poll that did not form a match, by
	// the stage at which formation stopped.
	WaitingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_waiting_total",
			Help: "Total reenter polls that returned waiting, by reason",
		},
		[]string{"pool_name", "reason"},
	)

	// LockContention counts a reenter poll that found the per-pool match
	// creation lock already held by another task.
	LockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_lock_contention_total",
			Help: "Total reenter polls that found the pool lock already held",
		},
		[]string{"pool_name"},
	)

	// LaunchAttempts counts outbound launch POSTs to candidate game
	// servers, by region group and outcome.
	LaunchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_launch_attempts_total",
			Help: "Total launch attempts against candidate game servers",
		},
		[]string{"region_group", "outcome"},
	)

	// QueueSnapshotSize observes how many players were present in a pool
	// at the moment its snapshot was taken for formation.
	QueueSnapshotSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchmaking_queue_snapshot_size",
			Help:    "Player count in a pool snapshot at formation time",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"pool_name"},
	)

	// ServerErrors counts reenter polls that surfaced server_error to the
	// client.
	ServerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_server_errors_total",
			Help: "Total reenter polls that surfaced a server_error status",
		},
		[]string{"pool_name"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency for every non-/metrics
// request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// Handler serves the Prometheus exposition format at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordMatchFormed records a successfully launched match.
func RecordMatchFormed(poolName, matchType string) {
	MatchesFormed.WithLabelValues(poolName, matchType).Inc()
}

// RecordWaiting records a poll that returned waiting for the given reason
// (e.g. "below_threshold", "no_candidates", "launch_rejected").
func RecordWaiting(poolName, reason string) {
	WaitingOutcomes.WithLabelValues(poolName, reason).Inc()
}

// RecordLockContention records a poll that found the pool lock held.
func RecordLockContention(poolName string) {
	LockContention.WithLabelValues(poolName).Inc()
}

// RecordLaunchAttempt records an outbound launch POST outcome. The
// dispatcher records "accepted" or "rejected"; a transport or decode error
// counts as "rejected".
func RecordLaunchAttempt(regionGroup, outcome string) {
	LaunchAttempts.WithLabelValues(regionGroup, outcome).Inc()
}

// RecordSnapshotSize records the player count seen in a pool snapshot.
func RecordSnapshotSize(poolName string, size int) {
	QueueSnapshotSize.WithLabelValues(poolName).Observe(float64(size))
}

// RecordServerError records a poll that surfaced server_error.
func RecordServerError(poolName string) {
	ServerErrors.WithLabelValues(poolName).Inc()
}
