package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat-API Metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		},
		[]string{"limiter"},
	)

	DuplicatesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "duplicates_suppressed_total",
			Help:      "Total mutating requests suppressed as duplicates",
		},
	)

	SessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "sessions_expired_total",
			Help:      "Total requests rejected for idle session timeout",
		},
	)

	ProcessesSpawnedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "processes_spawned_total",
			Help:      "Total assistant processes spawned",
		},
	)

	ProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "processes_active",
			Help:      "Assistant processes currently alive",
		},
	)

	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "stream_events_total",
			Help:      "Stream events relayed to clients",
		},
		[]string{"type"},
	)

	AuditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat_api",
			Name:      "audit_entries_total",
			Help:      "Audit entries written, by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records a completed HTTP request.
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}
