package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	sweepRunsTotal        *prometheus.CounterVec
	sweepDurationSeconds  *prometheus.HistogramVec
	sweepUpdatedTotal     *prometheus.CounterVec
	sweepFailuresTotal    *prometheus.CounterVec
	certificatesIssued    *prometheus.CounterVec
	certificateTransition *prometheus.CounterVec
	renewalCacheRequests  *prometheus.CounterVec
	approvalDecisions     *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
	sseClientsActive      prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the lifecycle engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		sweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_sweep_runs_total",
			Help: "Periodic sweep executions by sweep and outcome.",
		}, []string{"sweep", "outcome"})

		sweepDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifecycle_sweep_duration_seconds",
			Help:    "Duration of periodic sweeps.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"sweep"})

		sweepUpdatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_status_updates_total",
			Help: "Derived status changes written by progress tracking.",
		}, []string{"entity"})

		sweepFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_sweep_failures_total",
			Help: "Entities skipped by a sweep because recomputation failed.",
		}, []string{"entity"})

		certificatesIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificates_issued_total",
			Help: "Certificates generated from passing grades.",
		}, []string{"status"})

		certificateTransition = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_transitions_total",
			Help: "Certificate lifecycle transitions by target status.",
		}, []string{"transition"})

		renewalCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_renewal_history_cache_total",
			Help: "Renewal history lookups by cache result.",
		}, []string{"result"})

		approvalDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Approval decisions by request type and outcome.",
		}, []string{"type", "outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Lifecycle notifications delivered by event type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_stream_clients",
			Help: "Connected notification stream subscribers.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			sweepRunsTotal, sweepDurationSeconds, sweepUpdatedTotal, sweepFailuresTotal,
			certificatesIssued, certificateTransition, renewalCacheRequests,
			approvalDecisions, notificationsTotal, sseClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SweepRuns counts sweep executions.
func SweepRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepRunsTotal
}

// SweepDuration observes sweep durations.
func SweepDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return sweepDurationSeconds
}

// StatusUpdates counts derived status writes per entity type.
func StatusUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepUpdatedTotal
}

// SweepFailures counts per-entity sweep failures.
func SweepFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepFailuresTotal
}

// CertificatesIssued counts generated certificates.
func CertificatesIssued() *prometheus.CounterVec {
	RegisterMetrics()
	return certificatesIssued
}

// CertificateTransitions counts renewals, revocations, verifications and expiries.
func CertificateTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return certificateTransition
}

// RenewalHistoryCache counts renewal history cache hits and misses.
func RenewalHistoryCache() *prometheus.CounterVec {
	RegisterMetrics()
	return renewalCacheRequests
}

// ApprovalDecisions counts approval decisions.
func ApprovalDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return approvalDecisions
}

// NotificationsPublishedTotal counts delivered notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SSEClientsActive tracks connected notification stream clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
