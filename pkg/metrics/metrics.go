// Package metrics exposes the controller's Prometheus instrumentation:
// lock contention, job durations, guardrail rejections, and active
// streaming subscribers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lock metrics
	LockAcquiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridge_lock_acquired_total",
			Help: "Total number of cluster locks acquired",
		},
	)

	LockConflictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridge_lock_conflict_total",
			Help: "Total number of lock acquisitions rejected because a job was already running",
		},
	)

	LockReleasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridge_lock_released_total",
			Help: "Total number of cluster locks released",
		},
	)

	// Job metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridge_jobs_total",
			Help: "Total number of jobs by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridge_job_duration_seconds",
			Help:    "Job duration in seconds by kind",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
		[]string{"kind"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridge_stage_duration_seconds",
			Help:    "Stage duration in seconds by stage name",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage"},
	)

	// Guardrail metrics
	GuardrailRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridge_guardrail_rejections_total",
			Help: "Total number of operations rejected by a guardrail, by guardrail name",
		},
		[]string{"guardrail"},
	)

	// Reconciliation metrics
	ReconciledLocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridge_reconciled_locks_total",
			Help: "Total number of cluster locks force-released by the startup reconciliation pass",
		},
	)

	// Fleet metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ridge_nodes_total",
			Help: "Total number of nodes by role and status",
		},
		[]string{"role", "status"},
	)

	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridge_clusters_total",
			Help: "Total number of managed clusters",
		},
	)

	// Streaming metrics
	ActiveStreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridge_active_stream_subscribers",
			Help: "Current number of open job output stream subscribers",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridge_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridge_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(LockAcquiredTotal)
	prometheus.MustRegister(LockConflictTotal)
	prometheus.MustRegister(LockReleasedTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(GuardrailRejectionsTotal)
	prometheus.MustRegister(ReconciledLocksTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(ActiveStreamSubscribers)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time to a single histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
