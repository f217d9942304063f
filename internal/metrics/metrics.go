// Package metrics provides Prometheus instrumentation.
//
// Key metrics:
//   - Job outcomes per queue (done, dropped, retried, dead-lettered)
//   - Job handling duration per queue
//   - Upstream calls by outcome kind
//   - Rows written per table
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the curator exports.
type Metrics struct {
	JobsDone       *prometheus.CounterVec
	JobsDropped    *prometheus.CounterVec
	JobsRetried    *prometheus.CounterVec
	JobsDeadLetter *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	UpstreamCalls  *prometheus.CounterVec
	RowsWritten    *prometheus.CounterVec
	RowConflicts   *prometheus.CounterVec
	PendingCounter *prometheus.GaugeVec
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_jobs_done_total",
			Help: "Jobs acknowledged after successful handling.",
		}, []string{"queue"}),
		JobsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_jobs_dropped_total",
			Help: "Jobs acknowledged without retry (rate-limit discipline).",
		}, []string{"queue"}),
		JobsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_jobs_retried_total",
			Help: "Job redeliveries scheduled after handler errors.",
		}, []string{"queue"}),
		JobsDeadLetter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_jobs_dead_letter_total",
			Help: "Jobs moved to the dead-letter subject after retry exhaustion.",
		}, []string{"queue"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curator_job_duration_seconds",
			Help:    "Job handling duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
		UpstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_upstream_calls_total",
			Help: "Upstream API calls by outcome.",
		}, []string{"outcome"}),
		RowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_rows_written_total",
			Help: "Rows inserted per table.",
		}, []string{"table"}),
		RowConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_row_conflicts_total",
			Help: "Duplicate rows rejected on conflict per table.",
		}, []string{"table"}),
		PendingCounter: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curator_sync_pending_jobs",
			Help: "Outstanding jobs per sync family.",
		}, []string{"family"}),
	}
}
