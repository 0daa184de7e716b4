// Package metrics defines the Prometheus collectors exported by gdi.
//
// Collectors are registered on the default registry at package init via
// promauto, so any process that imports this package exposes them through
// promhttp.Handler().
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	records, err := src.Fetch(ctx)
//	metrics.SourceFetchDuration.WithLabelValues("worldbank", metrics.Status(err)).Observe(timer.Seconds())
//	metrics.SourceRecords.WithLabelValues("worldbank", metrics.OutcomeEmitted).Add(float64(len(records)))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by several collectors.
const (
	OutcomeEmitted  = "emitted"
	OutcomeFiltered = "filtered"
	OutcomeInserted = "inserted"
	OutcomeSkipped  = "skipped"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// SourceRecords counts records emitted or filtered by each source
	SourceRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdi_source_records_total",
			Help: "Records emitted or filtered by sources",
		},
		[]string{"source", "outcome"},
	)

	// SourceFetchDuration tracks how long a full source fetch takes
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gdi_source_fetch_duration_seconds",
			Help:    "Duration of source fetches",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"source", "status"},
	)

	// HTTPRequestDuration tracks provider request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gdi_http_request_duration_seconds",
			Help:    "Duration of outbound provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host", "code"},
	)

	// DimensionRows counts distinct dimension members ensured per run
	DimensionRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdi_warehouse_dimension_rows_total",
			Help: "Distinct dimension members inserted or updated",
		},
		[]string{"dimension"},
	)

	// Facts counts fact rows inserted or skipped for unresolved keys
	Facts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdi_warehouse_facts_total",
			Help: "Fact rows inserted or skipped",
		},
		[]string{"outcome"},
	)

	// PipelineRuns counts ingestion runs by status
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdi_pipeline_runs_total",
			Help: "Ingestion runs by status",
		},
		[]string{"status"},
	)

	// PipelineRunDuration tracks end to end run duration
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gdi_pipeline_run_duration_seconds",
			Help:    "Duration of ingestion runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// QualityFailures counts failed expectations by name
	QualityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdi_quality_expectation_failures_total",
			Help: "Failed quality expectations",
		},
		[]string{"expectation"},
	)

	// StepRuns counts scheduled step attempts by step and status
	StepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdi_schedule_step_attempts_total",
			Help: "Scheduled step attempts by status",
		},
		[]string{"step", "status"},
	)
)

// Status maps an error to the status label.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Seconds returns Elapsed in seconds, the unit every histogram here uses.
func (t *Timer) Seconds() float64 {
	return t.Elapsed().Seconds()
}
