package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records per-run outcomes of the upload pipeline.
type PipelineMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upload_run_duration_seconds",
		Help:    "Duration of upload pipeline runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_echo_outcomes_total",
		Help: "Per-echo outcomes of upload pipeline runs.",
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_runs_total",
		Help: "Upload pipeline runs by result.",
	}, []string{"result"})

	reg.MustRegister(duration, outcomes, runs)

	return &PipelineMetrics{
		duration: duration,
		outcomes: outcomes,
		runs:     runs,
	}
}

// ObserveRun records one completed run.
func (m *PipelineMetrics) ObserveRun(mode string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(mode).Observe(d.Seconds())
}

// AddOutcomes accumulates per-echo outcome counters.
func (m *PipelineMetrics) AddOutcomes(uploaded, flagged, failed int) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues("uploaded").Add(float64(uploaded))
	m.outcomes.WithLabelValues("flagged").Add(float64(flagged))
	m.outcomes.WithLabelValues("failed").Add(float64(failed))
}

// IncRunSuccess counts a run that completed and produced a summary.
func (m *PipelineMetrics) IncRunSuccess() {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues("success").Inc()
}

// IncRunFailure counts a run that aborted before processing any echo.
func (m *PipelineMetrics) IncRunFailure() {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues("failure").Inc()
}
