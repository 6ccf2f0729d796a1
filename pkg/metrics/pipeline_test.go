package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveRun("batch", 250*time.Millisecond)
	m.AddOutcomes(2, 1, 1)
	m.IncRunSuccess()
	m.IncRunFailure()

	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("uploaded")); got != 2 {
		t.Fatalf("uploaded counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("flagged")); got != 1 {
		t.Fatalf("flagged counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("success")); got != 1 {
		t.Fatalf("success counter = %v, want 1", got)
	}
}

func TestPipelineMetricsNilRegistererIsInert(t *testing.T) {
	m := NewPipelineMetrics(nil)
	// Must not panic with no registered collectors.
	m.ObserveRun("batch", time.Second)
	m.AddOutcomes(1, 0, 0)
	m.IncRunSuccess()
	m.IncRunFailure()
}
