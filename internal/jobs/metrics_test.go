package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	for i := 0; i < 4; i++ {
		if err := metrics.Track("rbac:catalog_sync").End(nil); err != nil {
			t.Fatalf("unexpected error ending tracker: %v", err)
		}
	}
	boom := errors.New("db unavailable")
	if err := metrics.Track("rbac:catalog_sync").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error to propagate, got %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if got := counterValue(t, families, "campusrec_jobs_total", map[string]string{"job": "rbac:catalog_sync", "status": "success"}); got != 4 {
		t.Fatalf("expected 4 successes, got %v", got)
	}
	if got := counterValue(t, families, "campusrec_jobs_failures_total", map[string]string{"job": "rbac:catalog_sync"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := sampleCount(t, families, "campusrec_job_duration_seconds", map[string]string{"job": "rbac:catalog_sync"}); got != 5 {
		t.Fatalf("expected 5 duration samples, got %d", got)
	}
}

func TestNilMetricsTrackerIsNoop(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	if err := metrics.Track("job").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
}

func TestNewMetricsNilRegistererIsShared(t *testing.T) {
	if NewMetrics(nil) != NewMetrics(nil) {
		t.Fatal("expected default metrics to be built once")
	}
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func sampleCount(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) uint64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
