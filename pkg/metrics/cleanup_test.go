package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCleanupMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCleanupMetrics(reg)

	metrics.IncScheduled()
	metrics.IncScheduled()
	metrics.IncDropped()
	metrics.IncPublished()
	metrics.IncPublishFailed()
	metrics.AddObjectsDeleted(3)
	metrics.AddObjectsDeleted(-1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expected := map[string]float64{
		"cleanup_scheduled_total":        2,
		"cleanup_dropped_total":          1,
		"cleanup_published_total":        1,
		"cleanup_publish_failures_total": 1,
		"cleanup_objects_deleted_total":  3,
	}
	for name, want := range expected {
		got, err := fetchCounterValue(mfs, name)
		if err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		}
		if got != want {
			t.Fatalf("expected %s=%f, got %f", name, want, got)
		}
	}
}

func TestCleanupMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewCleanupMetrics(nil)
	metrics.IncScheduled()
	metrics.IncDropped()
	metrics.AddObjectsDeleted(5)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
