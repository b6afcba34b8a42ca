package prometheus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, registry *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func TestRecorderIncCounter(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)

	tags := map[string]string{"interface_name": "Orders"}
	recorder.IncCounter(ctx, "relay.enqueue.total", 1, tags)
	recorder.IncCounter(ctx, "relay.enqueue.total", 2, tags)

	family := gatherFamily(t, registry, "relay_enqueue_total")
	if family == nil {
		t.Fatalf("expected relay_enqueue_total registered")
	}
	metrics := family.GetMetric()
	if len(metrics) != 1 {
		t.Fatalf("expected one label combination, got %d", len(metrics))
	}
	if got := metrics[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected counter 3, got %v", got)
	}
	labels := metrics[0].GetLabel()
	if len(labels) != 1 || labels[0].GetName() != "interface_name" || labels[0].GetValue() != "Orders" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestRecorderIgnoresNonPositiveCounts(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)

	recorder.IncCounter(ctx, "relay.tick.skipped", 0, nil)
	recorder.IncCounter(ctx, "relay.tick.skipped", -5, nil)

	if family := gatherFamily(t, registry, "relay_tick_skipped"); family != nil {
		t.Fatalf("expected no metric for non-positive increments")
	}
}

func TestRecorderObserveHistogram(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)

	recorder.ObserveHistogram(ctx, "relay.tick.duration_ms", 12, nil)
	recorder.ObserveHistogram(ctx, "relay.tick.duration_ms", 180, nil)

	family := gatherFamily(t, registry, "relay_tick_duration_ms")
	if family == nil {
		t.Fatalf("expected relay_tick_duration_ms registered")
	}
	hist := family.GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != 192 {
		t.Fatalf("expected sum 192, got %v", hist.GetSampleSum())
	}
}

func TestRecorderStableLabelSet(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)

	recorder.IncCounter(ctx, "relay.unit.config_error", 1, map[string]string{"interface_name": "Orders"})
	// Extra tags beyond the registered key set are dropped, missing ones
	// report empty values; neither panics.
	recorder.IncCounter(ctx, "relay.unit.config_error", 1, map[string]string{
		"interface_name": "Orders",
		"unexpected":     "tag",
	})
	recorder.IncCounter(ctx, "relay.unit.config_error", 1, nil)

	family := gatherFamily(t, registry, "relay_unit_config_error")
	if family == nil {
		t.Fatalf("expected relay_unit_config_error registered")
	}
	var total float64
	for _, metric := range family.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	if total != 3 {
		t.Fatalf("expected 3 total increments, got %v", total)
	}
}
