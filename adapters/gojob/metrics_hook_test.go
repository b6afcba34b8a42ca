package gojob

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
)

type capturingRecorder struct {
	counters   map[string]int64
	histograms map[string][]float64
	tags       map[string]map[string]string
}

func newCapturingRecorder() *capturingRecorder {
	return &capturingRecorder{
		counters:   map[string]int64{},
		histograms: map[string][]float64{},
		tags:       map[string]map[string]string{},
	}
}

func (r *capturingRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	r.counters[name] += value
	r.tags[name] = tags
}

func (r *capturingRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	r.histograms[name] = append(r.histograms[name], value)
	r.tags[name] = tags
}

func TestMetricsHookRecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	recorder := newCapturingRecorder()
	hook := NewMetricsHook(recorder)

	event := core.JobWorkerEvent{
		Message:  &core.JobExecutionMessage{JobID: JobIDRelayTick},
		Duration: 120 * time.Millisecond,
	}

	hook.OnStart(ctx, event)
	hook.OnSuccess(ctx, event)
	hook.OnRetry(ctx, event)
	hook.OnFailure(ctx, event)

	for _, name := range []string{"relay.job.started", "relay.job.succeeded", "relay.job.retried", "relay.job.failed"} {
		if recorder.counters[name] != 1 {
			t.Fatalf("expected one %s count, got %d", name, recorder.counters[name])
		}
		if recorder.tags[name]["job_id"] != JobIDRelayTick {
			t.Fatalf("expected job_id tag on %s, got %#v", name, recorder.tags[name])
		}
	}

	samples := recorder.histograms["relay.job.duration_ms"]
	if len(samples) != 1 || samples[0] != 120 {
		t.Fatalf("unexpected duration samples: %#v", samples)
	}
}

func TestMetricsHookDefaultsToNopRecorder(t *testing.T) {
	hook := NewMetricsHook(nil)
	hook.OnStart(context.Background(), core.JobWorkerEvent{})
	hook.OnSuccess(context.Background(), core.JobWorkerEvent{})
}
