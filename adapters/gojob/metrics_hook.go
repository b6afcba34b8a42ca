package gojob

import (
	"context"

	"github.com/goliatone/go-relay/core"
)

// MetricsHook records queue worker lifecycle events on the relay metrics
// port. Wrap it with NewWorkerHookAdapter to attach it to a go-job worker.
type MetricsHook struct {
	metrics core.MetricsRecorder
}

func NewMetricsHook(metrics core.MetricsRecorder) *MetricsHook {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &MetricsHook{metrics: metrics}
}

func (h *MetricsHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "relay.job.started", event)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "relay.job.succeeded", event)
	if event.Duration > 0 {
		h.metrics.ObserveHistogram(ctx, "relay.job.duration_ms", float64(event.Duration.Milliseconds()), hookTags(event))
	}
}

func (h *MetricsHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "relay.job.failed", event)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.count(ctx, "relay.job.retried", event)
}

func (h *MetricsHook) count(ctx context.Context, name string, event core.JobWorkerEvent) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncCounter(ctx, name, 1, hookTags(event))
}

func hookTags(event core.JobWorkerEvent) map[string]string {
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	}
	return map[string]string{"job_id": jobID}
}

var _ core.JobWorkerHook = (*MetricsHook)(nil)
