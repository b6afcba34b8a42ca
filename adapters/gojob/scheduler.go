package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-relay/adapters/gologger"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/orchestrator"

	glog "github.com/goliatone/go-logger/glog"
)

// TickRunner runs a single relay pass.
type TickRunner interface {
	RunTick(ctx context.Context) (orchestrator.TickReport, error)
}

// DeadLetterRequeuer returns an exhausted message to the mailbox with a
// fresh retry budget.
type DeadLetterRequeuer interface {
	RequeueDeadLetter(ctx context.Context, messageID string) (core.Message, error)
}

// TickConsumer drains relay jobs from a queue: tick jobs run the
// orchestrator once per delivery, dead-letter requeue jobs restore one
// message. A failed job is nacked with a bounded delay so the queue drives
// the retry, a skipped tick is acked since another run is already in flight.
type TickConsumer struct {
	dequeuer core.JobDequeuer
	runner   TickRunner
	requeuer DeadLetterRequeuer
	logger   glog.Logger
	policy   RetryPolicy
	backoff  time.Duration
}

type TickConsumerOption func(*TickConsumer)

func WithTickLogger(logger glog.Logger) TickConsumerOption {
	return func(c *TickConsumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithDeadLetterRequeuer(requeuer DeadLetterRequeuer) TickConsumerOption {
	return func(c *TickConsumer) {
		c.requeuer = requeuer
	}
}

func WithTickRetryPolicy(policy RetryPolicy) TickConsumerOption {
	return func(c *TickConsumer) {
		c.policy = policy
	}
}

func WithTickBackoff(backoff time.Duration) TickConsumerOption {
	return func(c *TickConsumer) {
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewTickConsumer(dequeuer core.JobDequeuer, runner TickRunner, opts ...TickConsumerOption) *TickConsumer {
	_, logger := gologger.ResolveComponent("tick-consumer", nil, nil)
	logger = glog.Ensure(logger)
	consumer := &TickConsumer{
		dequeuer: dequeuer,
		runner:   runner,
		logger:   logger,
		policy:   RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, DeadLetterOnMax: true},
		backoff:  5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(consumer)
		}
	}
	return consumer
}

// Consume blocks dequeueing tick jobs until the context is cancelled or
// the dequeuer fails.
func (c *TickConsumer) Consume(ctx context.Context) error {
	if c == nil || c.dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	if c.runner == nil {
		return fmt.Errorf("gojob: tick runner is required")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := c.dequeuer.Dequeue(ctx)
		if err != nil {
			return fmt.Errorf("gojob: dequeue tick job: %w", err)
		}
		c.handle(ctx, delivery)
	}
}

// HandleOne processes a single delivery, useful when the caller owns the
// dequeue loop.
func (c *TickConsumer) HandleOne(ctx context.Context, delivery core.JobDelivery) error {
	if c == nil || c.runner == nil {
		return fmt.Errorf("gojob: tick runner is required")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	c.handle(ctx, delivery)
	return nil
}

func (c *TickConsumer) handle(ctx context.Context, delivery core.JobDelivery) {
	msg := delivery.Message()
	jobID := ""
	if msg != nil {
		jobID = msg.JobID
	}
	switch jobID {
	case JobIDRelayTick:
		c.handleTick(ctx, delivery)
	case JobIDDeadLetterRequeue:
		c.handleRequeue(ctx, delivery, msg)
	default:
		c.logger.Error("dropping unexpected job", "job_id", jobID)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "unexpected job id",
		})
	}
}

func (c *TickConsumer) handleTick(ctx context.Context, delivery core.JobDelivery) {
	report, err := c.runner.RunTick(ctx)
	if err != nil {
		c.logger.Error("tick run failed", "error", err)
		opts := c.policy.NormalizeAttempt(core.JobNackOptions{
			Delay:   c.backoff,
			Requeue: true,
			Reason:  err.Error(),
		}, 0)
		if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
			c.logger.Error("tick nack failed", "error", nackErr)
		}
		return
	}

	if report.Skipped {
		c.logger.Info("tick already in flight, acking duplicate schedule")
	}
	if err := delivery.Ack(ctx); err != nil {
		c.logger.Error("tick ack failed", "error", err)
	}
}

func (c *TickConsumer) handleRequeue(ctx context.Context, delivery core.JobDelivery, msg *core.JobExecutionMessage) {
	if c.requeuer == nil {
		c.logger.Error("dead-letter requeue job without a requeuer")
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "no dead-letter requeuer configured",
		})
		return
	}
	messageID := ""
	if msg != nil {
		if raw, ok := msg.Parameters["message_id"].(string); ok {
			messageID = strings.TrimSpace(raw)
		}
	}
	if messageID == "" {
		c.logger.Error("dead-letter requeue job without a message id")
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "missing message id",
		})
		return
	}

	if _, err := c.requeuer.RequeueDeadLetter(ctx, messageID); err != nil {
		c.logger.Error("dead-letter requeue failed", "message_id", messageID, "error", err)
		opts := c.policy.NormalizeAttempt(core.JobNackOptions{
			Delay:   c.backoff,
			Requeue: true,
			Reason:  err.Error(),
		}, 0)
		if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
			c.logger.Error("dead-letter requeue nack failed", "error", nackErr)
		}
		return
	}

	c.logger.Info("dead-letter message requeued", "message_id", messageID)
	if err := delivery.Ack(ctx); err != nil {
		c.logger.Error("dead-letter requeue ack failed", "error", err)
	}
}
