package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/orchestrator"
)

type MutatingService interface {
	Enqueue(ctx context.Context, in core.EnqueueInput) (core.Message, error)
	UpsertSubscription(ctx context.Context, in core.UpsertSubscriptionInput) (core.Subscription, error)
	DisableSubscription(ctx context.Context, subscriptionID string) error
	RequeueDeadLetter(ctx context.Context, messageID string) (core.Message, error)
}

type TickRunner interface {
	RunTick(ctx context.Context) (orchestrator.TickReport, error)
}

type EnqueueMessageCommand struct {
	service MutatingService
}

func NewEnqueueMessageCommand(service MutatingService) *EnqueueMessageCommand {
	return &EnqueueMessageCommand{service: service}
}

func (c *EnqueueMessageCommand) Execute(ctx context.Context, msg EnqueueMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: enqueue service is required")
	}
	out, err := c.service.Enqueue(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpsertSubscriptionCommand struct {
	service MutatingService
}

func NewUpsertSubscriptionCommand(service MutatingService) *UpsertSubscriptionCommand {
	return &UpsertSubscriptionCommand{service: service}
}

func (c *UpsertSubscriptionCommand) Execute(ctx context.Context, msg UpsertSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	out, err := c.service.UpsertSubscription(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisableSubscriptionCommand struct {
	service MutatingService
}

func NewDisableSubscriptionCommand(service MutatingService) *DisableSubscriptionCommand {
	return &DisableSubscriptionCommand{service: service}
}

func (c *DisableSubscriptionCommand) Execute(ctx context.Context, msg DisableSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	return c.service.DisableSubscription(ctx, msg.SubscriptionID)
}

type RequeueDeadLetterCommand struct {
	service MutatingService
}

func NewRequeueDeadLetterCommand(service MutatingService) *RequeueDeadLetterCommand {
	return &RequeueDeadLetterCommand{service: service}
}

func (c *RequeueDeadLetterCommand) Execute(ctx context.Context, msg RequeueDeadLetterMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dead-letter service is required")
	}
	out, err := c.service.RequeueDeadLetter(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunTickCommand struct {
	runner TickRunner
}

func NewRunTickCommand(runner TickRunner) *RunTickCommand {
	return &RunTickCommand{runner: runner}
}

func (c *RunTickCommand) Execute(ctx context.Context, _ RunTickMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: tick runner is required")
	}
	report, err := c.runner.RunTick(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, report)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
