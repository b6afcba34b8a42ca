package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// ClaimFilter narrows a ClaimBatch to an interface and, optionally, a single
// producer instance.
type ClaimFilter = SubscriptionFilter

// MessageStore is the durable mailbox. All cross-process coordination runs
// through its atomic claim and transition operations; the relay holds no
// in-process locks beyond them.
type MessageStore interface {
	Enqueue(ctx context.Context, in EnqueueInput) (Message, error)
	ClaimBatch(ctx context.Context, filter ClaimFilter, claimantID string, maxCount int) ([]Message, error)
	MarkProcessed(ctx context.Context, messageID string, claimantID string) error
	MarkFailed(ctx context.Context, messageID string, claimantID string, cause error, maxRetries int) (Message, error)
	ReleaseExpiredLocks(ctx context.Context, lockTimeout time.Duration) (int, error)
	RequeueDeadLetter(ctx context.Context, messageID string) (Message, error)
	Get(ctx context.Context, messageID string) (Message, error)
	CountByStatus(ctx context.Context) (map[MessageStatus]int, error)
	ListByStatus(ctx context.Context, status MessageStatus, limit int) ([]Message, error)
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetterEntry, error)
}

type EnqueueInput struct {
	InterfaceName      string
	SourceAdapterName  string
	ProducerInstanceID string
	Payload            Payload
}

// SubscriptionRegistry wires destination instances to source filters.
type SubscriptionRegistry interface {
	CreateOrUpdate(ctx context.Context, in UpsertSubscriptionInput) (Subscription, error)
	Resolve(ctx context.Context, destinationInstanceID string, interfaceName string) (SubscriptionFilter, error)
	Disable(ctx context.Context, subscriptionID string) error
}

type UpsertSubscriptionInput struct {
	DestinationInstanceID  string
	InterfaceName          string
	DestinationAdapterName string
	ProducerInstanceID     string
}

// ConfigSource supplies the enabled interface/instance snapshot consumed by
// one tick. Implementations must return data safe to hold for the tick's
// duration; the orchestrator never re-reads mid-dispatch.
type ConfigSource interface {
	EnabledInterfaces(ctx context.Context) ([]InterfaceConfig, error)
}

// Gateway is the uniform contract a destination adapter instance fulfills.
// Retry policy lives in the store, not here: the gateway reports outcomes
// and never retries internally.
type Gateway interface {
	Deliver(ctx context.Context, instance AdapterInstance, messages []Message) (DeliveryResult, error)
	CanWrite(instance AdapterInstance) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}
