package relay

import "github.com/goliatone/go-relay/core"

type Config = core.Config

type RelayConfig = core.RelayConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Message = core.Message
type MessageStatus = core.MessageStatus
type Payload = core.Payload
type Subscription = core.Subscription
type SubscriptionFilter = core.SubscriptionFilter
type AdapterInstance = core.AdapterInstance
type InterfaceConfig = core.InterfaceConfig
type MessageOutcome = core.MessageOutcome
type DeliveryResult = core.DeliveryResult
type ClaimFilter = core.ClaimFilter
type DeadLetterEntry = core.DeadLetterEntry

type MessageStore = core.MessageStore
type SubscriptionRegistry = core.SubscriptionRegistry
type ConfigSource = core.ConfigSource
type Gateway = core.Gateway
type MetricsRecorder = core.MetricsRecorder

type EnqueueInput = core.EnqueueInput
type UpsertSubscriptionInput = core.UpsertSubscriptionInput

const (
	MessageStatusPending    = core.MessageStatusPending
	MessageStatusClaimed    = core.MessageStatusClaimed
	MessageStatusProcessed  = core.MessageStatusProcessed
	MessageStatusFailed     = core.MessageStatusFailed
	MessageStatusDeadLetter = core.MessageStatusDeadLetter
)

var (
	WithLogger               = core.WithLogger
	WithLoggerProvider       = core.WithLoggerProvider
	WithMetricsRecorder      = core.WithMetricsRecorder
	WithErrorFactory         = core.WithErrorFactory
	WithErrorMapper          = core.WithErrorMapper
	WithPersistenceClient    = core.WithPersistenceClient
	WithRepositoryFactory    = core.WithRepositoryFactory
	WithConfigProvider       = core.WithConfigProvider
	WithOptionsResolver      = core.WithOptionsResolver
	WithMessageStore         = core.WithMessageStore
	WithSubscriptionRegistry = core.WithSubscriptionRegistry
	WithConfigSource         = core.WithConfigSource
	WithGateway              = core.WithGateway
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
