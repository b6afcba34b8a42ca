package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the mutating surface of the relay: staging messages, wiring
// subscriptions, and operator actions over the mailbox. Tick execution lives
// in the orchestrator package, built over the same ports.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	messageStore      MessageStore
	subscriptionStore SubscriptionRegistry
	configSource      ConfigSource
	gateway           Gateway
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	MessageStore      MessageStore
	Subscriptions     SubscriptionRegistry
	ConfigSource      ConfigSource
	Gateway           Gateway
}

// RepositoryStoreFactory matches store factories that build their stores
// lazily from a persistence client.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type StoreProvider interface {
	MessageStore() MessageStore
	SubscriptionStore() SubscriptionRegistry
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig.Relay = finalConfig.Relay.withRelayDefaults()

	if (builder.messageStore == nil || builder.subscriptionStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			provider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if provider != nil {
				if builder.messageStore == nil {
					builder.messageStore = provider.MessageStore()
				}
				if builder.subscriptionStore == nil {
					builder.subscriptionStore = provider.SubscriptionStore()
				}
			}
		} else if provider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.messageStore == nil {
				builder.messageStore = provider.MessageStore()
			}
			if builder.subscriptionStore == nil {
				builder.subscriptionStore = provider.SubscriptionStore()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		messageStore:      builder.messageStore,
		subscriptionStore: builder.subscriptionStore,
		configSource:      builder.configSource,
		gateway:           builder.gateway,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) MessageStore() MessageStore {
	if s == nil {
		return nil
	}
	return s.messageStore
}

func (s *Service) Subscriptions() SubscriptionRegistry {
	if s == nil {
		return nil
	}
	return s.subscriptionStore
}

func (s *Service) ConfigSource() ConfigSource {
	if s == nil {
		return nil
	}
	return s.configSource
}

func (s *Service) Gateway() Gateway {
	if s == nil {
		return nil
	}
	return s.gateway
}

func (s *Service) Logger() Logger {
	if s == nil {
		return nil
	}
	return s.logger
}

func (s *Service) Metrics() MetricsRecorder {
	if s == nil {
		return nil
	}
	return s.metricsRecorder
}

// Enqueue stages one inbound record as Pending. The only side effect is the
// insert.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (Message, error) {
	startedAt := time.Now()
	msg, err := s.enqueue(ctx, in)
	s.observeOperation(ctx, startedAt, "enqueue", err, map[string]any{
		"interface_name":       in.InterfaceName,
		"source_adapter":       in.SourceAdapterName,
		"producer_instance_id": in.ProducerInstanceID,
	})
	return msg, s.mapError(err)
}

func (s *Service) enqueue(ctx context.Context, in EnqueueInput) (Message, error) {
	if s == nil || s.messageStore == nil {
		return Message{}, fmt.Errorf("core: message store is required")
	}
	if strings.TrimSpace(in.InterfaceName) == "" {
		return Message{}, fmt.Errorf("core: interface name is required")
	}
	if strings.TrimSpace(in.SourceAdapterName) == "" {
		return Message{}, fmt.Errorf("core: source adapter name is required")
	}
	if strings.TrimSpace(in.ProducerInstanceID) == "" {
		return Message{}, fmt.Errorf("core: producer instance id is required")
	}
	if err := in.Payload.Validate(); err != nil {
		return Message{}, err
	}
	return s.messageStore.Enqueue(ctx, in)
}

// UpsertSubscription wires a destination instance to a source filter,
// superseding any prior wiring for the same (destination, interface) pair.
func (s *Service) UpsertSubscription(ctx context.Context, in UpsertSubscriptionInput) (Subscription, error) {
	startedAt := time.Now()
	sub, err := s.upsertSubscription(ctx, in)
	s.observeOperation(ctx, startedAt, "subscription_upsert", err, map[string]any{
		"interface_name":          in.InterfaceName,
		"destination_instance_id": in.DestinationInstanceID,
	})
	return sub, s.mapError(err)
}

func (s *Service) upsertSubscription(ctx context.Context, in UpsertSubscriptionInput) (Subscription, error) {
	if s == nil || s.subscriptionStore == nil {
		return Subscription{}, fmt.Errorf("core: subscription registry is required")
	}
	if strings.TrimSpace(in.DestinationInstanceID) == "" {
		return Subscription{}, fmt.Errorf("core: destination instance id is required")
	}
	if strings.TrimSpace(in.InterfaceName) == "" {
		return Subscription{}, fmt.Errorf("core: interface name is required")
	}
	if strings.TrimSpace(in.DestinationAdapterName) == "" {
		return Subscription{}, fmt.Errorf("core: destination adapter name is required")
	}
	return s.subscriptionStore.CreateOrUpdate(ctx, in)
}

// DisableSubscription clears a wiring. Idempotent.
func (s *Service) DisableSubscription(ctx context.Context, subscriptionID string) error {
	startedAt := time.Now()
	err := s.disableSubscription(ctx, subscriptionID)
	s.observeOperation(ctx, startedAt, "subscription_disable", err, map[string]any{
		"subscription_id": subscriptionID,
	})
	return s.mapError(err)
}

func (s *Service) disableSubscription(ctx context.Context, subscriptionID string) error {
	if s == nil || s.subscriptionStore == nil {
		return fmt.Errorf("core: subscription registry is required")
	}
	if strings.TrimSpace(subscriptionID) == "" {
		return fmt.Errorf("core: subscription id is required")
	}
	return s.subscriptionStore.Disable(ctx, subscriptionID)
}

// RequeueDeadLetter is an explicit operator action: it returns an exhausted
// message to Pending with a fresh retry budget. The relay itself never leaves
// DeadLetter.
func (s *Service) RequeueDeadLetter(ctx context.Context, messageID string) (Message, error) {
	startedAt := time.Now()
	msg, err := s.requeueDeadLetter(ctx, messageID)
	s.observeOperation(ctx, startedAt, "deadletter_requeue", err, map[string]any{
		"message_id": messageID,
	})
	return msg, s.mapError(err)
}

func (s *Service) requeueDeadLetter(ctx context.Context, messageID string) (Message, error) {
	if s == nil || s.messageStore == nil {
		return Message{}, fmt.Errorf("core: message store is required")
	}
	if strings.TrimSpace(messageID) == "" {
		return Message{}, fmt.Errorf("core: message id is required")
	}
	return s.messageStore.RequeueDeadLetter(ctx, messageID)
}

func (s *Service) MessageStatusCounts(ctx context.Context) (map[MessageStatus]int, error) {
	if s == nil || s.messageStore == nil {
		return nil, s.mapError(fmt.Errorf("core: message store is required"))
	}
	counts, err := s.messageStore.CountByStatus(ctx)
	return counts, s.mapError(err)
}

func (s *Service) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetterEntry, error) {
	if s == nil || s.messageStore == nil {
		return nil, s.mapError(fmt.Errorf("core: message store is required"))
	}
	entries, err := s.messageStore.ListDeadLetters(ctx, limit)
	return entries, s.mapError(err)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	mapper := defaultErrorMapper
	if s != nil && s.errorMapper != nil {
		mapper = s.errorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return defaultErrorMapper(err)
}
