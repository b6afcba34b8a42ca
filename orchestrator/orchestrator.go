package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-relay/core"
)

var ErrTickAborted = errors.New("orchestrator: tick aborted")

// TickReport summarizes one reclaim -> resolve -> dispatch cycle.
type TickReport struct {
	Skipped          bool
	LocksReleased    int
	Interfaces       int
	Instances        int
	SkippedInstances int
	Claimed          int
	Processed        int
	Failed           int
	DeadLettered     int
	Units            []UnitResult
	StartedAt        time.Time
	Duration         time.Duration
}

// UnitResult is the isolated outcome of one instance's dispatch unit. A
// non-nil Err never aborted sibling units.
type UnitResult struct {
	InterfaceName string
	InstanceID    string
	AdapterName   string
	ConfigError   bool
	Claimed       int
	Processed     int
	Failed        int
	DeadLettered  int
	Err           error
}

// Orchestrator drives the relay: it reclaims stale locks, snapshots the
// enabled interface configuration, and fans delivery work out across adapter
// instances under bounded concurrency. RunTick is guarded, not re-entrant:
// a tick that arrives while one is in flight is skipped.
type Orchestrator struct {
	locks         *core.LockManager
	subscriptions core.SubscriptionRegistry
	source        core.ConfigSource
	gateway       core.Gateway
	config        core.RelayConfig
	logger        core.Logger
	metrics       core.MetricsRecorder
	now           func() time.Time

	inFlight atomic.Bool
}

type Option func(*Orchestrator)

func WithLogger(logger core.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		o.metrics = recorder
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(
	locks *core.LockManager,
	subscriptions core.SubscriptionRegistry,
	source core.ConfigSource,
	gateway core.Gateway,
	cfg core.RelayConfig,
	opts ...Option,
) (*Orchestrator, error) {
	if locks == nil {
		return nil, fmt.Errorf("orchestrator: lock manager is required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("orchestrator: subscription registry is required")
	}
	if source == nil {
		return nil, fmt.Errorf("orchestrator: config source is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("orchestrator: gateway is required")
	}
	if cfg.MaxConcurrentInstances <= 0 {
		cfg.MaxConcurrentInstances = core.DefaultConfig().Relay.MaxConcurrentInstances
	}
	if cfg.ClaimBatchSize <= 0 {
		cfg.ClaimBatchSize = core.DefaultConfig().Relay.ClaimBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = core.DefaultConfig().Relay.MaxRetries
	}

	o := &Orchestrator{
		locks:         locks,
		subscriptions: subscriptions,
		source:        source,
		gateway:       gateway,
		config:        cfg,
		metrics:       core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// RunTick executes one cycle. A store failure during reclaim or resolve
// aborts the tick with ErrTickAborted; in-flight claims stay Claimed and
// self-heal through the next stale-lock sweep. Per-unit failures never abort
// the tick.
func (o *Orchestrator) RunTick(ctx context.Context) (TickReport, error) {
	if o == nil {
		return TickReport{}, fmt.Errorf("orchestrator: not configured")
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		o.logInfo(ctx, "tick skipped, previous tick still in flight", nil)
		o.count(ctx, "relay.tick.skipped", nil)
		return TickReport{Skipped: true}, nil
	}
	defer o.inFlight.Store(false)

	startedAt := o.now()
	report := TickReport{StartedAt: startedAt}

	released, err := o.locks.ReleaseStaleLocks(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: release stale locks: %v", ErrTickAborted, err)
	}
	report.LocksReleased = released
	if released > 0 {
		o.logInfo(ctx, "released stale locks", map[string]any{"count": released})
	}

	interfaces, err := o.source.EnabledInterfaces(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: resolve enabled interfaces: %v", ErrTickAborted, err)
	}
	report.Interfaces = len(interfaces)

	units := o.dispatch(ctx, interfaces)
	for _, unit := range units {
		report.Instances++
		report.Claimed += unit.Claimed
		report.Processed += unit.Processed
		report.Failed += unit.Failed
		report.DeadLettered += unit.DeadLettered
		if unit.ConfigError {
			report.SkippedInstances++
		}
	}
	report.Units = units
	report.Duration = o.now().Sub(startedAt)

	o.observeTick(ctx, report)
	return report, nil
}

// dispatch fans units out over a semaphore of MaxConcurrentInstances and
// waits for all of them. Results come back in submission order.
func (o *Orchestrator) dispatch(ctx context.Context, interfaces []core.InterfaceConfig) []UnitResult {
	type unitOfWork struct {
		interfaceName string
		instance      core.AdapterInstance
	}

	var work []unitOfWork
	for _, iface := range interfaces {
		name := strings.TrimSpace(iface.Name)
		if name == "" {
			continue
		}
		// An interface with zero enabled destinations is a no-op, not an
		// error.
		for _, instance := range iface.Destinations {
			if !instance.IsEnabled {
				continue
			}
			work = append(work, unitOfWork{interfaceName: name, instance: instance})
		}
	}
	if len(work) == 0 {
		return nil
	}

	results := make([]UnitResult, len(work))
	semaphore := make(chan struct{}, o.config.MaxConcurrentInstances)
	var wg sync.WaitGroup

	for i, unit := range work {
		wg.Add(1)
		go func(slot int, interfaceName string, instance core.AdapterInstance) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			defer func() {
				if rec := recover(); rec != nil {
					results[slot].Err = fmt.Errorf("orchestrator: unit panic: %v", rec)
					o.logError(ctx, "dispatch unit panic", map[string]any{
						"interface_name": interfaceName,
						"instance_id":    instance.InstanceID,
						"panic":          fmt.Sprint(rec),
					})
				}
			}()
			results[slot] = o.runUnit(ctx, interfaceName, instance)
		}(i, unit.interfaceName, unit.instance)
	}
	wg.Wait()

	for _, result := range results {
		if result.Err != nil && !result.ConfigError {
			o.logError(ctx, "dispatch unit failed", map[string]any{
				"interface_name": result.InterfaceName,
				"instance_id":    result.InstanceID,
				"error":          result.Err.Error(),
			})
		}
	}
	return results
}

// runUnit processes one destination instance: capability check, filter
// resolution, claim, deliver, outcome bookkeeping. Cancellation between
// claim and outcome leaves the rows Claimed for the next stale-lock sweep.
func (o *Orchestrator) runUnit(ctx context.Context, interfaceName string, instance core.AdapterInstance) UnitResult {
	result := UnitResult{
		InterfaceName: interfaceName,
		InstanceID:    instance.InstanceID,
		AdapterName:   instance.AdapterName,
	}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	if err := o.gateway.CanWrite(instance); err != nil {
		result.ConfigError = true
		result.Err = err
		o.logError(ctx, "destination instance misconfigured, skipping", map[string]any{
			"interface_name": interfaceName,
			"instance_id":    instance.InstanceID,
			"adapter_name":   instance.AdapterName,
			"error":          err.Error(),
		})
		o.count(ctx, "relay.unit.config_error", map[string]string{"interface_name": interfaceName})
		return result
	}

	filter, err := o.subscriptions.Resolve(ctx, instance.InstanceID, interfaceName)
	if err != nil {
		result.Err = fmt.Errorf("orchestrator: resolve subscription: %w", err)
		return result
	}
	filter.InterfaceName = interfaceName

	messages, err := o.locks.ClaimBatch(ctx, filter, instance.InstanceID, o.config.ClaimBatchSize)
	if err != nil {
		result.Err = fmt.Errorf("orchestrator: claim batch: %w", err)
		return result
	}
	result.Claimed = len(messages)
	if len(messages) == 0 {
		return result
	}

	if err := ctx.Err(); err != nil {
		// Claimed but not delivered: leave the claims for the reclaim sweep.
		result.Err = err
		return result
	}

	delivery, err := o.gateway.Deliver(ctx, instance, messages)
	if err != nil {
		// Whole-batch failure: report every claimed message as failed so the
		// retry budget advances instead of waiting out the lock timeout.
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}
		delivery = failAll(messages, err)
	}

	outcomes := indexOutcomes(delivery)
	for _, msg := range messages {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}
		outcome, ok := outcomes[msg.ID]
		if !ok {
			// An adapter that drops a message from its report did not
			// process it.
			outcome = core.MessageOutcome{MessageID: msg.ID, Reason: "adapter reported no outcome"}
		}
		status, completeErr := o.locks.Complete(ctx, msg.ID, instance.InstanceID, outcome, o.config.MaxRetries)
		if completeErr != nil {
			result.Err = errors.Join(result.Err, completeErr)
			continue
		}
		switch status {
		case core.MessageStatusProcessed:
			result.Processed++
		case core.MessageStatusDeadLetter:
			result.Failed++
			result.DeadLettered++
		default:
			result.Failed++
		}
	}
	return result
}

func failAll(messages []core.Message, cause error) core.DeliveryResult {
	outcomes := make([]core.MessageOutcome, 0, len(messages))
	for _, msg := range messages {
		outcomes = append(outcomes, core.MessageOutcome{
			MessageID: msg.ID,
			Reason:    cause.Error(),
		})
	}
	return core.DeliveryResult{Outcomes: outcomes}
}

func indexOutcomes(delivery core.DeliveryResult) map[string]core.MessageOutcome {
	indexed := make(map[string]core.MessageOutcome, len(delivery.Outcomes))
	for _, outcome := range delivery.Outcomes {
		id := strings.TrimSpace(outcome.MessageID)
		if id == "" {
			continue
		}
		indexed[id] = outcome
	}
	return indexed
}

func (o *Orchestrator) observeTick(ctx context.Context, report TickReport) {
	tags := map[string]string{}
	o.metrics.IncCounter(ctx, "relay.tick.total", 1, tags)
	o.metrics.IncCounter(ctx, "relay.tick.locks_released", int64(report.LocksReleased), tags)
	o.metrics.IncCounter(ctx, "relay.tick.claimed", int64(report.Claimed), tags)
	o.metrics.IncCounter(ctx, "relay.tick.processed", int64(report.Processed), tags)
	o.metrics.IncCounter(ctx, "relay.tick.failed", int64(report.Failed), tags)
	o.metrics.IncCounter(ctx, "relay.tick.dead_lettered", int64(report.DeadLettered), tags)
	o.metrics.ObserveHistogram(ctx, "relay.tick.duration_ms", float64(report.Duration.Milliseconds()), tags)

	o.logInfo(ctx, "tick completed", map[string]any{
		"locks_released":    report.LocksReleased,
		"interfaces":        report.Interfaces,
		"instances":         report.Instances,
		"skipped_instances": report.SkippedInstances,
		"claimed":           report.Claimed,
		"processed":         report.Processed,
		"failed":            report.Failed,
		"dead_lettered":     report.DeadLettered,
		"duration_ms":       report.Duration.Milliseconds(),
	})
}

func (o *Orchestrator) count(ctx context.Context, name string, tags map[string]string) {
	if o == nil || o.metrics == nil {
		return
	}
	if tags == nil {
		tags = map[string]string{}
	}
	o.metrics.IncCounter(ctx, name, 1, tags)
}

func (o *Orchestrator) logInfo(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, false, message, fields)
}

func (o *Orchestrator) logError(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, true, message, fields)
}

func (o *Orchestrator) log(ctx context.Context, isError bool, message string, fields map[string]any) {
	if o == nil || o.logger == nil {
		return
	}
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok && len(fields) > 0 {
		logger = fieldsLogger.WithFields(fields)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	if isError {
		logger.Error(message, args...)
		return
	}
	logger.Info(message, args...)
}
