package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-relay/core"
)

var (
	ErrAdapterNotRegistered = fmt.Errorf("gateway: adapter not registered")
	ErrAdapterCannotWrite   = fmt.Errorf("gateway: adapter cannot write")
)

// Adapter is one named adapter implementation. Destination adapters also
// implement Writer; the registry rejects non-writers at configuration time
// so a bad wiring never reaches delivery.
type Adapter interface {
	Name() string
}

// Writer is the destination capability: consume a claimed batch, write it
// out, and report a verdict per message. Writers never retry internally;
// retry policy lives in the message store.
type Writer interface {
	Write(ctx context.Context, instance core.AdapterInstance, messages []core.Message) ([]core.MessageOutcome, error)
}

// Registry maps adapter names to implementations and fulfills the delivery
// contract for dispatch units.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("gateway: adapter is nil")
	}
	name := strings.TrimSpace(adapter.Name())
	if name == "" {
		return fmt.Errorf("gateway: adapter name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("gateway: adapter already registered: %s", name)
	}
	r.adapters[name] = adapter
	return nil
}

func (r *Registry) Get(adapterName string) (Adapter, bool) {
	name := strings.TrimSpace(adapterName)
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	adapter, ok := r.adapters[name]
	r.mu.RUnlock()
	return adapter, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// CanWrite reports whether the instance's adapter exists and carries the
// write capability. A miss is a configuration error, not a delivery error.
func (r *Registry) CanWrite(instance core.AdapterInstance) error {
	if r == nil {
		return fmt.Errorf("gateway: registry is not configured")
	}
	adapter, ok := r.Get(instance.AdapterName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotRegistered, instance.AdapterName)
	}
	if _, writable := adapter.(Writer); !writable {
		return fmt.Errorf("%w: %s", ErrAdapterCannotWrite, instance.AdapterName)
	}
	return nil
}

// Deliver hands the claimed batch to the instance's adapter and normalizes
// the reported outcomes.
func (r *Registry) Deliver(
	ctx context.Context,
	instance core.AdapterInstance,
	messages []core.Message,
) (core.DeliveryResult, error) {
	if r == nil {
		return core.DeliveryResult{}, fmt.Errorf("gateway: registry is not configured")
	}
	if len(messages) == 0 {
		return core.DeliveryResult{}, nil
	}
	adapter, ok := r.Get(instance.AdapterName)
	if !ok {
		return core.DeliveryResult{}, fmt.Errorf("%w: %s", ErrAdapterNotRegistered, instance.AdapterName)
	}
	writer, writable := adapter.(Writer)
	if !writable {
		return core.DeliveryResult{}, fmt.Errorf("%w: %s", ErrAdapterCannotWrite, instance.AdapterName)
	}

	outcomes, err := writer.Write(ctx, instance, messages)
	if err != nil {
		return core.DeliveryResult{}, fmt.Errorf("gateway: adapter %s write failed: %w", instance.AdapterName, err)
	}
	return core.DeliveryResult{Outcomes: outcomes}, nil
}

var _ core.Gateway = (*Registry)(nil)
