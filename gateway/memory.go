package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-relay/core"
)

// FailFunc lets callers inject per-message failures into a MemoryAdapter.
// Returning a non-empty reason marks that message Failed.
type FailFunc func(instance core.AdapterInstance, msg core.Message) string

// MemoryAdapter is an in-memory destination used by tests and local
// development: it appends delivered records per instance and reports
// Processed unless a FailFunc says otherwise.
type MemoryAdapter struct {
	name string
	fail FailFunc

	mu      sync.Mutex
	written map[string][]core.Message
}

func NewMemoryAdapter(name string) *MemoryAdapter {
	return &MemoryAdapter{
		name:    strings.TrimSpace(name),
		written: make(map[string][]core.Message),
	}
}

func (a *MemoryAdapter) Name() string {
	if a == nil {
		return ""
	}
	return a.name
}

// SetFailFunc installs a failure injector. Passing nil restores
// always-processed behavior.
func (a *MemoryAdapter) SetFailFunc(fail FailFunc) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.fail = fail
	a.mu.Unlock()
}

func (a *MemoryAdapter) Write(
	ctx context.Context,
	instance core.AdapterInstance,
	messages []core.Message,
) ([]core.MessageOutcome, error) {
	if a == nil {
		return nil, ErrAdapterCannotWrite
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	outcomes := make([]core.MessageOutcome, 0, len(messages))
	for _, msg := range messages {
		if a.fail != nil {
			if reason := strings.TrimSpace(a.fail(instance, msg)); reason != "" {
				outcomes = append(outcomes, core.MessageOutcome{MessageID: msg.ID, Reason: reason})
				continue
			}
		}
		a.written[instance.InstanceID] = append(a.written[instance.InstanceID], msg)
		outcomes = append(outcomes, core.MessageOutcome{MessageID: msg.ID, Processed: true})
	}
	return outcomes, nil
}

// Written returns the messages delivered to one instance, in order.
func (a *MemoryAdapter) Written(instanceID string) []core.Message {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Message(nil), a.written[instanceID]...)
}

var (
	_ Adapter = (*MemoryAdapter)(nil)
	_ Writer  = (*MemoryAdapter)(nil)
)
