package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-relay/core"
)

type readOnlyAdapter struct{ name string }

func (a readOnlyAdapter) Name() string { return a.name }

func instanceFor(adapterName string) core.AdapterInstance {
	return core.AdapterInstance{
		InstanceID:    "dest-1",
		AdapterName:   adapterName,
		InterfaceName: "Orders",
		IsEnabled:     true,
	}
}

func sampleMessages(ids ...string) []core.Message {
	out := make([]core.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Message{
			ID:            id,
			InterfaceName: "Orders",
			Status:        core.MessageStatusClaimed,
			Payload: core.Payload{
				Headers: []string{"id"},
				Record:  map[string]string{"id": id},
			},
		})
	}
	return out
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil adapter rejected")
	}
	if err := registry.Register(readOnlyAdapter{name: "  "}); err == nil {
		t.Fatalf("expected blank name rejected")
	}
	if err := registry.Register(NewMemoryAdapter("memory")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(NewMemoryAdapter("memory")); err == nil {
		t.Fatalf("expected duplicate registration rejected")
	}

	names := registry.List()
	if len(names) != 1 || names[0] != "memory" {
		t.Fatalf("unexpected adapter list: %v", names)
	}
}

func TestRegistryCanWrite(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(NewMemoryAdapter("memory")); err != nil {
		t.Fatalf("register memory: %v", err)
	}
	if err := registry.Register(readOnlyAdapter{name: "audit"}); err != nil {
		t.Fatalf("register audit: %v", err)
	}

	if err := registry.CanWrite(instanceFor("memory")); err != nil {
		t.Fatalf("expected memory adapter writable: %v", err)
	}
	if err := registry.CanWrite(instanceFor("ghost")); !errors.Is(err, ErrAdapterNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
	if err := registry.CanWrite(instanceFor("audit")); !errors.Is(err, ErrAdapterCannotWrite) {
		t.Fatalf("expected cannot write, got %v", err)
	}
}

func TestRegistryDeliver(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	adapter := NewMemoryAdapter("memory")
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := registry.Deliver(ctx, instanceFor("memory"), sampleMessages("msg-1", "msg-2"))
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	for _, outcome := range result.Outcomes {
		if !outcome.Processed {
			t.Fatalf("expected processed outcome, got %+v", outcome)
		}
	}
	if written := adapter.Written("dest-1"); len(written) != 2 {
		t.Fatalf("expected 2 written messages, got %d", len(written))
	}

	if _, err := registry.Deliver(ctx, instanceFor("ghost"), sampleMessages("msg-3")); !errors.Is(err, ErrAdapterNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}

	empty, err := registry.Deliver(ctx, instanceFor("memory"), nil)
	if err != nil {
		t.Fatalf("empty deliver: %v", err)
	}
	if len(empty.Outcomes) != 0 {
		t.Fatalf("expected no outcomes for empty batch")
	}
}

func TestMemoryAdapterFailFunc(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter("memory")
	adapter.SetFailFunc(func(_ core.AdapterInstance, msg core.Message) string {
		if msg.ID == "msg-2" {
			return "synthetic failure"
		}
		return ""
	})

	outcomes, err := adapter.Write(ctx, instanceFor("memory"), sampleMessages("msg-1", "msg-2"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	byID := map[string]core.MessageOutcome{}
	for _, outcome := range outcomes {
		byID[outcome.MessageID] = outcome
	}
	if !byID["msg-1"].Processed {
		t.Fatalf("expected msg-1 processed")
	}
	if byID["msg-2"].Processed || byID["msg-2"].Reason != "synthetic failure" {
		t.Fatalf("expected msg-2 failed with reason, got %+v", byID["msg-2"])
	}
	if written := adapter.Written("dest-1"); len(written) != 1 || written[0].ID != "msg-1" {
		t.Fatalf("expected only msg-1 written, got %+v", written)
	}
}

func TestMemoryAdapterHonorsContext(t *testing.T) {
	adapter := NewMemoryAdapter("memory")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := adapter.Write(ctx, instanceFor("memory"), sampleMessages("msg-1")); err == nil {
		t.Fatalf("expected cancelled context rejected")
	}
}
