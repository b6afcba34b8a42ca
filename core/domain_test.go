package core

import (
	"testing"
	"time"
)

func TestMessageStatusTransitions(t *testing.T) {
	cases := []struct {
		from    MessageStatus
		to      MessageStatus
		allowed bool
	}{
		{MessageStatusPending, MessageStatusClaimed, true},
		{MessageStatusPending, MessageStatusProcessed, false},
		{MessageStatusPending, MessageStatusFailed, false},
		{MessageStatusPending, MessageStatusDeadLetter, false},
		{MessageStatusClaimed, MessageStatusPending, true},
		{MessageStatusClaimed, MessageStatusProcessed, true},
		{MessageStatusClaimed, MessageStatusFailed, true},
		{MessageStatusClaimed, MessageStatusDeadLetter, false},
		{MessageStatusFailed, MessageStatusPending, true},
		{MessageStatusFailed, MessageStatusDeadLetter, true},
		{MessageStatusFailed, MessageStatusProcessed, false},
		{MessageStatusProcessed, MessageStatusPending, false},
		{MessageStatusProcessed, MessageStatusClaimed, false},
		{MessageStatusDeadLetter, MessageStatusPending, false},
		{MessageStatusDeadLetter, MessageStatusClaimed, false},
		{MessageStatusPending, MessageStatusPending, false},
	}

	now := time.Now().UTC()
	for _, tc := range cases {
		msg := &Message{ID: "msg-1", Status: tc.from}
		err := msg.TransitionTo(tc.to, now)
		if tc.allowed && err != nil {
			t.Fatalf("expected %s -> %s to be allowed, got %v", tc.from, tc.to, err)
		}
		if !tc.allowed && err == nil {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionToClearsClaimOnPending(t *testing.T) {
	now := time.Now().UTC()
	claimedAt := now.Add(-time.Minute)
	msg := &Message{
		ID:        "msg-1",
		Status:    MessageStatusClaimed,
		ClaimedBy: "dest-1",
		ClaimedAt: &claimedAt,
	}
	if err := msg.TransitionTo(MessageStatusPending, now); err != nil {
		t.Fatalf("transition to pending: %v", err)
	}
	if msg.ClaimedBy != "" || msg.ClaimedAt != nil {
		t.Fatalf("expected claim fields cleared, got claimed_by=%q claimed_at=%v", msg.ClaimedBy, msg.ClaimedAt)
	}
}

func TestTransitionToStampsProcessedAt(t *testing.T) {
	now := time.Now().UTC()
	msg := &Message{ID: "msg-1", Status: MessageStatusClaimed}
	if err := msg.TransitionTo(MessageStatusProcessed, now); err != nil {
		t.Fatalf("transition to processed: %v", err)
	}
	if msg.ProcessedAt == nil || !msg.ProcessedAt.Equal(now) {
		t.Fatalf("expected processed_at %v, got %v", now, msg.ProcessedAt)
	}
}

func TestPayloadValidate(t *testing.T) {
	valid := Payload{
		Headers: []string{"id", "name"},
		Record:  map[string]string{"id": "1", "name": "alpha"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	if err := (Payload{}).Validate(); err == nil {
		t.Fatalf("expected empty headers to fail")
	}
	if err := (Payload{Headers: []string{"id", "id"}}).Validate(); err == nil {
		t.Fatalf("expected duplicate headers to fail")
	}
	if err := (Payload{Headers: []string{" "}}).Validate(); err == nil {
		t.Fatalf("expected blank header to fail")
	}
	orphan := Payload{
		Headers: []string{"id"},
		Record:  map[string]string{"id": "1", "extra": "x"},
	}
	if err := orphan.Validate(); err == nil {
		t.Fatalf("expected record field without header to fail")
	}
	// A header with no record value is a sparse row, not an error.
	sparse := Payload{
		Headers: []string{"id", "name"},
		Record:  map[string]string{"id": "1"},
	}
	if err := sparse.Validate(); err != nil {
		t.Fatalf("expected sparse record to pass, got %v", err)
	}
}

func TestPayloadCloneIsIndependent(t *testing.T) {
	original := Payload{
		Headers: []string{"id"},
		Record:  map[string]string{"id": "1"},
	}
	cloned := original.Clone()
	cloned.Headers[0] = "changed"
	cloned.Record["id"] = "2"
	if original.Headers[0] != "id" || original.Record["id"] != "1" {
		t.Fatalf("clone mutated the original: %+v", original)
	}
}

func TestHasLiveClaimBoundary(t *testing.T) {
	now := time.Now().UTC()
	lockTimeout := 5 * time.Minute

	fresh := now.Add(-lockTimeout + time.Second)
	msg := Message{Status: MessageStatusClaimed, ClaimedAt: &fresh}
	if !msg.HasLiveClaim(now, lockTimeout) {
		t.Fatalf("expected claim inside the window to be live")
	}

	exact := now.Add(-lockTimeout)
	msg.ClaimedAt = &exact
	if msg.HasLiveClaim(now, lockTimeout) {
		t.Fatalf("expected claim aged exactly lockTimeout to be expired")
	}

	msg.Status = MessageStatusPending
	if msg.HasLiveClaim(now, lockTimeout) {
		t.Fatalf("pending message cannot hold a live claim")
	}

	msg.Status = MessageStatusClaimed
	msg.ClaimedAt = nil
	if msg.HasLiveClaim(now, lockTimeout) {
		t.Fatalf("claimed without claimed_at cannot hold a live claim")
	}
}

func TestSubscriptionFilterMatches(t *testing.T) {
	msg := Message{InterfaceName: "Orders", ProducerInstanceID: "src-1"}

	wildcard := SubscriptionFilter{InterfaceName: "Orders"}
	if !wildcard.IsWildcard() {
		t.Fatalf("expected empty producer filter to be wildcard")
	}
	if !wildcard.Matches(msg) {
		t.Fatalf("expected wildcard filter to match")
	}

	pinned := SubscriptionFilter{InterfaceName: "Orders", ProducerInstanceID: "src-1"}
	if !pinned.Matches(msg) {
		t.Fatalf("expected pinned filter to match its producer")
	}

	other := SubscriptionFilter{InterfaceName: "Orders", ProducerInstanceID: "src-2"}
	if other.Matches(msg) {
		t.Fatalf("expected mismatched producer to be rejected")
	}

	wrongInterface := SubscriptionFilter{InterfaceName: "Inventory"}
	if wrongInterface.Matches(msg) {
		t.Fatalf("expected interface mismatch to be rejected")
	}
}
