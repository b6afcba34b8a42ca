package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidMessageStatusTransition = errors.New("core: invalid message status transition")
	ErrInvalidPayload                 = errors.New("core: invalid message payload")
	ErrMessageNotFound                = errors.New("core: message not found")
	ErrSubscriptionNotFound           = errors.New("core: subscription not found")
	ErrStoreUnavailable               = errors.New("core: message store unavailable")
)

type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "Pending"
	MessageStatusClaimed    MessageStatus = "Claimed"
	MessageStatusProcessed  MessageStatus = "Processed"
	MessageStatusFailed     MessageStatus = "Failed"
	MessageStatusDeadLetter MessageStatus = "DeadLetter"
)

// IsTerminal reports whether the relay will never mutate the message again.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusProcessed || s == MessageStatusDeadLetter
}

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusClaimed, MessageStatusProcessed,
		MessageStatusFailed, MessageStatusDeadLetter:
		return true
	}
	return false
}

// Payload is the wire envelope a source adapter stages: ordered field names
// plus one record keyed by field name. The relay routes it without reading
// field values.
type Payload struct {
	Headers []string          `json:"headers"`
	Record  map[string]string `json:"record"`
}

func (p Payload) Validate() error {
	if len(p.Headers) == 0 {
		return fmt.Errorf("%w: headers are required", ErrInvalidPayload)
	}
	seen := make(map[string]struct{}, len(p.Headers))
	for _, header := range p.Headers {
		name := strings.TrimSpace(header)
		if name == "" {
			return fmt.Errorf("%w: empty header name", ErrInvalidPayload)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate header %q", ErrInvalidPayload, name)
		}
		seen[name] = struct{}{}
	}
	for field := range p.Record {
		if _, ok := seen[field]; !ok {
			return fmt.Errorf("%w: record field %q has no header", ErrInvalidPayload, field)
		}
	}
	return nil
}

func (p Payload) Clone() Payload {
	cloned := Payload{
		Headers: append([]string(nil), p.Headers...),
	}
	if p.Record != nil {
		cloned.Record = make(map[string]string, len(p.Record))
		for field, value := range p.Record {
			cloned.Record[field] = value
		}
	}
	return cloned
}

// Message is one staged record in the relay mailbox.
type Message struct {
	ID                 string
	InterfaceName      string
	SourceAdapterName  string
	ProducerInstanceID string
	Payload            Payload
	Status             MessageStatus
	ClaimedBy          string
	ClaimedAt          *time.Time
	RetryCount         int
	LastError          string
	CreatedAt          time.Time
	ProcessedAt        *time.Time
}

// TransitionTo validates and applies a status change. Pending, Claimed and
// Failed are live states; Processed and DeadLetter are terminal. The store
// enforces claim ownership; this guards the shape of the state machine.
func (m *Message) TransitionTo(status MessageStatus, now time.Time) error {
	if m == nil {
		return nil
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidMessageStatusTransition, status)
	}
	if !messageTransitionAllowed(m.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidMessageStatusTransition, m.Status, status)
	}
	m.Status = status
	switch status {
	case MessageStatusProcessed:
		processedAt := now.UTC()
		m.ProcessedAt = &processedAt
	case MessageStatusPending:
		m.ClaimedBy = ""
		m.ClaimedAt = nil
	}
	return nil
}

func messageTransitionAllowed(from, to MessageStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case MessageStatusPending:
		return to == MessageStatusClaimed
	case MessageStatusClaimed:
		return to == MessageStatusPending ||
			to == MessageStatusProcessed ||
			to == MessageStatusFailed
	case MessageStatusFailed:
		return to == MessageStatusPending || to == MessageStatusDeadLetter
	}
	return false
}

// HasLiveClaim reports whether the message is claimed and the claim has not
// aged past lockTimeout at the given instant.
func (m Message) HasLiveClaim(now time.Time, lockTimeout time.Duration) bool {
	if m.Status != MessageStatusClaimed || m.ClaimedAt == nil {
		return false
	}
	return now.Sub(*m.ClaimedAt) < lockTimeout
}

// SubscriptionFilter restricts which producer's messages a destination
// instance claims. An empty ProducerInstanceID matches any source.
type SubscriptionFilter struct {
	InterfaceName      string
	ProducerInstanceID string
}

func (f SubscriptionFilter) IsWildcard() bool {
	return strings.TrimSpace(f.ProducerInstanceID) == ""
}

func (f SubscriptionFilter) Matches(msg Message) bool {
	if !strings.EqualFold(strings.TrimSpace(f.InterfaceName), strings.TrimSpace(msg.InterfaceName)) {
		return false
	}
	if f.IsWildcard() {
		return true
	}
	return strings.TrimSpace(f.ProducerInstanceID) == strings.TrimSpace(msg.ProducerInstanceID)
}

// Subscription binds a destination adapter instance to a source filter. At
// most one enabled subscription exists per (destination, interface); a newer
// upsert disables the older row.
type Subscription struct {
	ID                     string
	DestinationInstanceID  string
	InterfaceName          string
	DestinationAdapterName string
	FilterCriteria         SubscriptionFilter
	Enabled                bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// AdapterInstance is a read-only configuration snapshot owned by the external
// configuration store, refreshed each tick.
type AdapterInstance struct {
	InstanceID    string
	AdapterName   string
	InterfaceName string
	IsEnabled     bool
	Configuration map[string]any
}

// InterfaceConfig is one enabled interface plus the destination instances
// that drain it, captured as an immutable per-tick snapshot.
type InterfaceConfig struct {
	Name         string
	Destinations []AdapterInstance
}

// MessageOutcome is the per-message verdict an adapter reports from Deliver.
type MessageOutcome struct {
	MessageID string
	Processed bool
	Reason    string
}

// DeliveryResult aggregates adapter outcomes for one claimed batch.
type DeliveryResult struct {
	Outcomes []MessageOutcome
}

// DeadLetterEntry is the operator-facing view of an exhausted message.
type DeadLetterEntry struct {
	MessageID     string
	InterfaceName string
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
