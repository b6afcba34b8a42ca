package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeEnqueueMessage      = "relay.command.message.enqueue"
	TypeUpsertSubscription  = "relay.command.subscription.upsert"
	TypeDisableSubscription = "relay.command.subscription.disable"
	TypeRequeueDeadLetter   = "relay.command.deadletter.requeue"
	TypeRunTick             = "relay.command.tick.run"
)

type EnqueueMessageMessage struct {
	Input core.EnqueueInput
}

func (EnqueueMessageMessage) Type() string { return TypeEnqueueMessage }

func (m EnqueueMessageMessage) Validate() error {
	if strings.TrimSpace(m.Input.InterfaceName) == "" {
		return fmt.Errorf("command: interface name is required")
	}
	if strings.TrimSpace(m.Input.SourceAdapterName) == "" {
		return fmt.Errorf("command: source adapter name is required")
	}
	if strings.TrimSpace(m.Input.ProducerInstanceID) == "" {
		return fmt.Errorf("command: producer instance id is required")
	}
	if err := m.Input.Payload.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid payload")
	}
	return nil
}

type UpsertSubscriptionMessage struct {
	Input core.UpsertSubscriptionInput
}

func (UpsertSubscriptionMessage) Type() string { return TypeUpsertSubscription }

func (m UpsertSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.Input.DestinationInstanceID) == "" {
		return fmt.Errorf("command: destination instance id is required")
	}
	if strings.TrimSpace(m.Input.InterfaceName) == "" {
		return fmt.Errorf("command: interface name is required")
	}
	if strings.TrimSpace(m.Input.DestinationAdapterName) == "" {
		return fmt.Errorf("command: destination adapter name is required")
	}
	return nil
}

type DisableSubscriptionMessage struct {
	SubscriptionID string
}

func (DisableSubscriptionMessage) Type() string { return TypeDisableSubscription }

func (m DisableSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return fmt.Errorf("command: subscription id is required")
	}
	return nil
}

type RequeueDeadLetterMessage struct {
	MessageID string
}

func (RequeueDeadLetterMessage) Type() string { return TypeRequeueDeadLetter }

func (m RequeueDeadLetterMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("command: message id is required")
	}
	return nil
}

type RunTickMessage struct{}

func (RunTickMessage) Type() string { return TypeRunTick }

func (RunTickMessage) Validate() error { return nil }
