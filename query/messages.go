package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeMessageStatusCounts = "relay.query.message.status_counts"
	TypeListMessages        = "relay.query.message.list"
	TypeListDeadLetters     = "relay.query.deadletter.list"
)

type MessageStatusCountsMessage struct{}

func (MessageStatusCountsMessage) Type() string { return TypeMessageStatusCounts }

func (MessageStatusCountsMessage) Validate() error { return nil }

type ListMessagesMessage struct {
	Status core.MessageStatus
	Limit  int
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	if strings.TrimSpace(string(m.Status)) == "" {
		return fmt.Errorf("query: message status is required")
	}
	if !m.Status.Valid() {
		return fmt.Errorf("query: invalid message status %q", m.Status)
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type ListDeadLettersMessage struct {
	Limit int
}

func (ListDeadLettersMessage) Type() string { return TypeListDeadLetters }

func (m ListDeadLettersMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}
