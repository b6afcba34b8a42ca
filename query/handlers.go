package query

import (
	"context"

	"github.com/goliatone/go-relay/core"
)

type MessageStatusReader interface {
	MessageStatusCounts(ctx context.Context) (map[core.MessageStatus]int, error)
}

type MessageReader interface {
	ListByStatus(ctx context.Context, status core.MessageStatus, limit int) ([]core.Message, error)
}

type DeadLetterReader interface {
	ListDeadLetters(ctx context.Context, limit int) ([]core.DeadLetterEntry, error)
}

type MessageStatusCountsQuery struct {
	reader MessageStatusReader
}

func NewMessageStatusCountsQuery(reader MessageStatusReader) *MessageStatusCountsQuery {
	return &MessageStatusCountsQuery{reader: reader}
}

func (q *MessageStatusCountsQuery) Query(
	ctx context.Context,
	msg MessageStatusCountsMessage,
) (map[core.MessageStatus]int, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: message status reader is required")
	}
	return q.reader.MessageStatusCounts(ctx)
}

type ListMessagesQuery struct {
	reader MessageReader
}

func NewListMessagesQuery(reader MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) ([]core.Message, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: message reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryWrapValidation(err, "query: invalid list messages request")
	}
	return q.reader.ListByStatus(ctx, msg.Status, msg.Limit)
}

type ListDeadLettersQuery struct {
	reader DeadLetterReader
}

func NewListDeadLettersQuery(reader DeadLetterReader) *ListDeadLettersQuery {
	return &ListDeadLettersQuery{reader: reader}
}

func (q *ListDeadLettersQuery) Query(
	ctx context.Context,
	msg ListDeadLettersMessage,
) ([]core.DeadLetterEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: dead letter reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryWrapValidation(err, "query: invalid dead letter request")
	}
	return q.reader.ListDeadLetters(ctx, msg.Limit)
}
