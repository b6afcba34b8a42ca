package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-relay/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MessageStore is the durable mailbox over bun. Claims are serialized with a
// single conditional UPDATE so concurrent claimants, in-process or not,
// never win the same row twice.
type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*relayMessageRecord]
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*relayMessageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	return &MessageStore{db: db, repo: repo}, nil
}

func (s *MessageStore) Enqueue(ctx context.Context, in core.EnqueueInput) (core.Message, error) {
	if s == nil || s.repo == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	in.InterfaceName = strings.TrimSpace(in.InterfaceName)
	in.SourceAdapterName = strings.TrimSpace(in.SourceAdapterName)
	in.ProducerInstanceID = strings.TrimSpace(in.ProducerInstanceID)
	if in.InterfaceName == "" {
		return core.Message{}, fmt.Errorf("sqlstore: interface name is required")
	}
	if in.SourceAdapterName == "" {
		return core.Message{}, fmt.Errorf("sqlstore: source adapter name is required")
	}
	if in.ProducerInstanceID == "" {
		return core.Message{}, fmt.Errorf("sqlstore: producer instance id is required")
	}
	if err := in.Payload.Validate(); err != nil {
		return core.Message{}, err
	}

	record := &relayMessageRecord{
		ID:                 uuid.NewString(),
		InterfaceName:      in.InterfaceName,
		SourceAdapterName:  in.SourceAdapterName,
		ProducerInstanceID: in.ProducerInstanceID,
		Payload:            in.Payload.Clone(),
		Status:             string(core.MessageStatusPending),
		RetryCount:         0,
		LastError:          "",
		CreatedAt:          time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, record); err != nil {
		return core.Message{}, storeError("enqueue", err)
	}
	return record.toDomain(), nil
}

// ClaimBatch atomically flips up to maxCount Pending rows matching the
// filter to Claimed, stamping claimed_by/claimed_at. Nothing matching is an
// empty result, not an error.
func (s *MessageStore) ClaimBatch(
	ctx context.Context,
	filter core.ClaimFilter,
	claimantID string,
	maxCount int,
) ([]core.Message, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	claimantID = strings.TrimSpace(claimantID)
	if claimantID == "" {
		return nil, fmt.Errorf("sqlstore: claimant id is required")
	}
	interfaceName := strings.TrimSpace(filter.InterfaceName)
	if interfaceName == "" {
		return nil, fmt.Errorf("sqlstore: claim filter interface name is required")
	}
	if maxCount <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	producerFilter := strings.TrimSpace(filter.ProducerInstanceID)

	var records []relayMessageRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimable AS (
	SELECT id
	FROM relay_messages
	WHERE status = ?
	  AND interface_name = ?
	  AND (? = '' OR producer_instance_id = ?)
	ORDER BY created_at ASC
	LIMIT ?
)
UPDATE relay_messages
SET status = ?, claimed_by = ?, claimed_at = ?
WHERE id IN (SELECT id FROM claimable)
  AND status = ?
RETURNING
	id,
	interface_name,
	source_adapter_name,
	producer_instance_id,
	payload,
	status,
	claimed_by,
	claimed_at,
	retry_count,
	last_error,
	created_at,
	processed_at
`
		return tx.NewRaw(
			query,
			string(core.MessageStatusPending),
			interfaceName,
			producerFilter,
			producerFilter,
			maxCount,
			string(core.MessageStatusClaimed),
			claimantID,
			now,
			string(core.MessageStatusPending),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, storeError("claim batch", err)
	}

	messages := make([]core.Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].toDomain())
	}
	return messages, nil
}

// MarkProcessed transitions Claimed -> Processed for the claimant that holds
// the row. Any other state is an invalid transition.
func (s *MessageStore) MarkProcessed(ctx context.Context, messageID string, claimantID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	messageID = strings.TrimSpace(messageID)
	claimantID = strings.TrimSpace(claimantID)
	if messageID == "" {
		return fmt.Errorf("sqlstore: message id is required")
	}
	if claimantID == "" {
		return fmt.Errorf("sqlstore: claimant id is required")
	}

	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*relayMessageRecord)(nil)).
		Set("status = ?", string(core.MessageStatusProcessed)).
		Set("processed_at = ?", now).
		Set("last_error = ?", "").
		Where("id = ?", messageID).
		Where("status = ?", string(core.MessageStatusClaimed)).
		Where("claimed_by = ?", claimantID).
		Exec(ctx)
	if err != nil {
		return storeError("mark processed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("mark processed", err)
	}
	if affected == 0 {
		return fmt.Errorf(
			"%w: message %s is not claimed by %s",
			core.ErrInvalidMessageStatusTransition, messageID, claimantID,
		)
	}
	return nil
}

// MarkFailed advances the retry budget: below maxRetries the message returns
// to Pending for a future claim, at the ceiling it dead-letters. The failure
// reason is always recorded.
func (s *MessageStore) MarkFailed(
	ctx context.Context,
	messageID string,
	claimantID string,
	cause error,
	maxRetries int,
) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	messageID = strings.TrimSpace(messageID)
	claimantID = strings.TrimSpace(claimantID)
	if messageID == "" {
		return core.Message{}, fmt.Errorf("sqlstore: message id is required")
	}
	if claimantID == "" {
		return core.Message{}, fmt.Errorf("sqlstore: claimant id is required")
	}
	lastError := "delivery failed"
	if cause != nil && strings.TrimSpace(cause.Error()) != "" {
		lastError = strings.TrimSpace(cause.Error())
	}

	var updated relayMessageRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &relayMessageRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", messageID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", core.ErrMessageNotFound, messageID)
			}
			return err
		}
		if record.Status != string(core.MessageStatusClaimed) ||
			record.ClaimedBy == nil || *record.ClaimedBy != claimantID {
			return fmt.Errorf(
				"%w: message %s is not claimed by %s",
				core.ErrInvalidMessageStatusTransition, messageID, claimantID,
			)
		}

		nextRetryCount := record.RetryCount + 1
		nextStatus := string(core.MessageStatusPending)
		if nextRetryCount >= maxRetries {
			nextStatus = string(core.MessageStatusDeadLetter)
		}

		res, err := tx.NewUpdate().
			Model((*relayMessageRecord)(nil)).
			Set("status = ?", nextStatus).
			Set("retry_count = ?", nextRetryCount).
			Set("last_error = ?", lastError).
			Set("claimed_by = NULL").
			Set("claimed_at = NULL").
			Where("id = ?", messageID).
			Where("status = ?", string(core.MessageStatusClaimed)).
			Where("claimed_by = ?", claimantID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf(
				"%w: message %s is not claimed by %s",
				core.ErrInvalidMessageStatusTransition, messageID, claimantID,
			)
		}

		record.Status = nextStatus
		record.RetryCount = nextRetryCount
		record.LastError = lastError
		record.ClaimedBy = nil
		record.ClaimedAt = nil
		updated = *record
		return nil
	})
	if err != nil {
		return core.Message{}, storeError("mark failed", err)
	}
	return updated.toDomain(), nil
}

// ReleaseExpiredLocks resets Claimed rows whose claim aged past lockTimeout
// back to Pending, clearing the claim fields. Returns the number of rows
// released.
func (s *MessageStore) ReleaseExpiredLocks(ctx context.Context, lockTimeout time.Duration) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: message store is not configured")
	}
	if lockTimeout <= 0 {
		return 0, fmt.Errorf("sqlstore: lock timeout must be > 0")
	}
	cutoff := time.Now().UTC().Add(-lockTimeout)

	res, err := s.db.NewUpdate().
		Model((*relayMessageRecord)(nil)).
		Set("status = ?", string(core.MessageStatusPending)).
		Set("claimed_by = NULL").
		Set("claimed_at = NULL").
		Where("status = ?", string(core.MessageStatusClaimed)).
		Where("claimed_at IS NOT NULL").
		Where("claimed_at <= ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, storeError("release expired locks", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("release expired locks", err)
	}
	return int(affected), nil
}

// RequeueDeadLetter returns an exhausted message to Pending with a fresh
// retry budget. Only DeadLetter rows qualify.
func (s *MessageStore) RequeueDeadLetter(ctx context.Context, messageID string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return core.Message{}, fmt.Errorf("sqlstore: message id is required")
	}

	res, err := s.db.NewUpdate().
		Model((*relayMessageRecord)(nil)).
		Set("status = ?", string(core.MessageStatusPending)).
		Set("retry_count = 0").
		Set("claimed_by = NULL").
		Set("claimed_at = NULL").
		Where("id = ?", messageID).
		Where("status = ?", string(core.MessageStatusDeadLetter)).
		Exec(ctx)
	if err != nil {
		return core.Message{}, storeError("requeue dead letter", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Message{}, storeError("requeue dead letter", err)
	}
	if affected == 0 {
		return core.Message{}, fmt.Errorf(
			"%w: message %s is not dead-lettered",
			core.ErrInvalidMessageStatusTransition, messageID,
		)
	}
	return s.Get(ctx, messageID)
}

func (s *MessageStore) Get(ctx context.Context, messageID string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return core.Message{}, fmt.Errorf("sqlstore: message id is required")
	}
	record := &relayMessageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", messageID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Message{}, fmt.Errorf("%w: %s", core.ErrMessageNotFound, messageID)
		}
		return core.Message{}, storeError("get message", err)
	}
	return record.toDomain(), nil
}

func (s *MessageStore) CountByStatus(ctx context.Context) (map[core.MessageStatus]int, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	var rows []struct {
		Status string `bun:"status"`
		Total  int    `bun:"total"`
	}
	err := s.db.NewSelect().
		Model((*relayMessageRecord)(nil)).
		ColumnExpr("?TableAlias.status AS status").
		ColumnExpr("COUNT(*) AS total").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, storeError("count by status", err)
	}
	counts := make(map[core.MessageStatus]int, len(rows))
	for _, row := range rows {
		counts[core.MessageStatus(row.Status)] = row.Total
	}
	return counts, nil
}

func (s *MessageStore) ListByStatus(
	ctx context.Context,
	status core.MessageStatus,
	limit int,
) ([]core.Message, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	if !status.Valid() {
		return nil, fmt.Errorf("sqlstore: invalid message status %q", status)
	}
	if limit <= 0 {
		limit = 100
	}
	var records []relayMessageRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(status)).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, storeError("list by status", err)
	}
	messages := make([]core.Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].toDomain())
	}
	return messages, nil
}

func (s *MessageStore) ListDeadLetters(ctx context.Context, limit int) ([]core.DeadLetterEntry, error) {
	messages, err := s.ListByStatus(ctx, core.MessageStatusDeadLetter, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]core.DeadLetterEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, core.DeadLetterEntry{
			MessageID:     msg.ID,
			InterfaceName: msg.InterfaceName,
			RetryCount:    msg.RetryCount,
			LastError:     msg.LastError,
			CreatedAt:     msg.CreatedAt,
		})
	}
	return entries, nil
}

func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, operation, err)
	}
	return err
}

func isUnavailable(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "database is closed") ||
		strings.Contains(message, "connection refused") ||
		strings.Contains(message, "connection reset") ||
		strings.Contains(message, "driver: bad connection")
}

var _ core.MessageStore = (*MessageStore)(nil)
