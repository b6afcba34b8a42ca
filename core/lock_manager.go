package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LockManager funnels every mutation of the claim fields through one place.
// Claims are serialized at the store via atomic conditional updates; the
// manager adds the tick-level ordering rule: stale locks are released before
// any claim, never after, so an expired claim can't be overwritten mid-claim.
type LockManager struct {
	store       MessageStore
	lockTimeout time.Duration
	now         func() time.Time
}

func NewLockManager(store MessageStore, lockTimeout time.Duration) (*LockManager, error) {
	if store == nil {
		return nil, fmt.Errorf("core: lock manager requires a message store")
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultConfig().Relay.LockTimeout
	}
	return &LockManager{
		store:       store,
		lockTimeout: lockTimeout,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (m *LockManager) LockTimeout() time.Duration {
	if m == nil {
		return 0
	}
	return m.lockTimeout
}

// ReleaseStaleLocks returns orphaned claims to Pending. This is the crash
// recovery path: a claimant that died mid-processing never strands a message
// past the lock timeout.
func (m *LockManager) ReleaseStaleLocks(ctx context.Context) (int, error) {
	if m == nil || m.store == nil {
		return 0, fmt.Errorf("core: lock manager is not configured")
	}
	return m.store.ReleaseExpiredLocks(ctx, m.lockTimeout)
}

// ClaimBatch claims up to maxCount Pending messages matching the filter for
// claimantID. Contention is not an error: losers get a smaller or empty
// batch.
func (m *LockManager) ClaimBatch(
	ctx context.Context,
	filter ClaimFilter,
	claimantID string,
	maxCount int,
) ([]Message, error) {
	if m == nil || m.store == nil {
		return nil, fmt.Errorf("core: lock manager is not configured")
	}
	claimantID = strings.TrimSpace(claimantID)
	if claimantID == "" {
		return nil, fmt.Errorf("core: claimant id is required")
	}
	if strings.TrimSpace(filter.InterfaceName) == "" {
		return nil, fmt.Errorf("core: claim filter interface name is required")
	}
	if maxCount <= 0 {
		return nil, nil
	}
	return m.store.ClaimBatch(ctx, filter, claimantID, maxCount)
}

// Complete reports the claimant's outcome for one claimed message and
// returns the resulting status. Failures below maxRetries return the message
// to Pending; at the ceiling it dead-letters.
func (m *LockManager) Complete(
	ctx context.Context,
	messageID string,
	claimantID string,
	outcome MessageOutcome,
	maxRetries int,
) (MessageStatus, error) {
	if m == nil || m.store == nil {
		return "", fmt.Errorf("core: lock manager is not configured")
	}
	if outcome.Processed {
		if err := m.store.MarkProcessed(ctx, messageID, claimantID); err != nil {
			return "", err
		}
		return MessageStatusProcessed, nil
	}
	reason := strings.TrimSpace(outcome.Reason)
	if reason == "" {
		reason = "delivery failed"
	}
	updated, err := m.store.MarkFailed(ctx, messageID, claimantID, fmt.Errorf("%s", reason), maxRetries)
	if err != nil {
		return "", err
	}
	return updated.Status, nil
}
