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

type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*relaySubscriptionRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*relaySubscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{db: db, repo: repo}, nil
}

// CreateOrUpdate enables a fresh wiring for (destination, interface) and
// disables any prior active row in the same transaction, preserving the
// invariant of at most one enabled subscription per pair. Old rows are kept
// for audit, never deleted.
func (s *SubscriptionStore) CreateOrUpdate(
	ctx context.Context,
	in core.UpsertSubscriptionInput,
) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	in.DestinationInstanceID = strings.TrimSpace(in.DestinationInstanceID)
	in.InterfaceName = strings.TrimSpace(in.InterfaceName)
	in.DestinationAdapterName = strings.TrimSpace(in.DestinationAdapterName)
	in.ProducerInstanceID = strings.TrimSpace(in.ProducerInstanceID)
	if in.DestinationInstanceID == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: destination instance id is required")
	}
	if in.InterfaceName == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: interface name is required")
	}
	if in.DestinationAdapterName == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: destination adapter name is required")
	}

	now := time.Now().UTC()
	record := &relaySubscriptionRecord{
		ID:                     uuid.NewString(),
		DestinationInstanceID:  in.DestinationInstanceID,
		InterfaceName:          in.InterfaceName,
		DestinationAdapterName: in.DestinationAdapterName,
		ProducerInstanceID:     in.ProducerInstanceID,
		Enabled:                true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*relaySubscriptionRecord)(nil)).
			Set("enabled = ?", false).
			Set("updated_at = ?", now).
			Where("destination_instance_id = ?", in.DestinationInstanceID).
			Where("interface_name = ?", in.InterfaceName).
			Where("enabled = ?", true).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return core.Subscription{}, err
	}
	return record.toDomain(), nil
}

// Resolve returns the active filter for a destination instance, or a
// wildcard when none is wired. Instances with no explicit wiring keep
// consuming from any source.
func (s *SubscriptionStore) Resolve(
	ctx context.Context,
	destinationInstanceID string,
	interfaceName string,
) (core.SubscriptionFilter, error) {
	if s == nil || s.db == nil {
		return core.SubscriptionFilter{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	destinationInstanceID = strings.TrimSpace(destinationInstanceID)
	interfaceName = strings.TrimSpace(interfaceName)
	if destinationInstanceID == "" {
		return core.SubscriptionFilter{}, fmt.Errorf("sqlstore: destination instance id is required")
	}
	if interfaceName == "" {
		return core.SubscriptionFilter{}, fmt.Errorf("sqlstore: interface name is required")
	}

	record := &relaySubscriptionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.destination_instance_id = ?", destinationInstanceID).
		Where("?TableAlias.interface_name = ?", interfaceName).
		Where("?TableAlias.enabled = ?", true).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SubscriptionFilter{InterfaceName: interfaceName}, nil
		}
		return core.SubscriptionFilter{}, err
	}
	return core.SubscriptionFilter{
		InterfaceName:      interfaceName,
		ProducerInstanceID: record.ProducerInstanceID,
	}, nil
}

// Disable clears a wiring. Disabling an unknown or already-disabled
// subscription is a no-op.
func (s *SubscriptionStore) Disable(ctx context.Context, subscriptionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return fmt.Errorf("sqlstore: subscription id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*relaySubscriptionRecord)(nil)).
		Set("enabled = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", subscriptionID).
		Exec(ctx)
	return err
}

// Get returns a subscription by id, mostly for operator tooling and tests.
func (s *SubscriptionStore) Get(ctx context.Context, subscriptionID string) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	record := &relaySubscriptionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(subscriptionID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Subscription{}, fmt.Errorf("%w: %s", core.ErrSubscriptionNotFound, subscriptionID)
		}
		return core.Subscription{}, err
	}
	return record.toDomain(), nil
}

var _ core.SubscriptionRegistry = (*SubscriptionStore)(nil)
