package sqlstore

import (
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

type relayMessageRecord struct {
	bun.BaseModel `bun:"table:relay_messages,alias:rm"`

	ID                 string       `bun:"id,pk"`
	InterfaceName      string       `bun:"interface_name,notnull"`
	SourceAdapterName  string       `bun:"source_adapter_name,notnull"`
	ProducerInstanceID string       `bun:"producer_instance_id,notnull"`
	Payload            core.Payload `bun:"payload,type:jsonb,notnull"`
	Status             string       `bun:"status,notnull"`
	ClaimedBy          *string      `bun:"claimed_by"`
	ClaimedAt          *time.Time   `bun:"claimed_at,nullzero"`
	RetryCount         int          `bun:"retry_count,notnull"`
	LastError          string       `bun:"last_error,notnull"`
	CreatedAt          time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ProcessedAt        *time.Time   `bun:"processed_at,nullzero"`
}

type relaySubscriptionRecord struct {
	bun.BaseModel `bun:"table:relay_subscriptions,alias:rs"`

	ID                     string    `bun:"id,pk"`
	DestinationInstanceID  string    `bun:"destination_instance_id,notnull"`
	InterfaceName          string    `bun:"interface_name,notnull"`
	DestinationAdapterName string    `bun:"destination_adapter_name,notnull"`
	ProducerInstanceID     string    `bun:"producer_instance_id,notnull"`
	Enabled                bool      `bun:"enabled,notnull"`
	CreatedAt              time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *relayMessageRecord) toDomain() core.Message {
	if r == nil {
		return core.Message{}
	}
	msg := core.Message{
		ID:                 r.ID,
		InterfaceName:      r.InterfaceName,
		SourceAdapterName:  r.SourceAdapterName,
		ProducerInstanceID: r.ProducerInstanceID,
		Payload:            r.Payload.Clone(),
		Status:             core.MessageStatus(r.Status),
		RetryCount:         r.RetryCount,
		LastError:          r.LastError,
		CreatedAt:          r.CreatedAt,
		ClaimedAt:          cloneTimePointer(r.ClaimedAt),
		ProcessedAt:        cloneTimePointer(r.ProcessedAt),
	}
	if r.ClaimedBy != nil {
		msg.ClaimedBy = *r.ClaimedBy
	}
	return msg
}

func (r *relaySubscriptionRecord) toDomain() core.Subscription {
	if r == nil {
		return core.Subscription{}
	}
	return core.Subscription{
		ID:                     r.ID,
		DestinationInstanceID:  r.DestinationInstanceID,
		InterfaceName:          r.InterfaceName,
		DestinationAdapterName: r.DestinationAdapterName,
		FilterCriteria: core.SubscriptionFilter{
			InterfaceName:      r.InterfaceName,
			ProducerInstanceID: r.ProducerInstanceID,
		},
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
