package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-relay/core"
)

const subscriptionCacheKeyPrefix = "go-relay::subscription::v1"

// SubscriptionSource is the base registry a cached registry wraps. Get is
// needed to invalidate the right pair on Disable.
type SubscriptionSource interface {
	core.SubscriptionRegistry
	Get(ctx context.Context, subscriptionID string) (core.Subscription, error)
}

// CachedSubscriptionStore is a read-through cache over the subscription
// registry. Filters are read once per instance per tick and change rarely;
// writes invalidate the affected pair.
type CachedSubscriptionStore struct {
	base  SubscriptionSource
	cache repositorycache.CacheService
}

func NewCachedSubscriptionStore(
	base SubscriptionSource,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey returns the deterministic cache key contract for
// filter reads: go-relay::subscription::v1::<destination>::<interface> with
// each segment URL-path escaped.
func SubscriptionCacheKey(destinationInstanceID string, interfaceName string) (string, error) {
	destinationInstanceID = strings.TrimSpace(destinationInstanceID)
	interfaceName = strings.TrimSpace(interfaceName)
	if destinationInstanceID == "" || interfaceName == "" {
		return "", fmt.Errorf("sqlstore: destination instance id and interface name are required")
	}
	segments := []string{destinationInstanceID, interfaceName}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{subscriptionCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedSubscriptionStore) CreateOrUpdate(
	ctx context.Context,
	in core.UpsertSubscriptionInput,
) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	sub, err := s.base.CreateOrUpdate(ctx, in)
	if err != nil {
		return core.Subscription{}, err
	}
	if err := s.invalidate(ctx, sub.DestinationInstanceID, sub.InterfaceName); err != nil {
		return core.Subscription{}, err
	}
	return sub, nil
}

func (s *CachedSubscriptionStore) Resolve(
	ctx context.Context,
	destinationInstanceID string,
	interfaceName string,
) (core.SubscriptionFilter, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SubscriptionFilter{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(destinationInstanceID, interfaceName)
	if err != nil {
		return core.SubscriptionFilter{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.SubscriptionFilter, error) {
		return s.base.Resolve(ctx, destinationInstanceID, interfaceName)
	})
}

func (s *CachedSubscriptionStore) Disable(ctx context.Context, subscriptionID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	sub, err := s.base.Get(ctx, subscriptionID)
	if err != nil {
		// Disable is idempotent; an unknown id has nothing to invalidate.
		if strings.Contains(err.Error(), "subscription not found") {
			return s.base.Disable(ctx, subscriptionID)
		}
		return err
	}
	if err := s.base.Disable(ctx, subscriptionID); err != nil {
		return err
	}
	return s.invalidate(ctx, sub.DestinationInstanceID, sub.InterfaceName)
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, destinationInstanceID string, interfaceName string) error {
	cacheKey, err := SubscriptionCacheKey(destinationInstanceID, interfaceName)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.SubscriptionRegistry = (*CachedSubscriptionStore)(nil)
