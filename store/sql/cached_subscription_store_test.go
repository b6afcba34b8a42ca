package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-relay/core"
)

type stubSubscriptionSource struct {
	mu           sync.Mutex
	filter       core.SubscriptionFilter
	subscription core.Subscription
	resolveCalls int
	disableCalls int
	getErr       error
}

func (s *stubSubscriptionSource) CreateOrUpdate(_ context.Context, in core.UpsertSubscriptionInput) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscription = core.Subscription{
		ID:                     "sub_cache_1",
		DestinationInstanceID:  in.DestinationInstanceID,
		InterfaceName:          in.InterfaceName,
		DestinationAdapterName: in.DestinationAdapterName,
		Enabled:                true,
	}
	s.filter = core.SubscriptionFilter{
		InterfaceName:      in.InterfaceName,
		ProducerInstanceID: in.ProducerInstanceID,
	}
	return s.subscription, nil
}

func (s *stubSubscriptionSource) Resolve(_ context.Context, _ string, _ string) (core.SubscriptionFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++
	return s.filter, nil
}

func (s *stubSubscriptionSource) Disable(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableCalls++
	return nil
}

func (s *stubSubscriptionSource) Get(_ context.Context, _ string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return core.Subscription{}, s.getErr
	}
	return s.subscription, nil
}

func newTestSubscriptionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedSubscriptionStore_Resolve_MissFetchThenHit(t *testing.T) {
	base := &stubSubscriptionSource{
		filter: core.SubscriptionFilter{InterfaceName: "orders.v1", ProducerInstanceID: "producer-1"},
	}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached subscription store: %v", err)
	}

	filter, err := store.Resolve(context.Background(), "dest-1", "orders.v1")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if filter.ProducerInstanceID != "producer-1" {
		t.Fatalf("unexpected filter: %#v", filter)
	}
	if base.resolveCalls != 1 {
		t.Fatalf("expected first resolve to fetch base once, got %d", base.resolveCalls)
	}

	if _, err := store.Resolve(context.Background(), "dest-1", "orders.v1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if base.resolveCalls != 1 {
		t.Fatalf("expected second resolve to be cache hit, base calls=%d", base.resolveCalls)
	}
}

func TestCachedSubscriptionStore_CreateOrUpdate_InvalidatesPair(t *testing.T) {
	base := &stubSubscriptionSource{
		filter: core.SubscriptionFilter{InterfaceName: "orders.v1"},
	}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached subscription store: %v", err)
	}

	if _, err := store.Resolve(context.Background(), "dest-1", "orders.v1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if base.resolveCalls != 1 {
		t.Fatalf("expected one base read after prime, got %d", base.resolveCalls)
	}

	if _, err := store.CreateOrUpdate(context.Background(), core.UpsertSubscriptionInput{
		DestinationInstanceID:  "dest-1",
		InterfaceName:          "orders.v1",
		DestinationAdapterName: "http-sink",
		ProducerInstanceID:     "producer-2",
	}); err != nil {
		t.Fatalf("upsert through cached store: %v", err)
	}

	filter, err := store.Resolve(context.Background(), "dest-1", "orders.v1")
	if err != nil {
		t.Fatalf("resolve after invalidation: %v", err)
	}
	if base.resolveCalls != 2 {
		t.Fatalf("expected invalidated pair to force second base read, got %d", base.resolveCalls)
	}
	if filter.ProducerInstanceID != "producer-2" {
		t.Fatalf("expected refreshed filter, got %#v", filter)
	}
}

func TestCachedSubscriptionStore_Disable_InvalidatesPair(t *testing.T) {
	base := &stubSubscriptionSource{
		subscription: core.Subscription{
			ID:                    "sub_cache_1",
			DestinationInstanceID: "dest-1",
			InterfaceName:         "orders.v1",
		},
		filter: core.SubscriptionFilter{InterfaceName: "orders.v1"},
	}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached subscription store: %v", err)
	}

	if _, err := store.Resolve(context.Background(), "dest-1", "orders.v1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Disable(context.Background(), "sub_cache_1"); err != nil {
		t.Fatalf("disable through cached store: %v", err)
	}
	if base.disableCalls != 1 {
		t.Fatalf("expected one base disable call, got %d", base.disableCalls)
	}

	if _, err := store.Resolve(context.Background(), "dest-1", "orders.v1"); err != nil {
		t.Fatalf("resolve after disable: %v", err)
	}
	if base.resolveCalls != 2 {
		t.Fatalf("expected disable to invalidate cached pair, base calls=%d", base.resolveCalls)
	}
}

func TestCachedSubscriptionStore_Disable_UnknownIDStaysIdempotent(t *testing.T) {
	base := &stubSubscriptionSource{
		getErr: fmt.Errorf("sqlstore: subscription not found: sub_missing"),
	}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached subscription store: %v", err)
	}

	if err := store.Disable(context.Background(), "sub_missing"); err != nil {
		t.Fatalf("disable unknown subscription: %v", err)
	}
	if base.disableCalls != 1 {
		t.Fatalf("expected disable to still delegate, got %d calls", base.disableCalls)
	}
}

func TestSubscriptionCacheKey_Contract(t *testing.T) {
	key, err := SubscriptionCacheKey("dest/alpha one", "orders.v1")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-relay::subscription::v1::dest%2Falpha%20one::orders.v1"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}

	if _, err := SubscriptionCacheKey("", "orders.v1"); err == nil {
		t.Fatalf("expected blank destination error")
	}
}
