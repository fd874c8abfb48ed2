package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeConfigStore struct {
	override    *Config
	overrideErr error
	tier        string
	tierErr     error

	overrideCalls int
	tierCalls     int
}

func (s *fakeConfigStore) Override(context.Context, uint64) (*Config, error) {
	s.overrideCalls++
	return s.override, s.overrideErr
}

func (s *fakeConfigStore) TierName(context.Context, uint64) (string, error) {
	s.tierCalls++
	return s.tier, s.tierErr
}

func TestResolverPrefersOverride(t *testing.T) {
	store := &fakeConfigStore{
		override: &Config{Tier: "override", RequestsPerMinute: 7},
		tier:     "pro",
	}
	resolver := NewResolver(store, NewCatalog(), 0, nil)

	cfg := resolver.Resolve(context.Background(), 1)
	if cfg.Tier != "override" || cfg.RequestsPerMinute != 7 {
		t.Fatalf("expected override config, got %+v", cfg)
	}
	if store.tierCalls != 0 {
		t.Fatalf("expected tier lookup to be skipped, got %d calls", store.tierCalls)
	}
}

func TestResolverFallsBackToTier(t *testing.T) {
	store := &fakeConfigStore{tier: "pro"}
	resolver := NewResolver(store, NewCatalog(), 0, nil)

	cfg := resolver.Resolve(context.Background(), 1)
	if cfg.Tier != "pro" {
		t.Fatalf("expected pro tier, got %+v", cfg)
	}
}

func TestResolverFallsBackToDefault(t *testing.T) {
	// Override lookup errors, assigned tier is unknown: the free preset wins.
	store := &fakeConfigStore{
		overrideErr: errors.New("db down"),
		tier:        "no-such-tier",
	}
	resolver := NewResolver(store, NewCatalog(), 0, nil)

	cfg := resolver.Resolve(context.Background(), 1)
	if cfg.Tier != "free" {
		t.Fatalf("expected free fallback, got %+v", cfg)
	}
}

func TestResolverCachesWithinTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }

	store := &fakeConfigStore{tier: "pro"}
	resolver := NewResolver(store, NewCatalog(), 30*time.Second, nowFn)

	resolver.Resolve(context.Background(), 1)
	resolver.Resolve(context.Background(), 1)
	if store.overrideCalls != 1 {
		t.Fatalf("expected one store hit within TTL, got %d", store.overrideCalls)
	}

	now = now.Add(31 * time.Second)
	resolver.Resolve(context.Background(), 1)
	if store.overrideCalls != 2 {
		t.Fatalf("expected cache expiry after TTL, got %d store hits", store.overrideCalls)
	}
}

func TestResolverInvalidateDropsCache(t *testing.T) {
	store := &fakeConfigStore{tier: "pro"}
	resolver := NewResolver(store, NewCatalog(), time.Hour, nil)

	resolver.Resolve(context.Background(), 1)
	resolver.Invalidate(1)
	resolver.Resolve(context.Background(), 1)

	if store.overrideCalls != 2 {
		t.Fatalf("expected fresh lookup after invalidate, got %d store hits", store.overrideCalls)
	}
}

func TestResolverCacheIsPerOrg(t *testing.T) {
	store := &fakeConfigStore{tier: "pro"}
	resolver := NewResolver(store, NewCatalog(), time.Hour, nil)

	resolver.Resolve(context.Background(), 1)
	resolver.Resolve(context.Background(), 2)
	if store.overrideCalls != 2 {
		t.Fatalf("expected per-org cache entries, got %d store hits", store.overrideCalls)
	}
}
