package ratelimit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultCacheTTL bounds how stale a cached org config may be.
const DefaultCacheTTL = 30 * time.Second

type cachedConfig struct {
	cfg     Config
	expires time.Time
}

// resolveStrategy attempts one source of an org's effective config.
type resolveStrategy func(ctx context.Context, orgID uint64) (Config, bool)

// Resolver produces the effective quota config for an organization. It
// tries an ordered list of strategies: explicit per-org override, the org's
// assigned tier, then the catalog default. The last strategy cannot fail,
// so Resolve never returns an error; degraded lookups degrade to the free
// preset instead of blocking traffic.
type Resolver struct {
	store    ConfigStore
	catalog  *Catalog
	cacheTTL time.Duration
	nowFn    func() time.Time

	mu    sync.Mutex
	cache map[uint64]cachedConfig
}

// NewResolver constructs a Resolver with default dependencies when nil.
func NewResolver(store ConfigStore, catalog *Catalog, cacheTTL time.Duration, nowFn func() time.Time) *Resolver {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Resolver{
		store:    store,
		catalog:  catalog,
		cacheTTL: cacheTTL,
		nowFn:    nowFn,
		cache:    make(map[uint64]cachedConfig),
	}
}

// Resolve returns the org's effective config.
func (r *Resolver) Resolve(ctx context.Context, orgID uint64) Config {
	if r == nil {
		return NewCatalog().Default()
	}
	now := r.nowFn()
	if cfg, ok := r.cached(orgID, now); ok {
		return cfg
	}

	strategies := []resolveStrategy{r.fromOverride, r.fromTier, r.fromDefault}
	for _, strategy := range strategies {
		cfg, ok := strategy(ctx, orgID)
		if !ok {
			continue
		}
		r.put(orgID, cfg, now)
		return cfg
	}
	// Unreachable: fromDefault always succeeds.
	return r.catalog.Default()
}

// Invalidate drops the cached config for one org.
func (r *Resolver) Invalidate(orgID uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.cache, orgID)
	r.mu.Unlock()
}

func (r *Resolver) cached(orgID uint64, now time.Time) (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[orgID]
	if !ok || now.After(entry.expires) {
		return Config{}, false
	}
	return entry.cfg, true
}

func (r *Resolver) put(orgID uint64, cfg Config, now time.Time) {
	r.mu.Lock()
	r.cache[orgID] = cachedConfig{cfg: cfg, expires: now.Add(r.cacheTTL)}
	r.mu.Unlock()
}

func (r *Resolver) fromOverride(ctx context.Context, orgID uint64) (Config, bool) {
	if r.store == nil || orgID == 0 {
		return Config{}, false
	}
	override, errOverride := r.store.Override(ctx, orgID)
	if errOverride != nil {
		log.WithError(errOverride).WithField("org_id", orgID).Warn("rate limit: override lookup failed")
		return Config{}, false
	}
	if override == nil {
		return Config{}, false
	}
	return *override, true
}

func (r *Resolver) fromTier(ctx context.Context, orgID uint64) (Config, bool) {
	if r.store == nil || orgID == 0 {
		return Config{}, false
	}
	tierName, errTier := r.store.TierName(ctx, orgID)
	if errTier != nil {
		log.WithError(errTier).WithField("org_id", orgID).Warn("rate limit: tier lookup failed")
		return Config{}, false
	}
	cfg, errResolve := r.catalog.Resolve(tierName)
	if errResolve != nil {
		return Config{}, false
	}
	return cfg, true
}

func (r *Resolver) fromDefault(context.Context, uint64) (Config, bool) {
	return r.catalog.Default(), true
}
