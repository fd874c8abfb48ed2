package ratelimit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// FailOpenLimit is the synthetic limit reported when the counter store is
// unreachable and the check lets the request through.
const FailOpenLimit = 60

// DefaultStoreTimeout bounds each counter store call so a slow backend
// cannot stall request processing.
const DefaultStoreTimeout = 500 * time.Millisecond

// Checker evaluates a single quota window for one identity.
type Checker struct {
	resolver *Resolver
	store    CounterStore
	timeout  time.Duration
	nowFn    func() time.Time
}

// NewChecker constructs a Checker with default dependencies when nil.
func NewChecker(resolver *Resolver, store CounterStore, timeout time.Duration, nowFn func() time.Time) *Checker {
	if resolver == nil {
		resolver = NewResolver(nil, nil, 0, nil)
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Checker{resolver: resolver, store: store, timeout: timeout, nowFn: nowFn}
}

// Config returns the identity's effective config.
func (c *Checker) Config(ctx context.Context, id Identity) Config {
	return c.resolver.Resolve(ctx, id.OrgID)
}

// Check evaluates one window against the identity's effective config. When
// the store peek fails the check fails open: the request is allowed under a
// conservative synthetic limit and the error is logged, because
// availability outranks strict enforcement here.
func (c *Checker) Check(ctx context.Context, id Identity, class Class, window Window) Result {
	now := c.nowFn()
	cfg := c.resolver.Resolve(ctx, id.OrgID)
	key := NewBucketKey(id, class, window, now)
	limit := window.LimitFor(cfg, class)
	reset := key.Reset()

	if limit <= 0 {
		// No quota configured for this window and class.
		return Result{Allowed: true, Limit: limit, Reset: reset, Window: window}
	}

	ctxPeek, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	count, errPeek := c.store.Peek(ctxPeek, key)
	if errPeek != nil {
		log.WithError(errPeek).
			WithField("org_id", id.OrgID).
			WithField("window", window.String()).
			Warn("rate limit: peek failed, failing open")
		return Result{
			Allowed:    true,
			Limit:      FailOpenLimit,
			Remaining:  FailOpenLimit,
			Reset:      reset,
			Window:     window,
			FailedOpen: true,
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	result := Result{
		Allowed:   count < int64(limit),
		Limit:     limit,
		Remaining: remaining,
		Observed:  count,
		Reset:     reset,
		Window:    window,
	}
	if !result.Allowed {
		result.RetryAfter = reset.Sub(now)
	}
	return result
}
