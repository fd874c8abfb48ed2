package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const identityContextKey = "rateLimitIdentity"

// SetIdentity attaches the resolved tenant identity to the request context.
// The access middleware calls this; the rate limit middleware reads it.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityContextKey, id)
}

// IdentityFromContext returns the tenant identity attached to the request.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return Identity{}, false
	}
	id, okCast := value.(Identity)
	if !okCast || id.OrgID == 0 {
		return Identity{}, false
	}
	return id, true
}

// Middleware enforces per-org quotas on the request path. Each request runs
// resolve → three-window concurrent check → allow or deny exactly once.
type Middleware struct {
	checker  *Checker
	store    CounterStore
	recorder *Recorder
	gate     *ConcurrencyGate
	nowFn    func() time.Time
}

// NewMiddleware constructs a Middleware with default dependencies when nil.
func NewMiddleware(checker *Checker, store CounterStore, recorder *Recorder, nowFn func() time.Time) *Middleware {
	if checker == nil {
		checker = NewChecker(nil, nil, 0, nowFn)
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Middleware{
		checker:  checker,
		store:    store,
		recorder: recorder,
		gate:     NewConcurrencyGate(),
		nowFn:    nowFn,
	}
}

// Handler returns the gin middleware metering the given quota class.
func (m *Middleware) Handler(class Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, okIdentity := IdentityFromContext(c)
		if !okIdentity {
			// No tenant attribution means the auth layer rejected or skipped
			// this route; nothing to meter.
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cfg := m.checker.Config(ctx, id)

		if cfg.MaxConcurrentRequests > 0 && cfg.EnforceHardLimits {
			if !m.gate.Acquire(id.OrgID, cfg.MaxConcurrentRequests) {
				rejectConcurrency(c, m.nowFn())
				return
			}
			defer m.gate.Release(id.OrgID)
		}

		results := m.checkAll(ctx, id, class)
		verdict, denied := firstDenied(results)

		if denied && cfg.EnforceHardLimits {
			m.recordViolation(c, id, class, verdict)
			attachHeaders(c, verdict)
			reject(c, verdict)
			return
		}
		if denied {
			// Shadow mode: audit the violation, let the request through.
			m.recordViolation(c, id, class, verdict)
		}

		go m.incrementAll(id, class, cfg, m.nowFn())
		attachHeaders(c, results[0])
		c.Next()
	}
}

// checkAll fans out one check per window and awaits them together. Verdict
// selection stays ordered even though the checks race.
func (m *Middleware) checkAll(ctx context.Context, id Identity, class Class) [len(Windows)]Result {
	var results [len(Windows)]Result
	var wg sync.WaitGroup
	for i, window := range Windows {
		wg.Add(1)
		go func(i int, window Window) {
			defer wg.Done()
			results[i] = m.checker.Check(ctx, id, class, window)
		}(i, window)
	}
	wg.Wait()
	return results
}

// incrementAll issues the post-allow counter increments. It runs detached
// from the request; failures are logged and never affect the response.
// Unmetered windows are skipped so they never accumulate counter rows.
func (m *Middleware) incrementAll(id Identity, class Class, cfg Config, now time.Time) {
	for _, window := range Windows {
		if window.LimitFor(cfg, class) <= 0 {
			continue
		}
		key := NewBucketKey(id, class, window, now)
		ctx, cancel := context.WithTimeout(context.Background(), DefaultStoreTimeout)
		_, errIncr := m.store.Increment(ctx, key)
		cancel()
		if errIncr != nil {
			log.WithError(errIncr).
				WithField("org_id", id.OrgID).
				WithField("window", window.String()).
				Warn("rate limit: increment failed")
		}
	}
}

func (m *Middleware) recordViolation(c *gin.Context, id Identity, class Class, res Result) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(Violation{
		OrgID:      id.OrgID,
		APIKeyID:   id.APIKeyID,
		Endpoint:   c.Request.URL.Path,
		Method:     c.Request.Method,
		Window:     res.Window,
		Class:      class,
		Observed:   res.Observed,
		Limit:      res.Limit,
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		RetryAfter: res.RetryAfter,
		OccurredAt: m.nowFn().UTC(),
	})
}

// firstDenied picks the binding verdict: the first denied window in
// minute → hour → day order, so clients get the shortest correct retry hint.
func firstDenied(results [len(Windows)]Result) (Result, bool) {
	for _, res := range results {
		if !res.Allowed {
			return res, true
		}
	}
	return results[0], false
}

func attachHeaders(c *gin.Context, res Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
}

func reject(c *gin.Context, res Result) {
	retryAfter := retryAfterSeconds(res.RetryAfter)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":     "Rate limit exceeded",
		"message":   fmt.Sprintf("Too many requests. Please try again in %d seconds.", retryAfter),
		"limit":     res.Limit,
		"remaining": 0,
		"reset":     res.Reset.Unix(),
	})
}

func rejectConcurrency(c *gin.Context, now time.Time) {
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":     "Rate limit exceeded",
		"message":   "Too many concurrent requests. Please try again in 1 second.",
		"limit":     0,
		"remaining": 0,
		"reset":     now.Add(time.Second).Unix(),
	})
}

// retryAfterSeconds rounds up so a denial never advertises a zero wait.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
