// Package usage aggregates rate limit counters into per-org usage reports
// for the admin API.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"gorm.io/gorm"
)

// WindowUsage reports consumption of one window of one quota class.
type WindowUsage struct {
	Limit    int       `json:"limit"`    // Effective limit, 0 = unmetered.
	Observed int64     `json:"observed"` // Requests counted so far.
	Reset    time.Time `json:"reset"`    // When the window rolls over.
}

// Summary is the full usage picture for one org at one instant.
type Summary struct {
	OrgID         uint64                 `json:"org_id"`
	Tier          string                 `json:"tier"`
	Requests      map[string]WindowUsage `json:"requests"`
	Webhooks      map[string]WindowUsage `json:"webhooks"`
	Violations24h int64                  `json:"violations_24h"`
}

// Reporter builds usage summaries from persisted counters.
type Reporter struct {
	db       *gorm.DB
	resolver *ratelimit.Resolver
	nowFn    func() time.Time
}

// NewReporter constructs a Reporter.
func NewReporter(db *gorm.DB, resolver *ratelimit.Resolver, nowFn func() time.Time) *Reporter {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Reporter{db: db, resolver: resolver, nowFn: nowFn}
}

// OrgSummary reports current-window consumption for every quota class and
// window of one org, plus the violation count over the trailing day.
func (r *Reporter) OrgSummary(ctx context.Context, orgID uint64) (Summary, error) {
	if r == nil || r.db == nil {
		return Summary{}, errors.New("usage reporter: not initialized")
	}
	now := r.nowFn()
	cfg := r.resolver.Resolve(ctx, orgID)
	id := ratelimit.Identity{OrgID: orgID}

	summary := Summary{
		OrgID:    orgID,
		Tier:     cfg.Tier,
		Requests: make(map[string]WindowUsage, len(ratelimit.Windows)),
		Webhooks: make(map[string]WindowUsage, len(ratelimit.Windows)),
	}

	for _, window := range ratelimit.Windows {
		reqUsage, errReq := r.windowUsage(ctx, id, ratelimit.ClassRequest, window, cfg, now)
		if errReq != nil {
			return Summary{}, errReq
		}
		summary.Requests[window.String()] = reqUsage

		if window == ratelimit.WindowDay {
			continue
		}
		hookUsage, errHook := r.windowUsage(ctx, id, ratelimit.ClassWebhook, window, cfg, now)
		if errHook != nil {
			return Summary{}, errHook
		}
		summary.Webhooks[window.String()] = hookUsage
	}

	since := now.Add(-24 * time.Hour)
	if errCount := r.db.WithContext(ctx).
		Model(&models.RateLimitViolation{}).
		Where("org_id = ? AND created_at >= ?", orgID, since).
		Count(&summary.Violations24h).Error; errCount != nil {
		return Summary{}, fmt.Errorf("usage: count violations: %w", errCount)
	}
	return summary, nil
}

// windowUsage sums the window's live buckets across every API key of the
// org, so the report shows tenant-wide consumption.
func (r *Reporter) windowUsage(ctx context.Context, id ratelimit.Identity, class ratelimit.Class, window ratelimit.Window, cfg ratelimit.Config, now time.Time) (WindowUsage, error) {
	key := ratelimit.NewBucketKey(id, class, window, now)
	out := WindowUsage{
		Limit: window.LimitFor(cfg, class),
		Reset: key.Reset(),
	}

	errSum := r.db.WithContext(ctx).
		Model(&models.RateLimitCounter{}).
		Select("COALESCE(SUM(count), 0)").
		Where("org_id = ? AND class = ? AND window = ? AND window_start = ?",
			id.OrgID, class.String(), window.String(), key.Start).
		Scan(&out.Observed).Error
	if errSum != nil {
		return WindowUsage{}, fmt.Errorf("usage: sum counters %s: %w", key, errSum)
	}
	return out, nil
}
