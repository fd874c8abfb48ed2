// Package watcher polls the database for configuration changes and pushes
// fresh snapshots into the in-memory settings, tier catalog, and resolver
// cache. Detection is cheap: each poll reads only the newest row's
// timestamp and reloads when it moves.
package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	internalsettings "github.com/courselab/courselab-api/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Default timings for the watcher loop.
const (
	// defaultPollInterval controls how often DB snapshots are refreshed.
	defaultPollInterval = 2 * time.Second
	// defaultQueryTimeout bounds DB query duration.
	defaultQueryTimeout = 10 * time.Second
)

// Watcher refreshes DB-backed runtime state on a fixed interval.
type Watcher struct {
	db           *gorm.DB
	catalog      *ratelimit.Catalog
	resolver     *ratelimit.Resolver
	pollInterval time.Duration

	hasSettingsLatest bool
	settingsLatestAt  time.Time
	settingsLatestKey string

	hasTiersLatest bool
	tiersLatestAt  time.Time

	overridesSeenAt time.Time
	orgsSeenAt      time.Time
}

// New constructs a Watcher. Poll interval defaults when non-positive.
func New(db *gorm.DB, catalog *ratelimit.Catalog, resolver *ratelimit.Resolver, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Watcher{
		db:           db,
		catalog:      catalog,
		resolver:     resolver,
		pollInterval: pollInterval,
	}
}

// Run executes the periodic polling loop until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	if w == nil || w.db == nil {
		return
	}
	now := time.Now().UTC()
	w.overridesSeenAt = now
	w.orgsSeenAt = now

	w.pollSettings(ctx, true)
	w.pollTiers(ctx, true)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollSettings(ctx, false)
			w.pollTiers(ctx, false)
			w.pollOverrides(ctx)
		}
	}
}

// pollSettings refreshes DB-backed settings and updates the in-memory config snapshot.
func (w *Watcher) pollSettings(ctx context.Context, force bool) {
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	// latestRow captures the newest setting timestamp for change detection.
	type latestRow struct {
		Key       string     `gorm:"column:key"`        // Latest settings key.
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest settings update time.
	}
	var latest latestRow
	hasLatest := false
	errLatest := w.db.WithContext(qctx).
		Model(&models.Setting{}).
		Select("key", "updated_at").
		Order("updated_at DESC, key DESC").
		Limit(1).
		Take(&latest).Error
	if errLatest != nil {
		if errors.Is(errLatest, context.Canceled) {
			return
		}
		if errors.Is(errLatest, gorm.ErrRecordNotFound) {
			hasLatest = false
		} else {
			log.WithError(errLatest).Warn("db watcher: query settings latest row failed")
			return
		}
	} else {
		hasLatest = true
	}

	latestKey := strings.TrimSpace(latest.Key)
	latestAt := time.Time{}
	if hasLatest && latest.UpdatedAt != nil {
		latestAt = latest.UpdatedAt.UTC()
	}

	if !force {
		if !hasLatest || latest.UpdatedAt == nil {
			if !w.hasSettingsLatest {
				return
			}
		} else if w.hasSettingsLatest && latestAt.Equal(w.settingsLatestAt) && latestKey == w.settingsLatestKey {
			return
		}
	}

	var rows []models.Setting
	if errFind := w.db.WithContext(qctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		if errors.Is(errFind, context.Canceled) {
			return
		}
		log.WithError(errFind).Warn("db watcher: query settings failed")
		return
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	internalsettings.StoreDBConfig(maxUpdatedAt, values)

	if !hasLatest || latest.UpdatedAt == nil || latestKey == "" {
		w.settingsLatestAt = time.Time{}
		w.settingsLatestKey = ""
		w.hasSettingsLatest = false
		return
	}
	w.settingsLatestAt = latestAt
	w.settingsLatestKey = latestKey
	w.hasSettingsLatest = true
}

// pollTiers reloads the tier catalog when tier rows change.
func (w *Watcher) pollTiers(ctx context.Context, force bool) {
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	type latestRow struct {
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest tier update time.
	}
	var latest latestRow
	hasLatest := false
	errLatest := w.db.WithContext(qctx).
		Model(&models.RateLimitTier{}).
		Select("updated_at").
		Order("updated_at DESC, id DESC").
		Limit(1).
		Take(&latest).Error
	if errLatest != nil {
		if errors.Is(errLatest, context.Canceled) {
			return
		}
		if !errors.Is(errLatest, gorm.ErrRecordNotFound) {
			log.WithError(errLatest).Warn("db watcher: query tiers latest row failed")
			return
		}
	} else {
		hasLatest = true
	}

	latestAt := time.Time{}
	if hasLatest && latest.UpdatedAt != nil {
		latestAt = latest.UpdatedAt.UTC()
	}
	if !force && w.hasTiersLatest && latestAt.Equal(w.tiersLatestAt) {
		return
	}

	if w.catalog != nil {
		if errReload := w.catalog.ReloadFromDB(qctx, w.db); errReload != nil {
			log.WithError(errReload).Warn("db watcher: reload tier catalog failed")
			return
		}
	}
	w.tiersLatestAt = latestAt
	w.hasTiersLatest = true
}

// pollOverrides invalidates cached org configs whose source rows changed
// since the previous poll. Tier edits are covered by pollTiers plus the
// resolver cache TTL; this path narrows the staleness window for per-org
// override and tier assignment changes.
func (w *Watcher) pollOverrides(ctx context.Context) {
	if w.resolver == nil {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	now := time.Now().UTC()

	var overrideOrgIDs []uint64
	if errFind := w.db.WithContext(qctx).
		Model(&models.OrgRateLimit{}).
		Where("updated_at > ?", w.overridesSeenAt).
		Pluck("org_id", &overrideOrgIDs).Error; errFind != nil {
		if errors.Is(errFind, context.Canceled) {
			return
		}
		log.WithError(errFind).Warn("db watcher: query changed overrides failed")
		return
	}

	var changedOrgIDs []uint64
	if errFind := w.db.WithContext(qctx).
		Model(&models.Organization{}).
		Where("updated_at > ?", w.orgsSeenAt).
		Pluck("id", &changedOrgIDs).Error; errFind != nil {
		if errors.Is(errFind, context.Canceled) {
			return
		}
		log.WithError(errFind).Warn("db watcher: query changed orgs failed")
		return
	}

	for _, orgID := range overrideOrgIDs {
		w.resolver.Invalidate(orgID)
	}
	for _, orgID := range changedOrgIDs {
		w.resolver.Invalidate(orgID)
	}
	w.overridesSeenAt = now
	w.orgsSeenAt = now
}
