package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements CounterStore on the application database. The
// increment is a single upsert statement, not a read-then-write pair, so
// concurrent requests against the same bucket all land.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Increment atomically upserts the bucket row and returns the new count.
func (s *GormStore) Increment(ctx context.Context, key BucketKey) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("rate limit store: not initialized")
	}
	row := models.RateLimitCounter{
		BucketKey:   key.String(),
		OrgID:       key.OrgID,
		APIKeyID:    key.APIKeyID,
		Class:       key.Class.String(),
		Window:      key.Window.String(),
		Count:       1,
		WindowStart: key.Start,
		ResetAt:     key.Reset(),
	}
	errUpsert := s.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "bucket_key"}},
				DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("count + 1")}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "count"}}},
		).
		Create(&row).Error
	if errUpsert != nil {
		return 0, fmt.Errorf("rate limit store: increment: %w", errUpsert)
	}
	return row.Count, nil
}

// Peek returns the bucket's current count. A missing row reads as zero.
func (s *GormStore) Peek(ctx context.Context, key BucketKey) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("rate limit store: not initialized")
	}
	var row models.RateLimitCounter
	errFind := s.db.WithContext(ctx).
		Model(&models.RateLimitCounter{}).
		Select("count").
		Where("bucket_key = ?", key.String()).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("rate limit store: peek: %w", errFind)
	}
	return row.Count, nil
}

// PruneExpired deletes counter rows whose window ended before now. Expired
// buckets are never read again; this is retention housekeeping only.
func (s *GormStore) PruneExpired(ctx context.Context, now time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("rate limit store: not initialized")
	}
	errDelete := s.db.WithContext(ctx).
		Where("reset_at < ?", now.UTC()).
		Delete(&models.RateLimitCounter{}).Error
	if errDelete != nil {
		return fmt.Errorf("rate limit store: prune: %w", errDelete)
	}
	return nil
}

// GormConfigStore loads per-org overrides and tier assignments from the
// application database.
type GormConfigStore struct {
	db *gorm.DB
}

// NewGormConfigStore constructs a GormConfigStore.
func NewGormConfigStore(db *gorm.DB) *GormConfigStore {
	return &GormConfigStore{db: db}
}

// Override returns the explicit per-org quota override, or nil when absent.
func (s *GormConfigStore) Override(ctx context.Context, orgID uint64) (*Config, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("rate limit config store: not initialized")
	}
	var row models.OrgRateLimit
	errFind := s.db.WithContext(ctx).
		Where("org_id = ? AND is_enabled = ?", orgID, true).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("rate limit config store: override: %w", errFind)
	}
	cfg := Config{
		Tier:                  "override",
		RequestsPerMinute:     row.RequestsPerMinute,
		RequestsPerHour:       row.RequestsPerHour,
		RequestsPerDay:        row.RequestsPerDay,
		BurstAllowance:        row.BurstAllowance,
		WebhooksPerMinute:     row.WebhooksPerMinute,
		WebhooksPerHour:       row.WebhooksPerHour,
		MaxConcurrentRequests: row.MaxConcurrentRequests,
		EnforceHardLimits:     row.EnforceHardLimits,
	}
	return &cfg, nil
}

// TierName returns the org's assigned tier name, or "" when unset.
func (s *GormConfigStore) TierName(ctx context.Context, orgID uint64) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("rate limit config store: not initialized")
	}
	var row struct {
		Tier string
	}
	errFind := s.db.WithContext(ctx).
		Model(&models.Organization{}).
		Select("tier").
		Where("id = ?", orgID).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("rate limit config store: tier name: %w", errFind)
	}
	return row.Tier, nil
}
