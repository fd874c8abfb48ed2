package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/courselab/courselab-api/internal/models"
	"gorm.io/gorm"
)

// ErrTierNotFound indicates an unknown tier name.
var ErrTierNotFound = errors.New("rate limit tier not found")

// DefaultTier always resolves, regardless of catalog state.
const DefaultTier = "free"

// builtinTiers seed the catalog before any database rows load. The free
// preset is fixed: it is the terminal fallback of config resolution.
var builtinTiers = map[string]Config{
	"free": {
		Tier:                  "free",
		RequestsPerMinute:     60,
		RequestsPerHour:       1000,
		RequestsPerDay:        10000,
		BurstAllowance:        0,
		WebhooksPerMinute:     10,
		WebhooksPerHour:       100,
		MaxConcurrentRequests: 10,
		EnforceHardLimits:     true,
	},
	"pro": {
		Tier:                  "pro",
		RequestsPerMinute:     300,
		RequestsPerHour:       10000,
		RequestsPerDay:        100000,
		BurstAllowance:        50,
		WebhooksPerMinute:     60,
		WebhooksPerHour:       1000,
		MaxConcurrentRequests: 50,
		EnforceHardLimits:     true,
	},
	"enterprise": {
		Tier:                  "enterprise",
		RequestsPerMinute:     1000,
		RequestsPerHour:       50000,
		RequestsPerDay:        1000000,
		BurstAllowance:        200,
		WebhooksPerMinute:     300,
		WebhooksPerHour:       5000,
		MaxConcurrentRequests: 200,
		EnforceHardLimits:     true,
	},
}

// Catalog maps tier names to quota presets. Reads are safe from any number
// of goroutines; ReloadFromDB swaps the map wholesale.
type Catalog struct {
	mu    sync.RWMutex
	tiers map[string]Config
}

// NewCatalog constructs a Catalog seeded with the builtin presets.
func NewCatalog() *Catalog {
	tiers := make(map[string]Config, len(builtinTiers))
	for name, cfg := range builtinTiers {
		tiers[name] = cfg
	}
	return &Catalog{tiers: tiers}
}

// Resolve returns the preset for name, or ErrTierNotFound.
func (c *Catalog) Resolve(name string) (Config, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Config{}, ErrTierNotFound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.tiers[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrTierNotFound, name)
	}
	return cfg, nil
}

// Default returns the free preset. It resolves even if the catalog was
// reloaded with rows that omit it.
func (c *Catalog) Default() Config {
	if cfg, err := c.Resolve(DefaultTier); err == nil {
		return cfg
	}
	return builtinTiers[DefaultTier]
}

// Names returns the known tier names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tiers))
	for name := range c.tiers {
		names = append(names, name)
	}
	return names
}

// ReloadFromDB merges enabled tier rows over the builtin presets. A load
// failure leaves the current catalog untouched.
func (c *Catalog) ReloadFromDB(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("rate limit catalog: nil db")
	}
	var rows []models.RateLimitTier
	if errFind := db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Find(&rows).Error; errFind != nil {
		return fmt.Errorf("rate limit catalog: load tiers: %w", errFind)
	}

	tiers := make(map[string]Config, len(builtinTiers)+len(rows))
	for name, cfg := range builtinTiers {
		tiers[name] = cfg
	}
	for _, row := range rows {
		name := strings.ToLower(strings.TrimSpace(row.Name))
		if name == "" {
			continue
		}
		tiers[name] = Config{
			Tier:                  name,
			RequestsPerMinute:     row.RequestsPerMinute,
			RequestsPerHour:       row.RequestsPerHour,
			RequestsPerDay:        row.RequestsPerDay,
			BurstAllowance:        row.BurstAllowance,
			WebhooksPerMinute:     row.WebhooksPerMinute,
			WebhooksPerHour:       row.WebhooksPerHour,
			MaxConcurrentRequests: row.MaxConcurrentRequests,
			EnforceHardLimits:     row.EnforceHardLimits,
		}
	}

	c.mu.Lock()
	c.tiers = tiers
	c.mu.Unlock()
	return nil
}
