package db

import (
	"errors"
	"fmt"

	"github.com/courselab/courselab-api/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema and seeds reference data.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Setting{},
		&models.Admin{},
		&models.Organization{},
		&models.APIKey{},
		&models.RateLimitTier{},
		&models.OrgRateLimit{},
		&models.RateLimitCounter{},
		&models.RateLimitViolation{},
		&models.Course{},
		&models.Assessment{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureDefaultTiers(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// defaultTiers mirrors the limiter's builtin presets so operators can see
// and edit them; the catalog merges rows over the builtins on reload.
var defaultTiers = []models.RateLimitTier{
	{
		Name:                  "free",
		Description:           "Default tier for new organizations.",
		RequestsPerMinute:     60,
		RequestsPerHour:       1000,
		RequestsPerDay:        10000,
		WebhooksPerMinute:     10,
		WebhooksPerHour:       100,
		MaxConcurrentRequests: 10,
		EnforceHardLimits:     true,
		SortOrder:             0,
		IsEnabled:             true,
	},
	{
		Name:                  "pro",
		Description:           "Paid tier with burst headroom.",
		RequestsPerMinute:     300,
		RequestsPerHour:       10000,
		RequestsPerDay:        100000,
		BurstAllowance:        50,
		WebhooksPerMinute:     60,
		WebhooksPerHour:       1000,
		MaxConcurrentRequests: 50,
		EnforceHardLimits:     true,
		SortOrder:             1,
		IsEnabled:             true,
	},
	{
		Name:                  "enterprise",
		Description:           "Contract tier.",
		RequestsPerMinute:     1000,
		RequestsPerHour:       50000,
		RequestsPerDay:        1000000,
		BurstAllowance:        200,
		WebhooksPerMinute:     300,
		WebhooksPerHour:       5000,
		MaxConcurrentRequests: 200,
		EnforceHardLimits:     true,
		SortOrder:             2,
		IsEnabled:             true,
	},
}

func ensureDefaultTiers(conn *gorm.DB) error {
	for _, tier := range defaultTiers {
		var existing models.RateLimitTier
		errFind := conn.Where("name = ?", tier.Name).Take(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: check tier %s: %w", tier.Name, errFind)
		}
		row := tier
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("db: seed tier %s: %w", tier.Name, errCreate)
		}
	}
	return nil
}
