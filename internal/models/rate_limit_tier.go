package models

import (
	"time"

	"gorm.io/datatypes"
)

// RateLimitTier is a named quota preset assignable to many organizations.
// Rows merge over the builtin presets when the catalog reloads.
type RateLimitTier struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Tier name, lower-case.
	Description string `gorm:"type:text"`                      // Operator-facing notes.

	RequestsPerMinute int `gorm:"not null;default:0"` // Request quota, minute window.
	RequestsPerHour   int `gorm:"not null;default:0"` // Request quota, hour window.
	RequestsPerDay    int `gorm:"not null;default:0"` // Request quota, day window.
	BurstAllowance    int `gorm:"not null;default:0"` // Extra minute-window headroom.

	WebhooksPerMinute int `gorm:"not null;default:0"` // Webhook quota, minute window.
	WebhooksPerHour   int `gorm:"not null;default:0"` // Webhook quota, hour window.

	MaxConcurrentRequests int  `gorm:"not null;default:0"` // In-flight cap, 0 = unlimited.
	EnforceHardLimits     bool `gorm:"not null"`           // False puts orgs on this tier in shadow mode.

	Features datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Marketing feature list.

	SortOrder int  `gorm:"not null;default:0"` // Display ordering weight.
	IsEnabled bool `gorm:"not null"`           // Whether the tier is active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
