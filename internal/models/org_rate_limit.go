package models

import "time"

// OrgRateLimit is an explicit per-org quota override. When present and
// enabled it wins over the org's assigned tier.
type OrgRateLimit struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID uint64        `gorm:"not null;uniqueIndex"` // Overridden organization ID.
	Org   *Organization `gorm:"foreignKey:OrgID"`     // Overridden organization.

	RequestsPerMinute int `gorm:"not null;default:0"` // Request quota, minute window.
	RequestsPerHour   int `gorm:"not null;default:0"` // Request quota, hour window.
	RequestsPerDay    int `gorm:"not null;default:0"` // Request quota, day window.
	BurstAllowance    int `gorm:"not null;default:0"` // Extra minute-window headroom.

	WebhooksPerMinute int `gorm:"not null;default:0"` // Webhook quota, minute window.
	WebhooksPerHour   int `gorm:"not null;default:0"` // Webhook quota, hour window.

	MaxConcurrentRequests int  `gorm:"not null;default:0"` // In-flight cap, 0 = unlimited.
	EnforceHardLimits     bool `gorm:"not null"`           // False puts the org in shadow mode.

	IsEnabled bool `gorm:"not null"` // Whether the override applies.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
