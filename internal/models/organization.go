package models

import "time"

// Organization is one tenant. Its requests are metered independently of
// every other organization.
type Organization struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"`             // Display name.
	Slug string `gorm:"type:text;not null;uniqueIndex"` // URL-safe identifier.

	Tier string `gorm:"type:text;not null;default:'free'"` // Assigned rate limit tier name.

	Active bool `gorm:"not null"` // Whether the org can call the API.

	APIKeys []APIKey `gorm:"foreignKey:OrgID"` // Related API keys.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
