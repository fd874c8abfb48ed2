package models

import "time"

// APIKey is an org-owned credential. Only the SHA-256 hash of the token is
// stored; the plaintext is shown once at creation.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID uint64        `gorm:"not null;index"`     // Owning organization ID.
	Org   *Organization `gorm:"foreignKey:OrgID"`   // Owning organization.
	Name  string        `gorm:"type:text;not null"` // Human label.

	KeyHash string `gorm:"type:text;not null;uniqueIndex"` // SHA-256 hex of the token.

	Active     bool       `gorm:"not null"` // Whether the key authenticates.
	LastUsedAt *time.Time // Last successful authentication.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
