package models

import "time"

// RateLimitCounter is one fixed-window counter bucket. Rows are created
// lazily on first increment and only ever count upward within their window;
// PruneExpired handles retention.
type RateLimitCounter struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BucketKey string `gorm:"type:text;not null;uniqueIndex"` // Canonical bucket key.

	OrgID    uint64 `gorm:"not null;index"`     // Metered organization ID.
	APIKeyID uint64 `gorm:"not null;default:0"` // Metered API key ID, 0 = unattributed.
	Class    string `gorm:"type:text;not null"` // Quota class name.
	Window   string `gorm:"type:text;not null"` // Window name.

	Count int64 `gorm:"not null;default:0"` // Requests counted in the window.

	WindowStart time.Time `gorm:"not null"`       // Window start boundary.
	ResetAt     time.Time `gorm:"not null;index"` // Window end; rows past this are dead.
}
