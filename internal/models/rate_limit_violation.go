package models

import (
	"time"

	"gorm.io/datatypes"
)

// RateLimitViolation is one denied request, write-once. Rows feed the
// operator audit views and never influence future verdicts.
type RateLimitViolation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID    uint64  `gorm:"not null;index"` // Violating organization ID.
	APIKeyID *uint64 `gorm:"index"`          // API key used, if any.

	Endpoint string `gorm:"type:text;not null"` // Request path.
	Method   string `gorm:"type:text;not null"` // HTTP method.

	LimitType     string `gorm:"type:text;not null;index"` // Violated window: minute, hour or day.
	ObservedCount int64  `gorm:"not null;default:0"`       // Count seen at denial time.
	LimitValue    int    `gorm:"not null;default:0"`       // Limit in force.

	ClientIP  string `gorm:"type:text"` // Caller IP.
	UserAgent string `gorm:"type:text"` // Caller user agent.

	RetryAfterSeconds int `gorm:"not null;default:0"` // Retry hint returned to the caller.

	Metadata datatypes.JSONMap `gorm:"type:jsonb"` // Extra attribution, e.g. quota class.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Denial timestamp.
}
