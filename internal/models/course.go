package models

import "time"

// Course is an org-scoped course record, part of the metered API surface.
type Course struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID uint64        `gorm:"not null;index"`   // Owning organization ID.
	Org   *Organization `gorm:"foreignKey:OrgID"` // Owning organization.

	Title       string `gorm:"type:text;not null"`     // Course title.
	Description string `gorm:"type:text"`              // Course description.
	Published   bool   `gorm:"not null;default:false"` // Visible to learners.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Assessment is an org-scoped assessment attached to a course.
type Assessment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID    uint64  `gorm:"not null;index"`      // Owning organization ID.
	CourseID uint64  `gorm:"not null;index"`      // Parent course ID.
	Course   *Course `gorm:"foreignKey:CourseID"` // Parent course.

	Title        string `gorm:"type:text;not null"`  // Assessment title.
	PassingScore int    `gorm:"not null;default:60"` // Minimum passing score.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
