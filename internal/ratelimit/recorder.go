package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const recordTimeout = 5 * time.Second

// Recorder writes violation audit records off the request path. A failed
// write is logged and dropped; the already-decided 429 stands regardless.
type Recorder struct {
	sink AuditSink
}

// NewRecorder constructs a Recorder.
func NewRecorder(sink AuditSink) *Recorder {
	return &Recorder{sink: sink}
}

// Record persists the violation in the background, fire-and-forget.
func (r *Recorder) Record(v Violation) {
	if r == nil || r.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if errAppend := r.sink.Append(ctx, v); errAppend != nil {
			log.WithError(errAppend).
				WithField("org_id", v.OrgID).
				WithField("window", v.Window.String()).
				Warn("rate limit: violation record failed")
		}
	}()
}

// GormAuditSink appends violation rows to the application database.
type GormAuditSink struct {
	db *gorm.DB
}

// NewGormAuditSink constructs a GormAuditSink.
func NewGormAuditSink(db *gorm.DB) *GormAuditSink {
	return &GormAuditSink{db: db}
}

// Append writes one violation row.
func (s *GormAuditSink) Append(ctx context.Context, v Violation) error {
	if s == nil || s.db == nil {
		return errors.New("rate limit audit: not initialized")
	}
	var apiKeyID *uint64
	if v.APIKeyID != 0 {
		id := v.APIKeyID
		apiKeyID = &id
	}
	occurredAt := v.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	metadata := datatypes.JSONMap{
		"class": v.Class.String(),
	}
	row := models.RateLimitViolation{
		OrgID:             v.OrgID,
		APIKeyID:          apiKeyID,
		Endpoint:          v.Endpoint,
		Method:            v.Method,
		LimitType:         v.Window.String(),
		ObservedCount:     v.Observed,
		LimitValue:        v.Limit,
		ClientIP:          v.ClientIP,
		UserAgent:         v.UserAgent,
		RetryAfterSeconds: int(v.RetryAfter / time.Second),
		Metadata:          metadata,
		CreatedAt:         occurredAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}
