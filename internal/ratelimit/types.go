package ratelimit

import (
	"context"
	"time"
)

// Config is the effective quota snapshot for one organization. Resolvers
// build a fresh value per lookup; a Config is never mutated in place.
type Config struct {
	Tier string // Tier name the config was derived from, if any.

	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	BurstAllowance    int

	WebhooksPerMinute int
	WebhooksPerHour   int

	MaxConcurrentRequests int

	// EnforceHardLimits controls shadow mode: when false, denials are
	// recorded for audit but the request still proceeds.
	EnforceHardLimits bool
}

// Result describes the outcome of a single-window rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Observed   int64 // Count seen at check time; feeds the violation record.
	Reset      time.Time
	RetryAfter time.Duration // Set only when denied.
	Window     Window
	FailedOpen bool // True when the store was unreachable and the check let the request through.
}

// Identity carries the tenant attribution resolved by the access layer.
type Identity struct {
	OrgID    uint64
	OrgSlug  string
	APIKeyID uint64
}

// Violation is one append-only audit record for a denied request.
type Violation struct {
	OrgID      uint64
	APIKeyID   uint64
	Endpoint   string
	Method     string
	Window     Window
	Class      Class
	Observed   int64
	Limit      int
	ClientIP   string
	UserAgent  string
	RetryAfter time.Duration
	OccurredAt time.Time
}

// ConfigStore abstracts the persistence behind config resolution. Lookup
// failures are the caller's to absorb; the resolver degrades to tier and
// then to the catalog default.
type ConfigStore interface {
	// Override returns the explicit per-org quota override, or nil when the
	// org has none.
	Override(ctx context.Context, orgID uint64) (*Config, error)
	// TierName returns the org's assigned tier name, or "" when unset.
	TierName(ctx context.Context, orgID uint64) (string, error)
}

// AuditSink persists violation records.
type AuditSink interface {
	Append(ctx context.Context, v Violation) error
}
