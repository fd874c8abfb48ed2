package ratelimit

import "time"

// Window identifies one of the fixed quota windows.
type Window int

const (
	WindowMinute Window = iota
	WindowHour
	WindowDay
)

// Windows lists every window in verdict priority order, tightest first.
var Windows = [3]Window{WindowMinute, WindowHour, WindowDay}

// Duration returns the window span.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// String returns the window name used in keys and audit rows.
func (w Window) String() string {
	switch w {
	case WindowHour:
		return "hour"
	case WindowDay:
		return "day"
	default:
		return "minute"
	}
}

// Start truncates now to the window's start boundary.
func (w Window) Start(now time.Time) time.Time {
	return now.UTC().Truncate(w.Duration())
}

// Class selects which quota family a request is metered against.
type Class int

const (
	ClassRequest Class = iota
	ClassWebhook
)

// String returns the class name used in keys.
func (c Class) String() string {
	if c == ClassWebhook {
		return "webhook"
	}
	return "request"
}

// LimitFor returns the effective limit for the window and class. Burst
// allowance widens the minute window only; hourly and daily quotas meter
// sustained load and do not absorb spikes.
func (w Window) LimitFor(cfg Config, class Class) int {
	if class == ClassWebhook {
		switch w {
		case WindowHour:
			return cfg.WebhooksPerHour
		case WindowDay:
			return 0
		default:
			return cfg.WebhooksPerMinute
		}
	}
	switch w {
	case WindowHour:
		return cfg.RequestsPerHour
	case WindowDay:
		return cfg.RequestsPerDay
	default:
		return cfg.RequestsPerMinute + cfg.BurstAllowance
	}
}
