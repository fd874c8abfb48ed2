package ratelimit

import (
	"sync"
	"sync/atomic"
)

// ConcurrencyGate tracks in-flight requests per organization and enforces
// the MaxConcurrentRequests quota field.
type ConcurrencyGate struct {
	inflight sync.Map // uint64 -> *atomic.Int64
}

// NewConcurrencyGate constructs a ConcurrencyGate.
func NewConcurrencyGate() *ConcurrencyGate {
	return &ConcurrencyGate{}
}

func (g *ConcurrencyGate) counter(orgID uint64) *atomic.Int64 {
	if counter, ok := g.inflight.Load(orgID); ok {
		return counter.(*atomic.Int64)
	}
	counter, _ := g.inflight.LoadOrStore(orgID, new(atomic.Int64))
	return counter.(*atomic.Int64)
}

// Acquire reserves one in-flight slot for the org. It reports false when
// the org is already at max; max <= 0 means unlimited.
func (g *ConcurrencyGate) Acquire(orgID uint64, max int) bool {
	if g == nil || max <= 0 {
		return true
	}
	counter := g.counter(orgID)
	if counter.Add(1) > int64(max) {
		counter.Add(-1)
		return false
	}
	return true
}

// Release returns one in-flight slot for the org.
func (g *ConcurrencyGate) Release(orgID uint64) {
	if g == nil {
		return
	}
	if counter, ok := g.inflight.Load(orgID); ok {
		counter.(*atomic.Int64).Add(-1)
	}
}
