package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryBucket struct {
	reset time.Time
	count int64
}

// MemoryStore is an in-process CounterStore. It backs tests and serves as
// the last-resort backend when neither Redis nor the database is usable.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*memoryBucket)}
}

// Increment atomically adds one to the bucket and returns the new count.
func (s *MemoryStore) Increment(_ context.Context, key BucketKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.buckets[key.String()]
	if entry == nil {
		entry = &memoryBucket{reset: key.Reset()}
		s.buckets[key.String()] = entry
	}
	entry.count++
	s.pruneLocked(key.Start)
	return entry.count, nil
}

// Peek returns the bucket's current count.
func (s *MemoryStore) Peek(_ context.Context, key BucketKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.buckets[key.String()]
	if entry == nil {
		return 0, nil
	}
	return entry.count, nil
}

// pruneLocked drops buckets whose window has passed. Expired buckets are
// never read again; this only bounds memory.
func (s *MemoryStore) pruneLocked(now time.Time) {
	if len(s.buckets) < 4096 {
		return
	}
	for k, entry := range s.buckets {
		if entry.reset.Before(now) {
			delete(s.buckets, k)
		}
	}
}
