package ratelimit

import "context"

// CounterStore is the atomic counter backend. Implementations must make
// Increment a single add-and-return operation at the storage layer; two
// requests landing in the same millisecond must both be counted.
//
// Storage errors propagate to the caller unchanged. The store never
// substitutes a default count; the fail-open decision belongs to Checker.
type CounterStore interface {
	// Increment atomically adds one to the bucket and returns the new count.
	Increment(ctx context.Context, key BucketKey) (int64, error)
	// Peek returns the bucket's current count without modifying it. Peek may
	// trail concurrent increments; approximate counting is accepted.
	Peek(ctx context.Context, key BucketKey) (int64, error)
}
