package ratelimit

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore implements CounterStore on Redis. INCR is the atomic
// primitive; the script attaches a TTL of twice the window so buckets for
// past windows decay without explicit cleanup.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: strings.TrimSpace(prefix)}
}

// Increment atomically adds one to the bucket and returns the new count.
func (s *RedisStore) Increment(ctx context.Context, key BucketKey) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("rate limit redis: not initialized")
	}
	ttl := int64(2 * key.Window.Duration().Seconds())
	res, errEval := redisIncrScript.Run(ctx, s.client, []string{s.buildKey(key)}, ttl).Result()
	if errEval != nil {
		return 0, errEval
	}
	return coerceCount(res)
}

// Peek returns the bucket's current count. A missing key reads as zero.
func (s *RedisStore) Peek(ctx context.Context, key BucketKey) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("rate limit redis: not initialized")
	}
	count, errGet := s.client.Get(ctx, s.buildKey(key)).Int64()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return 0, nil
		}
		return 0, errGet
	}
	return count, nil
}

func (s *RedisStore) buildKey(key BucketKey) string {
	if s.prefix == "" {
		return key.String()
	}
	return s.prefix + ":" + key.String()
}

func coerceCount(res any) (int64, error) {
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, errors.New("rate limit redis: unexpected response type")
	}
}
