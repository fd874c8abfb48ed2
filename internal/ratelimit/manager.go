package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisSettings is the counter backend snapshot the manager acts on.
type RedisSettings struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// SettingsProvider supplies the latest Redis settings snapshot.
type SettingsProvider func() RedisSettings

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager is the CounterStore handed to the checker and middleware. It
// prefers Redis when enabled and healthy, trips a breaker on Redis errors,
// and falls back to the primary store while the breaker is open. Callers
// see a single contract; the backend choice stays an implementation detail.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	primary        CounterStore
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redisStore   *RedisStore
	redisCfg     redisConfig
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, primary CounterStore, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() RedisSettings { return RedisSettings{} }
	}
	if primary == nil {
		primary = NewMemoryStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		primary:        primary,
		nowFn:          nowFn,
		newRedisClient: newRedisClient,
	}
}

// Increment routes the atomic increment to the best available backend.
func (m *Manager) Increment(ctx context.Context, key BucketKey) (int64, error) {
	if m == nil {
		return 0, errors.New("rate limit manager: not initialized")
	}
	if store, ok := m.redisBackend(ctx); ok {
		count, errIncr := store.Increment(ctx, key)
		if errIncr == nil {
			return count, nil
		}
		m.tripBreaker(errIncr, m.nowFn())
	}
	return m.primary.Increment(ctx, key)
}

// Peek routes the read to the best available backend.
func (m *Manager) Peek(ctx context.Context, key BucketKey) (int64, error) {
	if m == nil {
		return 0, errors.New("rate limit manager: not initialized")
	}
	if store, ok := m.redisBackend(ctx); ok {
		count, errPeek := store.Peek(ctx, key)
		if errPeek == nil {
			return count, nil
		}
		m.tripBreaker(errPeek, m.nowFn())
	}
	return m.primary.Peek(ctx, key)
}

// redisBackend returns the Redis store when enabled and the breaker allows.
func (m *Manager) redisBackend(ctx context.Context) (*RedisStore, bool) {
	cfg := m.provider()
	if !cfg.Enabled {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return nil, false
	}
	store, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return nil, false
	}
	return store, store != nil
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to primary store")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg RedisSettings) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.Password),
		prefix:   strings.TrimSpace(cfg.Prefix),
		db:       cfg.DB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisStore != nil && m.redisCfg == nextCfg {
		return m.redisStore, nil
	}
	if m.redisStore != nil {
		_ = m.redisStore.client.Close()
		m.redisStore = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisStore = NewRedisStore(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisStore, nil
}
