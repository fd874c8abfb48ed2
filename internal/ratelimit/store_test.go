package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreIncrementAndPeek(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	key := NewBucketKey(Identity{OrgID: 1}, ClassRequest, WindowMinute, now)

	for i := int64(1); i <= 3; i++ {
		count, err := store.Increment(context.Background(), key)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	count, err := store.Peek(context.Background(), key)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected peek 3, got %d", count)
	}
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	key := NewBucketKey(Identity{OrgID: 1, APIKeyID: 2}, ClassRequest, WindowMinute, now)

	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Increment(context.Background(), key); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := store.Peek(context.Background(), key)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != workers {
		t.Fatalf("expected %d after concurrent increments, got %d", workers, count)
	}
}

func TestMemoryStoreWindowsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	id := Identity{OrgID: 1}

	minuteKey := NewBucketKey(id, ClassRequest, WindowMinute, now)
	hourKey := NewBucketKey(id, ClassRequest, WindowHour, now)

	if _, err := store.Increment(context.Background(), minuteKey); err != nil {
		t.Fatalf("increment minute: %v", err)
	}
	count, err := store.Peek(context.Background(), hourKey)
	if err != nil {
		t.Fatalf("peek hour: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected untouched hour bucket, got %d", count)
	}
}

func TestMemoryStoreNewWindowStartsFresh(t *testing.T) {
	store := NewMemoryStore()
	id := Identity{OrgID: 1}

	first := NewBucketKey(id, ClassRequest, WindowMinute, time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC))
	second := NewBucketKey(id, ClassRequest, WindowMinute, time.Date(2025, 1, 1, 0, 1, 5, 0, time.UTC))

	if _, err := store.Increment(context.Background(), first); err != nil {
		t.Fatalf("increment: %v", err)
	}
	count, err := store.Increment(context.Background(), second)
	if err != nil {
		t.Fatalf("increment next window: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh window count 1, got %d", count)
	}
}

func TestRedisStoreIncrementSetsTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStore(client, "courselab:rl")

	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	key := NewBucketKey(Identity{OrgID: 9}, ClassRequest, WindowMinute, now)

	count, err := store.Increment(context.Background(), key)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	redisKey := "courselab:rl:" + key.String()
	ttl := srv.TTL(redisKey)
	if ttl != 2*time.Minute {
		t.Fatalf("expected ttl of twice the window, got %s", ttl)
	}

	count, err = store.Increment(context.Background(), key)
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestRedisStorePeekMissingKeyIsZero(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStore(client, "")

	key := NewBucketKey(Identity{OrgID: 9}, ClassWebhook, WindowHour, time.Now())
	count, err := store.Peek(context.Background(), key)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero for missing bucket, got %d", count)
	}
}

func TestGormStoreIncrementUpserts(t *testing.T) {
	conn := openTestDB(t)
	store := NewGormStore(conn)

	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	key := NewBucketKey(Identity{OrgID: 3}, ClassRequest, WindowHour, now)

	for i := int64(1); i <= 3; i++ {
		count, err := store.Increment(context.Background(), key)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	count, err := store.Peek(context.Background(), key)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected peek 3, got %d", count)
	}
}

func TestGormStoreConcurrentIncrements(t *testing.T) {
	conn := openTestDB(t)
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	// sqlite admits one writer at a time.
	sqlDB.SetMaxOpenConns(1)
	store := NewGormStore(conn)

	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	key := NewBucketKey(Identity{OrgID: 3, APIKeyID: 4}, ClassRequest, WindowMinute, now)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Increment(context.Background(), key); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := store.Peek(context.Background(), key)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != workers {
		t.Fatalf("expected %d after concurrent increments, got %d", workers, count)
	}
}

func TestGormStorePeekMissingRowIsZero(t *testing.T) {
	conn := openTestDB(t)
	store := NewGormStore(conn)

	key := NewBucketKey(Identity{OrgID: 3}, ClassRequest, WindowDay, time.Now())
	count, err := store.Peek(context.Background(), key)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero for missing row, got %d", count)
	}
}

func TestGormStorePruneExpired(t *testing.T) {
	conn := openTestDB(t)
	store := NewGormStore(conn)

	stale := NewBucketKey(Identity{OrgID: 3}, ClassRequest, WindowMinute, time.Now().Add(-time.Hour))
	if _, err := store.Increment(context.Background(), stale); err != nil {
		t.Fatalf("increment stale: %v", err)
	}
	live := NewBucketKey(Identity{OrgID: 3}, ClassRequest, WindowDay, time.Now())
	if _, err := store.Increment(context.Background(), live); err != nil {
		t.Fatalf("increment live: %v", err)
	}

	if errPrune := store.PruneExpired(context.Background(), time.Now()); errPrune != nil {
		t.Fatalf("prune: %v", errPrune)
	}

	if count, _ := store.Peek(context.Background(), stale); count != 0 {
		t.Fatalf("expected stale bucket pruned, got %d", count)
	}
	if count, _ := store.Peek(context.Background(), live); count != 1 {
		t.Fatalf("expected live bucket kept, got %d", count)
	}
}
