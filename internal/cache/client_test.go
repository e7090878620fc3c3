package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type shopRecord struct {
	Name string `json:"name"`
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func newTestClient(t *testing.T, rdb *redis.Client) *Client {
	c := NewClient(rdb, zerolog.Nop(), 4, time.Minute, 10*time.Second)
	t.Cleanup(c.Close)
	return c
}

func TestPassThrough_CachesValue(t *testing.T) {
	rdb := getRedisClient(t)
	defer rdb.Close()

	ctx := context.Background()
	c := newTestClient(t, rdb)

	id := time.Now().UnixNano()
	prefix := "test:cache:shop:"
	defer rdb.Del(ctx, fmt.Sprintf("%s%d", prefix, id))

	var calls atomic.Int32
	fallback := func(ctx context.Context, id int64) (*shopRecord, error) {
		calls.Add(1)
		return &shopRecord{Name: "cafe"}, nil
	}

	got, err := GetWithPassThrough(ctx, c, prefix, id, fallback, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "cafe" {
		t.Fatalf("expected cafe, got %+v", got)
	}

	// Second read must come from the cache.
	got, err = GetWithPassThrough(ctx, c, prefix, id, fallback, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "cafe" {
		t.Fatalf("expected cafe, got %+v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fallback call, got %d", calls.Load())
	}
}

func TestPassThrough_NullSentinel(t *testing.T) {
	rdb := getRedisClient(t)
	defer rdb.Close()

	ctx := context.Background()
	c := newTestClient(t, rdb)

	id := time.Now().UnixNano()
	prefix := "test:cache:shop:"
	defer rdb.Del(ctx, fmt.Sprintf("%s%d", prefix, id))

	var calls atomic.Int32
	fallback := func(ctx context.Context, id int64) (*shopRecord, error) {
		calls.Add(1)
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetWithPassThrough(ctx, c, prefix, id, fallback, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Fatalf("expected absent, got %+v", got)
		}
	}

	// The second miss must be answered by the sentinel.
	if calls.Load() != 1 {
		t.Errorf("expected 1 fallback call, got %d", calls.Load())
	}
}

func TestLogicalExpire_ColdCacheReturnsNil(t *testing.T) {
	rdb := getRedisClient(t)
	defer rdb.Close()

	ctx := context.Background()
	c := newTestClient(t, rdb)

	fallback := func(ctx context.Context, id int64) (*shopRecord, error) {
		t.Error("fallback must not run for a cold cache")
		return nil, nil
	}

	got, err := GetWithLogicalExpire(ctx, c, "test:cache:cold:", time.Now().UnixNano(), fallback, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for cold cache, got %+v", got)
	}
}

func TestLogicalExpire_FreshEntry(t *testing.T) {
	rdb := getRedisClient(t)
	defer rdb.Close()

	ctx := context.Background()
	c := newTestClient(t, rdb)

	id := time.Now().UnixNano()
	prefix := "test:cache:voucher:"
	key := fmt.Sprintf("%s%d", prefix, id)
	defer rdb.Del(ctx, key)

	if err := c.SetWithLogicalExpire(ctx, key, &shopRecord{Name: "fresh"}, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	fallback := func(ctx context.Context, id int64) (*shopRecord, error) {
		t.Error("fallback must not run for a fresh entry")
		return nil, nil
	}

	got, err := GetWithLogicalExpire(ctx, c, prefix, id, fallback, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "fresh" {
		t.Fatalf("expected fresh, got %+v", got)
	}
}

func TestLogicalExpire_StaleServedWithSingleRebuild(t *testing.T) {
	rdb := getRedisClient(t)
	defer rdb.Close()

	ctx := context.Background()
	c := newTestClient(t, rdb)

	id := time.Now().UnixNano()
	prefix := "test:cache:voucher:"
	key := fmt.Sprintf("%s%d", prefix, id)
	defer rdb.Del(ctx, key, rebuildLockPrefix+key)

	// Entry expired a second ago.
	if err := c.SetWithLogicalExpire(ctx, key, &shopRecord{Name: "stale"}, -time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var calls atomic.Int32
	fallback := func(ctx context.Context, id int64) (*shopRecord, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond) // hold the rebuild open while readers pile up
		return &shopRecord{Name: "rebuilt"}, nil
	}

	readers := 50
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GetWithLogicalExpire(ctx, c, prefix, id, fallback, time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if got == nil {
				t.Error("expected a (possibly stale) value")
			}
		}()
	}
	wg.Wait()

	// Give the background rebuild time to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := GetWithLogicalExpire(ctx, c, prefix, id, fallback, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil && got.Name == "rebuilt" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 rebuild, got %d", calls.Load())
	}
}

func TestDelete(t *testing.T) {
	rdb := getRedisClient(t)
	defer rdb.Close()

	ctx := context.Background()
	c := newTestClient(t, rdb)

	key := fmt.Sprintf("test:cache:del:%d", time.Now().UnixNano())
	if err := c.Set(ctx, key, &shopRecord{Name: "gone"}, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := rdb.Get(ctx, key).Err(); err != redis.Nil {
		t.Errorf("expected key gone, got %v", err)
	}
}
