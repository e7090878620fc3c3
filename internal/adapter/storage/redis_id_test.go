package storage

import (
	"context"
	"sync"
	"testing"
)

func TestNextID_Monotonic(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	gen := NewRedisIDGenerator(client)
	key := uniqueName("test-id")

	var prev int64
	for i := 0; i < 10; i++ {
		id, err := gen.NextID(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestNextID_ConcurrentUnique(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	gen := NewRedisIDGenerator(client)
	key := uniqueName("test-id-race")

	callers := 300
	perCaller := 100

	results := make([][]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := make([]int64, 0, perCaller)
			for j := 0; j < perCaller; j++ {
				id, err := gen.NextID(ctx, key)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				ids = append(ids, id)
			}
			results[n] = ids
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, callers*perCaller)
	for _, ids := range results {
		var prev int64
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %d", id)
			}
			seen[id] = true
			if id <= prev {
				t.Fatalf("id %d not increasing within caller (prev %d)", id, prev)
			}
			prev = id
		}
	}
	if len(seen) != callers*perCaller {
		t.Errorf("expected %d distinct ids, got %d", callers*perCaller, len(seen))
	}
}
