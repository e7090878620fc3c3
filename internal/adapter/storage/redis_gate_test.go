package storage

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nmanh/voucherhub/internal/port"
)

func newTestGate(t *testing.T) (*RedisGate, string, int64, func()) {
	client := getRedisClient(t)

	stream := uniqueName("test-stream")
	voucherID := time.Now().UnixNano()

	gate := NewRedisGate(client, stream)
	cleanup := func() {
		ctx := context.Background()
		client.Del(ctx,
			seckillStockPrefix+strconv.FormatInt(voucherID, 10),
			seckillOrderPrefix+strconv.FormatInt(voucherID, 10),
			stream,
		)
		client.Close()
	}
	return gate, stream, voucherID, cleanup
}

func TestCheckAndReserve_BoundedAdmission(t *testing.T) {
	gate, stream, voucherID, cleanup := newTestGate(t)
	defer cleanup()

	ctx := context.Background()
	stock := 20
	users := 50

	if err := gate.SeedStock(ctx, voucherID, stock); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var okCount, outCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			result, err := gate.CheckAndReserve(ctx, voucherID, userID, userID*1000)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			switch result {
			case port.GateOK:
				okCount.Add(1)
			case port.GateOutOfStock:
				outCount.Add(1)
			default:
				t.Errorf("unexpected result %v for distinct user", result)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if okCount.Load() != int32(stock) {
		t.Errorf("expected %d admissions, got %d", stock, okCount.Load())
	}
	if outCount.Load() != int32(users-stock) {
		t.Errorf("expected %d rejections, got %d", users-stock, outCount.Load())
	}

	rdb := getRedisClient(t)
	defer rdb.Close()
	remaining, _ := rdb.Get(ctx, seckillStockPrefix+strconv.FormatInt(voucherID, 10)).Int()
	if remaining != 0 {
		t.Errorf("expected counter 0, got %d", remaining)
	}
	queued, _ := rdb.XLen(ctx, stream).Result()
	if queued != int64(stock) {
		t.Errorf("expected %d queued requests, got %d", stock, queued)
	}
}

func TestCheckAndReserve_OneAdmissionPerUser(t *testing.T) {
	gate, _, voucherID, cleanup := newTestGate(t)
	defer cleanup()

	ctx := context.Background()
	if err := gate.SeedStock(ctx, voucherID, 5); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var okCount, dupCount atomic.Int32
	var wg sync.WaitGroup
	requests := 10
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			result, err := gate.CheckAndReserve(ctx, voucherID, 42, orderID)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			switch result {
			case port.GateOK:
				okCount.Add(1)
			case port.GateDuplicate:
				dupCount.Add(1)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if okCount.Load() != 1 {
		t.Errorf("expected exactly 1 admission for the same user, got %d", okCount.Load())
	}
	if dupCount.Load() != int32(requests-1) {
		t.Errorf("expected %d duplicates, got %d", requests-1, dupCount.Load())
	}
}

func TestCheckAndReserve_MissingCounterIsOutOfStock(t *testing.T) {
	gate, _, voucherID, cleanup := newTestGate(t)
	defer cleanup()

	result, err := gate.CheckAndReserve(context.Background(), voucherID, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != port.GateOutOfStock {
		t.Errorf("expected out of stock for unseeded counter, got %v", result)
	}
}

func TestCheckAndReserve_DuplicateBeatsSoldOut(t *testing.T) {
	gate, _, voucherID, cleanup := newTestGate(t)
	defer cleanup()

	ctx := context.Background()
	if err := gate.SeedStock(ctx, voucherID, 1); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if result, err := gate.CheckAndReserve(ctx, voucherID, 7, 1); err != nil || result != port.GateOK {
		t.Fatalf("setup admission failed: result=%v err=%v", result, err)
	}

	// Stock is now exhausted, but the repeat buyer must still see duplicate.
	result, err := gate.CheckAndReserve(ctx, voucherID, 7, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != port.GateDuplicate {
		t.Errorf("expected duplicate, got %v", result)
	}
}
