package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/nmanh/voucherhub/internal/port"
	"github.com/nmanh/voucherhub/internal/telemetry"
)

const (
	seckillStockPrefix = "seckill:stock:"
	seckillOrderPrefix = "seckill:order:"
)

// admissionScript runs the whole check-then-act sequence in one atomic step:
// duplicate check, stock check, stock decrement, duplicate marker, and the
// XADD that hands the request to the worker. Duplicate is checked before
// stock so a repeat buyer sees "already ordered" even after sell-out.
// Returns 0=ok, 1=out of stock, 2=duplicate.
var admissionScript = redis.NewScript(`
local stockKey = KEYS[1]
local orderKey = KEYS[2]
local streamKey = KEYS[3]
local voucherId = ARGV[1]
local userId = ARGV[2]
local orderId = ARGV[3]

if redis.call('SISMEMBER', orderKey, userId) == 1 then
	return 2
end

local stock = tonumber(redis.call('GET', stockKey))
if stock == nil or stock <= 0 then
	return 1
end

redis.call('INCRBY', stockKey, -1)
redis.call('SADD', orderKey, userId)
redis.call('XADD', streamKey, '*', 'id', orderId, 'userId', userId, 'voucherId', voucherId)
return 0
`)

type RedisGate struct {
	rdb    *redis.Client
	stream string
}

func NewRedisGate(rdb *redis.Client, stream string) *RedisGate {
	return &RedisGate{rdb: rdb, stream: stream}
}

func (g *RedisGate) CheckAndReserve(ctx context.Context, voucherID, userID, orderID int64) (port.GateResult, error) {
	keys := []string{
		seckillStockPrefix + strconv.FormatInt(voucherID, 10),
		seckillOrderPrefix + strconv.FormatInt(voucherID, 10),
		g.stream,
	}
	code, err := admissionScript.Run(ctx, g.rdb, keys, voucherID, userID, orderID).Int()
	if err != nil {
		return 0, fmt.Errorf("admission script: %w", err)
	}

	result := port.GateResult(code)
	telemetry.GateDecisions.WithLabelValues(result.String()).Inc()
	return result, nil
}

// SeedStock initializes the admission counter for a voucher. SetNX, so a
// restart never clobbers a counter mid-sale.
func (g *RedisGate) SeedStock(ctx context.Context, voucherID int64, stock int) error {
	key := seckillStockPrefix + strconv.FormatInt(voucherID, 10)
	if err := g.rdb.SetNX(ctx, key, stock, 0).Err(); err != nil {
		return fmt.Errorf("seed stock %s: %w", key, err)
	}
	return nil
}
