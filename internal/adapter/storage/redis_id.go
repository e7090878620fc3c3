package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idEpoch is 2023-01-01T00:00:00Z. Ids are ordered by seconds since this
	// epoch in the high bits.
	idEpoch = int64(1672531200)

	sequenceBits = 32

	idCounterPrefix = "icr:"
)

// RedisIDGenerator composes ids from a coarse timestamp and a date-scoped
// atomic sequence. The daily counter key resets the sequence without an
// explicit step while the timestamp prefix keeps ids increasing across days
// and restarts.
type RedisIDGenerator struct {
	rdb *redis.Client
}

func NewRedisIDGenerator(rdb *redis.Client) *RedisIDGenerator {
	return &RedisIDGenerator{rdb: rdb}
}

func (g *RedisIDGenerator) NextID(ctx context.Context, businessKey string) (int64, error) {
	now := time.Now().UTC()
	timestamp := now.Unix() - idEpoch

	counterKey := idCounterPrefix + businessKey + ":" + now.Format("2006:01:02")
	seq, err := g.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("increment id counter %s: %w", counterKey, err)
	}

	return timestamp<<sequenceBits | seq, nil
}
