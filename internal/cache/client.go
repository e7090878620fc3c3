// Package cache is a generic read-through cache over Redis with two read
// policies: pass-through with null caching (penetration guard) and logical
// expiry with stale-while-revalidate (stampede guard).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nmanh/voucherhub/internal/telemetry"
)

// rebuildLockPrefix is deliberately outside the cache:* namespace so lock
// records can never collide with cache entries.
const rebuildLockPrefix = "lock:cache:"

type Client struct {
	rdb      *redis.Client
	logger   zerolog.Logger
	nullTTL  time.Duration
	mutexTTL time.Duration
	rebuilds chan func()
}

// envelope wraps a value stored under the logical-expiry policy. The Redis
// TTL of such entries is infinite; ExpireAt alone decides freshness.
type envelope struct {
	ExpireAt time.Time       `json:"expireAt"`
	Data     json.RawMessage `json:"data"`
}

// NewClient starts workers background goroutines that execute cache rebuilds.
// Call Close to stop them.
func NewClient(rdb *redis.Client, logger zerolog.Logger, workers int, nullTTL, mutexTTL time.Duration) *Client {
	if workers <= 0 {
		workers = 10
	}
	c := &Client{
		rdb:      rdb,
		logger:   logger.With().Str("component", "cache").Logger(),
		nullTTL:  nullTTL,
		mutexTTL: mutexTTL,
		rebuilds: make(chan func(), 64),
	}
	for i := 0; i < workers; i++ {
		go c.rebuildLoop()
	}
	return c
}

func (c *Client) rebuildLoop() {
	for task := range c.rebuilds {
		task()
	}
}

func (c *Client) Close() {
	close(c.rebuilds)
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// SetWithLogicalExpire stores value wrapped with an application-level expiry
// and no Redis TTL.
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	payload, err := json.Marshal(envelope{ExpireAt: time.Now().Add(ttl), Data: data})
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// GetWithPassThrough reads key prefix+id, falling back to the backing store on
// a miss. A nil fallback result is cached as an empty sentinel with a short
// TTL so repeated lookups of absent ids never reach the backing store.
func GetWithPassThrough[T any](ctx context.Context, c *Client, prefix string, id int64, fallback func(context.Context, int64) (*T, error), ttl time.Duration) (*T, error) {
	key := prefix + strconv.FormatInt(id, 10)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if raw == "" {
			telemetry.CacheSentinelHits.Inc()
			return nil, nil
		}
		var value T
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
		}
		telemetry.CacheHits.WithLabelValues("pass_through").Inc()
		return &value, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	telemetry.CacheMisses.WithLabelValues("pass_through").Inc()
	value, err := fallback(ctx, id)
	if err != nil {
		return nil, err
	}
	if value == nil {
		if err := c.rdb.Set(ctx, key, "", c.nullTTL).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to cache null sentinel")
		}
		return nil, nil
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to populate cache")
	}
	return value, nil
}

// GetWithLogicalExpire reads key prefix+id under the stale-while-revalidate
// policy. An absent entry is a known gap and returns nil immediately; an
// expired entry is returned stale while at most one rebuild per key runs on
// the background pool. Callers never block on a rebuild.
func GetWithLogicalExpire[T any](ctx context.Context, c *Client, prefix string, id int64, fallback func(context.Context, int64) (*T, error), ttl time.Duration) (*T, error) {
	key := prefix + strconv.FormatInt(id, 10)

	raw, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheMisses.WithLabelValues("logical_expire").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	env, value, err := decodeEnvelope[T](raw)
	if err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if time.Now().Before(env.ExpireAt) {
		telemetry.CacheHits.WithLabelValues("logical_expire").Inc()
		return value, nil
	}

	telemetry.CacheStaleReads.Inc()

	lockKey := rebuildLockPrefix + key
	ok, err := c.rdb.SetNX(ctx, lockKey, "1", c.mutexTTL).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("rebuild lock acquisition failed")
		return value, nil
	}
	if !ok {
		// Another reader is already rebuilding this key.
		return value, nil
	}

	// The winner re-checks freshness: a racing rebuild may have completed
	// between our read and the lock acquisition.
	if raw2, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if env2, value2, err := decodeEnvelope[T](raw2); err == nil && time.Now().Before(env2.ExpireAt) {
			c.releaseRebuildLock(lockKey)
			return value2, nil
		}
	}

	task := func() {
		// The rebuild outlives the request, so it must not inherit the
		// caller's cancellation.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer c.releaseRebuildLock(lockKey)

		fresh, err := fallback(rctx, id)
		if err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("cache rebuild fallback failed")
			return
		}
		if fresh == nil {
			c.logger.Warn().Str("key", key).Msg("cache rebuild found no backing row")
			return
		}
		if err := c.SetWithLogicalExpire(rctx, key, fresh, ttl); err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("cache rebuild write failed")
			return
		}
		telemetry.CacheRebuilds.Inc()
	}

	select {
	case c.rebuilds <- task:
	default:
		// Pool saturated; give the lock back so the next reader can retry.
		c.releaseRebuildLock(lockKey)
	}
	return value, nil
}

func (c *Client) releaseRebuildLock(lockKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.rdb.Del(ctx, lockKey).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", lockKey).Msg("failed to release rebuild lock")
	}
}

func decodeEnvelope[T any](raw string) (*envelope, *T, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, nil, err
	}
	var value T
	if err := json.Unmarshal(env.Data, &value); err != nil {
		return nil, nil, err
	}
	return &env, &value, nil
}
