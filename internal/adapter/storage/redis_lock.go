package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nmanh/voucherhub/internal/port"
	"github.com/nmanh/voucherhub/internal/telemetry"
)

const lockKeyPrefix = "lock:"

// unlockScript deletes the lock only while our token is still stored, so a
// holder that overran its TTL cannot release a lock re-acquired by someone
// else.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisLock struct {
	rdb   *redis.Client
	key   string
	token string
}

// NewRedisLock creates a lock handle for the named resource. Each handle
// carries its own fencing token.
func NewRedisLock(rdb *redis.Client, name string) *RedisLock {
	return &RedisLock{
		rdb:   rdb,
		key:   lockKeyPrefix + name,
		token: uuid.NewString(),
	}
}

func (l *RedisLock) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		telemetry.LockContention.Inc()
	}
	return ok, nil
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	if err := unlockScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

type RedisLockManager struct {
	rdb *redis.Client
}

func NewRedisLockManager(rdb *redis.Client) *RedisLockManager {
	return &RedisLockManager{rdb: rdb}
}

func (m *RedisLockManager) NewLock(name string) port.Lock {
	return NewRedisLock(m.rdb, name)
}
