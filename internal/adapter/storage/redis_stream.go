package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nmanh/voucherhub/internal/core/domain"
)

// RedisOrderQueue drains the durable stream the admission script appends to.
// One consumer identity per worker process.
type RedisOrderQueue struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

func NewRedisOrderQueue(rdb *redis.Client, stream, group, consumer string, block time.Duration) *RedisOrderQueue {
	return &RedisOrderQueue{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
	}
}

func (q *RedisOrderQueue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", q.group, q.stream, err)
	}
	return nil
}

// ReadNew blocks up to the configured timeout for one undelivered message.
func (q *RedisOrderQueue) ReadNew(ctx context.Context) (*domain.OrderRequest, string, error) {
	return q.readOne(ctx, ">", q.block)
}

// ReadPending reads the oldest delivered-but-unacknowledged message of this
// consumer without blocking.
func (q *RedisOrderQueue) ReadPending(ctx context.Context) (*domain.OrderRequest, string, error) {
	return q.readOne(ctx, "0", -1)
}

func (q *RedisOrderQueue) readOne(ctx context.Context, offset string, block time.Duration) (*domain.OrderRequest, string, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, offset},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read stream %s: %w", q.stream, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	req, err := decodeOrderRequest(msg.Values)
	if err != nil {
		return nil, msg.ID, fmt.Errorf("decode order message %s: %w", msg.ID, err)
	}
	return req, msg.ID, nil
}

func (q *RedisOrderQueue) Ack(ctx context.Context, msgID string) error {
	if err := q.rdb.XAck(ctx, q.stream, q.group, msgID).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", msgID, err)
	}
	return nil
}

func decodeOrderRequest(values map[string]interface{}) (*domain.OrderRequest, error) {
	orderID, err := fieldInt64(values, "id")
	if err != nil {
		return nil, err
	}
	userID, err := fieldInt64(values, "userId")
	if err != nil {
		return nil, err
	}
	voucherID, err := fieldInt64(values, "voucherId")
	if err != nil {
		return nil, err
	}
	return &domain.OrderRequest{OrderID: orderID, UserID: userID, VoucherID: voucherID}, nil
}

func fieldInt64(values map[string]interface{}, field string) (int64, error) {
	raw, ok := values[field]
	if !ok {
		return 0, fmt.Errorf("missing field %q", field)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("field %q is not a string", field)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return n, nil
}
