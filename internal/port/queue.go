package port

import (
	"context"

	"github.com/nmanh/voucherhub/internal/core/domain"
)

// OrderQueue is the durable stream the gate appends to and the worker drains.
// A nil request with no error means no message was available.
type OrderQueue interface {
	// EnsureGroup creates the consumer group if it does not exist yet.
	EnsureGroup(ctx context.Context) error

	// ReadNew blocks up to the configured timeout for the next undelivered
	// message. The returned id is needed to Ack.
	ReadNew(ctx context.Context) (*domain.OrderRequest, string, error)

	// ReadPending returns the oldest delivered-but-unacknowledged message of
	// this consumer, for crash recovery.
	ReadPending(ctx context.Context) (*domain.OrderRequest, string, error)

	Ack(ctx context.Context, msgID string) error
}
