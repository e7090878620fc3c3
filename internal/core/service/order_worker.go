package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmanh/voucherhub/internal/core/domain"
	"github.com/nmanh/voucherhub/internal/port"
	"github.com/nmanh/voucherhub/internal/telemetry"
)

const recoveryRetryDelay = 20 * time.Millisecond

// OrderWorker is the single consumer that turns admitted requests into
// persisted orders. It serializes order creation per user behind the
// distributed lock and replays its pending list after any failure, so a
// message is acted on exactly once per (user, voucher) pair even when it is
// redelivered.
type OrderWorker struct {
	queue   port.OrderQueue
	locks   port.LockManager
	orders  port.OrderRepository
	lockTTL time.Duration
	logger  zerolog.Logger
}

func NewOrderWorker(queue port.OrderQueue, locks port.LockManager, orders port.OrderRepository, lockTTL time.Duration, logger zerolog.Logger) *OrderWorker {
	return &OrderWorker{
		queue:   queue,
		locks:   locks,
		orders:  orders,
		lockTTL: lockTTL,
		logger:  logger.With().Str("component", "order-worker").Logger(),
	}
}

// Run loops until ctx is cancelled. Per-message errors never terminate the
// worker; they divert it through pending-list recovery.
func (w *OrderWorker) Run(ctx context.Context) {
	w.logger.Info().Msg("order worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info().Msg("order worker stopped")
			return
		}

		req, msgID, err := w.queue.ReadNew(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("read order stream failed")
			w.recoverPending(ctx)
			continue
		}
		if req == nil {
			continue
		}

		if err := w.process(ctx, req); err != nil {
			w.logger.Error().Err(err).Int64("order", req.OrderID).Msg("order processing failed")
			w.recoverPending(ctx)
			continue
		}
		if err := w.queue.Ack(ctx, msgID); err != nil {
			w.logger.Error().Err(err).Str("msg", msgID).Msg("ack failed")
			w.recoverPending(ctx)
			continue
		}
		telemetry.WorkerProcessed.Inc()
	}
}

// recoverPending replays this consumer's unacknowledged messages oldest-first
// until the list is empty. Processing is idempotent, so redelivering an
// already-committed order is a safe no-op.
func (w *OrderWorker) recoverPending(ctx context.Context) {
	w.logger.Warn().Msg("replaying pending list")
	for {
		if ctx.Err() != nil {
			return
		}

		req, msgID, err := w.queue.ReadPending(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("read pending list failed")
			time.Sleep(recoveryRetryDelay)
			continue
		}
		if req == nil {
			w.logger.Info().Msg("pending list drained")
			return
		}

		if err := w.process(ctx, req); err != nil {
			w.logger.Error().Err(err).Int64("order", req.OrderID).Msg("pending order processing failed")
			time.Sleep(recoveryRetryDelay)
			continue
		}
		if err := w.queue.Ack(ctx, msgID); err != nil {
			w.logger.Error().Err(err).Str("msg", msgID).Msg("pending ack failed")
			time.Sleep(recoveryRetryDelay)
			continue
		}
		telemetry.WorkerRecovered.Inc()
	}
}

// process returns an error only for transient store failures; business
// outcomes (duplicate, contention, exhausted ledger) resolve to a logged
// no-op so the message gets acknowledged.
func (w *OrderWorker) process(ctx context.Context, req *domain.OrderRequest) error {
	lock := w.locks.NewLock(fmt.Sprintf("order:%d", req.UserID))
	ok, err := lock.TryLock(ctx, w.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}
	if !ok {
		// Dropping is safe: the gate's duplicate set and the double-check
		// below both guard the (user, voucher) invariant.
		w.logger.Warn().Int64("user", req.UserID).Int64("order", req.OrderID).
			Msg("user lock held, dropping delivery")
		telemetry.WorkerDropped.Inc()
		return nil
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			w.logger.Error().Err(err).Int64("user", req.UserID).Msg("unlock failed")
		}
	}()

	return w.createOrder(ctx, req)
}

func (w *OrderWorker) createOrder(ctx context.Context, req *domain.OrderRequest) error {
	count, err := w.orders.CountOrders(ctx, req.UserID, req.VoucherID)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if count > 0 {
		w.logger.Warn().Int64("user", req.UserID).Int64("voucher", req.VoucherID).
			Msg("order already exists, skipping redelivery")
		return nil
	}

	ok, err := w.orders.DecrementStock(ctx, req.VoucherID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if !ok {
		// The gate admitted this request but the ledger disagrees. Not
		// retryable; surface it and move on.
		w.logger.Error().Int64("voucher", req.VoucherID).Int64("order", req.OrderID).
			Msg("admitted request found no relational stock")
		telemetry.WorkerInvariantViolations.Inc()
		return nil
	}

	order := domain.Order{
		ID:        req.OrderID,
		UserID:    req.UserID,
		VoucherID: req.VoucherID,
		Status:    domain.OrderStatusUnpaid,
		CreatedAt: time.Now(),
	}
	if err := w.orders.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}
