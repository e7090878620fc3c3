package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nmanh/voucherhub/internal/port"
)

var (
	ErrSoldOut        = errors.New("sold out")
	ErrDuplicateOrder = errors.New("duplicate order")
)

// OrderService is the synchronous half of the seckill path: allocate an order
// id, run the atomic admission gate, and return immediately. Order
// materialization happens asynchronously in the worker.
type OrderService struct {
	gate   port.EligibilityGate
	ids    port.IDGenerator
	logger zerolog.Logger
}

func NewOrderService(gate port.EligibilityGate, ids port.IDGenerator, logger zerolog.Logger) *OrderService {
	return &OrderService{
		gate:   gate,
		ids:    ids,
		logger: logger.With().Str("component", "order-service").Logger(),
	}
}

// SeckillVoucher returns the order id on admission. The id is definitive from
// the caller's perspective even though the order row is written later.
func (s *OrderService) SeckillVoucher(ctx context.Context, userID, voucherID int64) (int64, error) {
	orderID, err := s.ids.NextID(ctx, "order")
	if err != nil {
		return 0, fmt.Errorf("allocate order id: %w", err)
	}

	result, err := s.gate.CheckAndReserve(ctx, voucherID, userID, orderID)
	if err != nil {
		return 0, fmt.Errorf("admission check: %w", err)
	}

	switch result {
	case port.GateOutOfStock:
		return 0, ErrSoldOut
	case port.GateDuplicate:
		return 0, ErrDuplicateOrder
	}

	s.logger.Debug().Int64("order", orderID).Int64("user", userID).
		Int64("voucher", voucherID).Msg("order admitted")
	return orderID, nil
}
