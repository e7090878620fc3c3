package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nmanh/voucherhub/internal/port"
)

type stubGate struct {
	result port.GateResult
	err    error
	calls  int
}

func (g *stubGate) CheckAndReserve(ctx context.Context, voucherID, userID, orderID int64) (port.GateResult, error) {
	g.calls++
	return g.result, g.err
}

type stubIDs struct {
	next int64
	err  error
}

func (s *stubIDs) NextID(ctx context.Context, businessKey string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func TestSeckillVoucher_Admitted(t *testing.T) {
	gate := &stubGate{result: port.GateOK}
	svc := NewOrderService(gate, &stubIDs{}, zerolog.Nop())

	orderID, err := svc.SeckillVoucher(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if orderID == 0 {
		t.Error("expected a non-zero order id")
	}
	if gate.calls != 1 {
		t.Errorf("expected 1 gate call, got %d", gate.calls)
	}
}

func TestSeckillVoucher_SoldOut(t *testing.T) {
	svc := NewOrderService(&stubGate{result: port.GateOutOfStock}, &stubIDs{}, zerolog.Nop())

	_, err := svc.SeckillVoucher(context.Background(), 1, 10)
	if !errors.Is(err, ErrSoldOut) {
		t.Errorf("expected ErrSoldOut, got %v", err)
	}
}

func TestSeckillVoucher_Duplicate(t *testing.T) {
	svc := NewOrderService(&stubGate{result: port.GateDuplicate}, &stubIDs{}, zerolog.Nop())

	_, err := svc.SeckillVoucher(context.Background(), 1, 10)
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("expected ErrDuplicateOrder, got %v", err)
	}
}

func TestSeckillVoucher_GateError(t *testing.T) {
	gateErr := errors.New("redis down")
	svc := NewOrderService(&stubGate{err: gateErr}, &stubIDs{}, zerolog.Nop())

	_, err := svc.SeckillVoucher(context.Background(), 1, 10)
	if !errors.Is(err, gateErr) {
		t.Errorf("expected wrapped gate error, got %v", err)
	}
}

func TestSeckillVoucher_IDError(t *testing.T) {
	idErr := errors.New("counter unavailable")
	gate := &stubGate{result: port.GateOK}
	svc := NewOrderService(gate, &stubIDs{err: idErr}, zerolog.Nop())

	_, err := svc.SeckillVoucher(context.Background(), 1, 10)
	if !errors.Is(err, idErr) {
		t.Errorf("expected wrapped id error, got %v", err)
	}
	if gate.calls != 0 {
		t.Error("gate must not run without an order id")
	}
}
