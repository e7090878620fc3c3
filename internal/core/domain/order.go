package domain

import "time"

type OrderStatus int

const (
	OrderStatusUnpaid OrderStatus = iota + 1
	OrderStatusPaid
	OrderStatusCancelled
)

type Order struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	VoucherID int64       `json:"voucher_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderRequest is the queue message appended by the admission gate and
// consumed exactly once by the order worker.
type OrderRequest struct {
	OrderID   int64
	UserID    int64
	VoucherID int64
}
