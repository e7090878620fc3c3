package domain

import "time"

// Voucher is a flash-sale voucher. Stock is the relational ledger; the
// Redis-side counter seeded from it is only an admission filter.
type Voucher struct {
	ID          int64     `json:"id"`
	ShopID      int64     `json:"shop_id"`
	Title       string    `json:"title"`
	PayValue    int64     `json:"pay_value"`
	ActualValue int64     `json:"actual_value"`
	Stock       int       `json:"stock"`
	BeginTime   time.Time `json:"begin_time"`
	EndTime     time.Time `json:"end_time"`
}
