package port

import (
	"context"

	"github.com/nmanh/voucherhub/internal/core/domain"
)

type ShopRepository interface {
	// GetShopByID returns nil without error when the shop does not exist.
	GetShopByID(ctx context.Context, id int64) (*domain.Shop, error)

	UpdateShop(ctx context.Context, shop *domain.Shop) error
}

type VoucherRepository interface {
	// GetVoucherByID returns nil without error when the voucher does not exist.
	GetVoucherByID(ctx context.Context, id int64) (*domain.Voucher, error)

	// ListActiveVouchers returns vouchers whose sale window is open, used to
	// seed the admission gate's stock counters at startup.
	ListActiveVouchers(ctx context.Context) ([]domain.Voucher, error)
}

type OrderRepository interface {
	// CountOrders reports existing orders for a (user, voucher) pair.
	CountOrders(ctx context.Context, userID, voucherID int64) (int64, error)

	// DecrementStock conditionally decrements the relational stock ledger
	// (stock > 0) and reports whether a row was updated.
	DecrementStock(ctx context.Context, voucherID int64) (bool, error)

	CreateOrder(ctx context.Context, order domain.Order) error
}
