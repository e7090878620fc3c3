package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nmanh/voucherhub/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetShopByID(ctx context.Context, id int64) (*domain.Shop, error) {
	var shop domain.Shop
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, area, address, avg_price, sold, score, created_at, updated_at
		FROM shops WHERE id = ?`, id,
	).Scan(&shop.ID, &shop.Name, &shop.Area, &shop.Address, &shop.AvgPrice,
		&shop.Sold, &shop.Score, &shop.CreatedAt, &shop.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query shop: %w", err)
	}
	return &shop, nil
}

func (m *MySQLAdapter) UpdateShop(ctx context.Context, shop *domain.Shop) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE shops
		SET name = ?, area = ?, address = ?, avg_price = ?, updated_at = NOW()
		WHERE id = ?`,
		shop.Name, shop.Area, shop.Address, shop.AvgPrice, shop.ID,
	)
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetVoucherByID(ctx context.Context, id int64) (*domain.Voucher, error) {
	var v domain.Voucher
	err := m.db.QueryRowContext(ctx, `
		SELECT id, shop_id, title, pay_value, actual_value, stock, begin_time, end_time
		FROM vouchers WHERE id = ?`, id,
	).Scan(&v.ID, &v.ShopID, &v.Title, &v.PayValue, &v.ActualValue,
		&v.Stock, &v.BeginTime, &v.EndTime)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query voucher: %w", err)
	}
	return &v, nil
}

func (m *MySQLAdapter) ListActiveVouchers(ctx context.Context) ([]domain.Voucher, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, shop_id, title, pay_value, actual_value, stock, begin_time, end_time
		FROM vouchers WHERE end_time > NOW()`)
	if err != nil {
		return nil, fmt.Errorf("query active vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []domain.Voucher
	for rows.Next() {
		var v domain.Voucher
		if err := rows.Scan(&v.ID, &v.ShopID, &v.Title, &v.PayValue, &v.ActualValue,
			&v.Stock, &v.BeginTime, &v.EndTime); err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vouchers: %w", err)
	}
	return vouchers, nil
}

func (m *MySQLAdapter) CountOrders(ctx context.Context, userID, voucherID int64) (int64, error) {
	var count int64
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id = ? AND voucher_id = ?`,
		userID, voucherID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

// DecrementStock is the conditional ledger update; stock never goes negative
// regardless of what the admission filter believed.
func (m *MySQLAdapter) DecrementStock(ctx context.Context, voucherID int64) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE vouchers SET stock = stock - 1 WHERE id = ? AND stock > 0`,
		voucherID,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock rows: %w", err)
	}
	return rows > 0, nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, voucher_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.VoucherID, order.Status, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}
