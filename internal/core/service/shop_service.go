package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmanh/voucherhub/internal/cache"
	"github.com/nmanh/voucherhub/internal/core/domain"
	"github.com/nmanh/voucherhub/internal/port"
)

const (
	cacheShopPrefix    = "cache:shop:"
	cacheVoucherPrefix = "cache:voucher:"
)

var ErrMissingID = errors.New("missing id")

// ShopService serves the cached read paths. Shop detail uses pass-through
// with null caching; voucher detail, the hot page during a sale, uses logical
// expiry so a stampede on an expired entry triggers a single rebuild.
type ShopService struct {
	cache      *cache.Client
	shops      port.ShopRepository
	vouchers   port.VoucherRepository
	shopTTL    time.Duration
	voucherTTL time.Duration
	logger     zerolog.Logger
}

func NewShopService(c *cache.Client, shops port.ShopRepository, vouchers port.VoucherRepository, shopTTL, voucherTTL time.Duration, logger zerolog.Logger) *ShopService {
	return &ShopService{
		cache:      c,
		shops:      shops,
		vouchers:   vouchers,
		shopTTL:    shopTTL,
		voucherTTL: voucherTTL,
		logger:     logger.With().Str("component", "shop-service").Logger(),
	}
}

// GetShopByID returns nil without error when the shop does not exist.
func (s *ShopService) GetShopByID(ctx context.Context, id int64) (*domain.Shop, error) {
	return cache.GetWithPassThrough(ctx, s.cache, cacheShopPrefix, id, s.shops.GetShopByID, s.shopTTL)
}

// UpdateShop writes the database first, then invalidates the cache entry so
// the next read repopulates from the fresh row.
func (s *ShopService) UpdateShop(ctx context.Context, shop *domain.Shop) error {
	if shop.ID == 0 {
		return ErrMissingID
	}
	if err := s.shops.UpdateShop(ctx, shop); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheShopPrefix+strconv.FormatInt(shop.ID, 10)); err != nil {
		return fmt.Errorf("invalidate shop cache: %w", err)
	}
	return nil
}

// GetVoucherByID returns nil without error when the voucher is not cached.
// Cold entries are seeded by WarmVoucherCache; an uncached voucher is a known
// gap under the logical-expiry policy.
func (s *ShopService) GetVoucherByID(ctx context.Context, id int64) (*domain.Voucher, error) {
	return cache.GetWithLogicalExpire(ctx, s.cache, cacheVoucherPrefix, id, s.vouchers.GetVoucherByID, s.voucherTTL)
}

// WarmVoucherCache seeds a logical-expiry entry for a voucher ahead of its
// sale window.
func (s *ShopService) WarmVoucherCache(ctx context.Context, id int64) error {
	voucher, err := s.vouchers.GetVoucherByID(ctx, id)
	if err != nil {
		return err
	}
	if voucher == nil {
		return fmt.Errorf("voucher %d: %w", id, ErrMissingID)
	}
	key := cacheVoucherPrefix + strconv.FormatInt(id, 10)
	if err := s.cache.SetWithLogicalExpire(ctx, key, voucher, s.voucherTTL); err != nil {
		return err
	}
	s.logger.Info().Int64("voucher", id).Msg("voucher cache warmed")
	return nil
}
