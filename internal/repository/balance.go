package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"treasury/internal/model"
)

type BalanceRepo struct {
	db *gorm.DB
}

// SetAsset upserts the cached balance snapshot for an asset.
func (r *BalanceRepo) SetAsset(ctx context.Context, assetID uint, amount decimal.Decimal, at time.Time) error {
	db := r.db.WithContext(ctx)

	res := db.Model(&model.Balance{}).
		Where("asset_id = ?", assetID).
		Updates(map[string]any{"amount": amount, "refreshed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	return db.Create(&model.Balance{AssetID: &assetID, Amount: amount, RefreshedAt: at}).Error
}

// SetFiat upserts the cached balance snapshot for a fiat instrument.
func (r *BalanceRepo) SetFiat(ctx context.Context, fiatID uint, amount decimal.Decimal, at time.Time) error {
	db := r.db.WithContext(ctx)

	res := db.Model(&model.Balance{}).
		Where("fiat_id = ?", fiatID).
		Updates(map[string]any{"amount": amount, "refreshed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	return db.Create(&model.Balance{FiatID: &fiatID, Amount: amount, RefreshedAt: at}).Error
}

// InvalidateAsset removes the snapshot so readers see "unknown" instead of a
// stale or zero amount.
func (r *BalanceRepo) InvalidateAsset(ctx context.Context, assetID uint) error {
	return r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Delete(&model.Balance{}).Error
}

// ForAsset returns the snapshot for an asset, or nil when unknown.
func (r *BalanceRepo) ForAsset(ctx context.Context, assetID uint) (*model.Balance, error) {
	var b model.Balance
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&b).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ForFiat returns the snapshot for a fiat, or nil when unknown.
func (r *BalanceRepo) ForFiat(ctx context.Context, fiatID uint) (*model.Balance, error) {
	var b model.Balance
	err := r.db.WithContext(ctx).Where("fiat_id = ?", fiatID).First(&b).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns all current snapshots.
func (r *BalanceRepo) List(ctx context.Context) ([]model.Balance, error) {
	var bs []model.Balance
	err := r.db.WithContext(ctx).Order("id ASC").Find(&bs).Error
	return bs, err
}
