package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

type AssetRepo struct {
	db *gorm.DB
}

func (r *AssetRepo) Create(ctx context.Context, a *model.Asset) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssetRepo) ByID(ctx context.Context, id uint) (*model.Asset, error) {
	var a model.Asset
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ByQuery resolves an asset by name, type and blockchain. Bridge adapters
// use it to find the origin-chain twin of a bridged asset.
func (r *AssetRepo) ByQuery(ctx context.Context, name string, typ enum.AssetType, chain enum.Blockchain) (*model.Asset, error) {
	var a model.Asset
	err := r.db.WithContext(ctx).
		Where("name = ? AND type = ? AND blockchain = ?", name, typ, chain).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Coin resolves the native coin of a blockchain.
func (r *AssetRepo) Coin(ctx context.Context, chain enum.Blockchain) (*model.Asset, error) {
	var a model.Asset
	err := r.db.WithContext(ctx).
		Where("type = ? AND blockchain = ?", enum.AssetTypeCoin, chain).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns all managed assets.
func (r *AssetRepo) List(ctx context.Context) ([]model.Asset, error) {
	var as []model.Asset
	err := r.db.WithContext(ctx).Order("id ASC").Find(&as).Error
	return as, err
}

type FiatRepo struct {
	db *gorm.DB
}

func (r *FiatRepo) ByID(ctx context.Context, id uint) (*model.Fiat, error) {
	var f model.Fiat
	err := r.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FiatRepo) List(ctx context.Context) ([]model.Fiat, error) {
	var fs []model.Fiat
	err := r.db.WithContext(ctx).Order("id ASC").Find(&fs).Error
	return fs, err
}
