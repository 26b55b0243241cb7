package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

type RuleRepo struct {
	db *gorm.DB
}

func (r *RuleRepo) Create(ctx context.Context, rule *model.Rule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *RuleRepo) Save(ctx context.Context, rule *model.Rule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *RuleRepo) ByID(ctx context.Context, id uint) (*model.Rule, error) {
	var rule model.Rule
	err := r.db.WithContext(ctx).
		Preload("TargetAsset").Preload("TargetFiat").
		First(&rule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ByStatus lists rules in the given status with targets preloaded.
func (r *RuleRepo) ByStatus(ctx context.Context, status enum.RuleStatus) ([]model.Rule, error) {
	var rules []model.Rule
	err := r.db.WithContext(ctx).
		Preload("TargetAsset").Preload("TargetFiat").
		Where("status = ?", status).
		Find(&rules).Error
	return rules, err
}

// PausedWithCooldown lists paused rules that have a reactivation time set.
func (r *RuleRepo) PausedWithCooldown(ctx context.Context) ([]model.Rule, error) {
	var rules []model.Rule
	err := r.db.WithContext(ctx).
		Where("status = ? AND reactivation_time IS NOT NULL", enum.RuleStatusPaused).
		Find(&rules).Error
	return rules, err
}

// ByTarget finds the rule configured for the given asset or fiat, used to
// reject duplicate rules at creation.
func (r *RuleRepo) ByTarget(ctx context.Context, assetID, fiatID *uint) (*model.Rule, error) {
	q := r.db.WithContext(ctx)
	switch {
	case assetID != nil:
		q = q.Where("target_asset_id = ?", *assetID)
	case fiatID != nil:
		q = q.Where("target_fiat_id = ?", *fiatID)
	default:
		return nil, exception.ErrInvalidArgument
	}

	var rule model.Rule
	err := q.First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
