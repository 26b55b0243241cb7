package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

type OrderRepo struct {
	db *gorm.DB
}

func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// Save persists the full order row atomically. This is the only write path
// for execution results.
func (r *OrderRepo) Save(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Save(o).Error
}

// ByID loads an order with its action, pipeline and rule target resolved,
// ready for adapter dispatch.
func (r *OrderRepo) ByID(ctx context.Context, id uint) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Action").
		Preload("Pipeline").
		Preload("Pipeline.Rule").
		Preload("Pipeline.Rule.TargetAsset").
		Preload("Pipeline.Rule.TargetFiat").
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Claim flips exactly one Created row to InProgress. The status predicate
// makes the update a compare-and-swap: of two concurrent callers only one
// sees a row affected, giving at-most-once execution.
func (r *OrderRepo) Claim(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, enum.OrderStatusCreated).
		Update("status", enum.OrderStatusInProgress)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return exception.ErrAlreadyClaimed
	}
	return nil
}

// Revert puts an InProgress order back to Created so the next scheduler pass
// retries it. Used when execution died on an unclassified error.
func (r *OrderRepo) Revert(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, enum.OrderStatusInProgress).
		Update("status", enum.OrderStatusCreated).Error
}

// ByStatus lists orders in the given status, oldest first.
func (r *OrderRepo) ByStatus(ctx context.Context, status enum.OrderStatus) ([]model.Order, error) {
	var os []model.Order
	err := r.db.WithContext(ctx).
		Preload("Action").
		Where("status = ?", status).
		Order("id ASC").
		Find(&os).Error
	return os, err
}

// ByPipeline lists a pipeline's orders in creation order.
func (r *OrderRepo) ByPipeline(ctx context.Context, pipelineID uint) ([]model.Order, error) {
	var os []model.Order
	err := r.db.WithContext(ctx).
		Preload("Action").
		Where("pipeline_id = ?", pipelineID).
		Order("id ASC").
		Find(&os).Error
	return os, err
}

// LatestForPipeline returns the newest order of a pipeline, or ErrNotFound.
func (r *OrderRepo) LatestForPipeline(ctx context.Context, pipelineID uint) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Action").
		Where("pipeline_id = ?", pipelineID).
		Order("id DESC").
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CountInFlightFor counts non-terminal orders on a system touching the given
// asset name. The balance aggregator uses it to skip assets whose balance
// cannot be read safely while the internal dex is moving them.
func (r *OrderRepo) CountInFlightFor(ctx context.Context, system enum.System, asset string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Joins("JOIN actions ON actions.id = orders.action_id").
		Where("actions.system = ?", system).
		Where("orders.status IN ?", []enum.OrderStatus{enum.OrderStatusCreated, enum.OrderStatusInProgress}).
		Where("orders.input_asset = ? OR orders.output_asset = ?", asset, asset).
		Count(&n).Error
	return n, err
}
