package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

type ActionRepo struct {
	db *gorm.DB
}

func (r *ActionRepo) Create(ctx context.Context, action *model.Action) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// Save persists edge updates, needed when a cyclic chain is linked up after
// its nodes were inserted.
func (r *ActionRepo) Save(ctx context.Context, action *model.Action) error {
	return r.db.WithContext(ctx).Save(action).Error
}

func (r *ActionRepo) ByID(ctx context.Context, id uint) (*model.Action, error) {
	var action model.Action
	err := r.db.WithContext(ctx).First(&action, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// FindIdentical looks up a persisted action with the same system, command,
// params and edges. Actions are shared between rules, so rule creation
// reuses an identical node instead of inserting a duplicate.
func (r *ActionRepo) FindIdentical(ctx context.Context, system enum.System, command enum.Command, params string, onSuccessID, onFailID *uint) (*model.Action, error) {
	q := r.db.WithContext(ctx).
		Where("system = ? AND command = ? AND params = ?", system, command, params)

	q = whereNullableID(q, "on_success_id", onSuccessID)
	q = whereNullableID(q, "on_fail_id", onFailID)

	var action model.Action
	err := q.First(&action).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

func whereNullableID(q *gorm.DB, column string, id *uint) *gorm.DB {
	if id == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *id)
}
