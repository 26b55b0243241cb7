package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

type PipelineRepo struct {
	db *gorm.DB
}

func (r *PipelineRepo) Create(ctx context.Context, p *model.Pipeline) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PipelineRepo) Save(ctx context.Context, p *model.Pipeline) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PipelineRepo) ByID(ctx context.Context, id uint) (*model.Pipeline, error) {
	var p model.Pipeline
	err := r.db.WithContext(ctx).
		Preload("Rule").Preload("Rule.TargetAsset").Preload("Rule.TargetFiat").
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RunningForRule finds a non-terminal pipeline for a rule. The verifier
// checks this before spawning; note this find-before-insert is not backed by
// a uniqueness constraint.
func (r *PipelineRepo) RunningForRule(ctx context.Context, ruleID uint) (*model.Pipeline, error) {
	var p model.Pipeline
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND status IN ?", ruleID,
			[]enum.PipelineStatus{enum.PipelineStatusCreated, enum.PipelineStatusInProgress}).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ByStatuses lists pipelines in any of the given statuses, newest first.
func (r *PipelineRepo) ByStatuses(ctx context.Context, statuses []enum.PipelineStatus) ([]model.Pipeline, error) {
	var ps []model.Pipeline
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id DESC").
		Find(&ps).Error
	return ps, err
}

// LockInProgress loads a pipeline under SELECT ... FOR UPDATE, restricted to
// rows still in progress. Callers must run inside a transaction; the loser
// of two concurrent continuations observes ErrNotFound after the winner
// moved the row on, and performs no further work.
func (r *PipelineRepo) LockInProgress(ctx context.Context, id uint) (*model.Pipeline, error) {
	q := r.db.WithContext(ctx)
	// sqlite has no SELECT ... FOR UPDATE; its single writer serializes the
	// transaction anyway
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p model.Pipeline
	err := q.
		Where("id = ? AND status = ?", id, enum.PipelineStatusInProgress).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
