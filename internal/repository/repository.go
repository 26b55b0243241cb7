// Package repository holds the gorm persistence layer. Every repo can be
// rebound to a transaction with WithTx so services control atomicity.
package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles all repositories over one database handle.
type Repos struct {
	db *gorm.DB

	Rule     *RuleRepo
	Action   *ActionRepo
	Pipeline *PipelineRepo
	Order    *OrderRepo
	Balance  *BalanceRepo
	Asset    *AssetRepo
	Fiat     *FiatRepo
}

func New(db *gorm.DB) *Repos {
	return &Repos{
		db:       db,
		Rule:     &RuleRepo{db: db},
		Action:   &ActionRepo{db: db},
		Pipeline: &PipelineRepo{db: db},
		Order:    &OrderRepo{db: db},
		Balance:  &BalanceRepo{db: db},
		Asset:    &AssetRepo{db: db},
		Fiat:     &FiatRepo{db: db},
	}
}

// Transaction runs fn with every repo rebound to one database transaction.
func (r *Repos) Transaction(ctx context.Context, fn func(tx *Repos) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
