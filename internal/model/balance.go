package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balance is a cached snapshot of one target's available amount. A missing
// row means "balance unknown", not zero: failed refreshes delete the row
// instead of overwriting it.
type Balance struct {
	gorm.Model `json:"-"`
	AssetID    *uint           `gorm:"index" json:"assetId,omitempty"`
	FiatID     *uint           `gorm:"index" json:"fiatId,omitempty"`
	Amount     decimal.Decimal `gorm:"type:numeric(30,8)" json:"amount"`
	RefreshedAt time.Time      `json:"refreshedAt"`
}
