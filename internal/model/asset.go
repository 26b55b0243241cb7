package model

import (
	"gorm.io/gorm"

	"treasury/internal/model/enum"
)

// Asset is one managed crypto asset on a specific blockchain.
type Asset struct {
	gorm.Model `json:"-"`
	Name       string          `gorm:"index:idx_asset_lookup" json:"name"`
	Type       enum.AssetType  `gorm:"index:idx_asset_lookup" json:"type"`
	Blockchain enum.Blockchain `gorm:"index:idx_asset_lookup" json:"blockchain"`
	ChainID    string          `json:"chainId"` // contract address for tokens
	Decimals   int             `json:"decimals"`
}

// UniqueName is the human-readable identity used in logs and notifications.
func (a Asset) UniqueName() string {
	return string(a.Blockchain) + "/" + a.Name
}

// Fiat is one managed fiat instrument.
type Fiat struct {
	gorm.Model `json:"-"`
	Name       string `gorm:"uniqueIndex" json:"name"`
}
