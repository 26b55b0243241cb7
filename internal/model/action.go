package model

import (
	"gorm.io/gorm"

	"treasury/internal/model/enum"
)

// Action is one node of the rebalancing graph: a backend system, a command,
// and optional success/fail edges to other actions. Edges may form cycles
// (retry loops), so they are plain IDs resolved by lookup at traversal time.
type Action struct {
	gorm.Model `json:"-"`
	System     enum.System `gorm:"index:idx_action_identity" json:"system"`
	Command    enum.Command `gorm:"index:idx_action_identity" json:"command"`
	// serialized param map, JSON; empty when the command takes no params
	Params string `gorm:"index:idx_action_identity" json:"params,omitempty"`

	OnSuccessID *uint `gorm:"index:idx_action_identity" json:"onSuccessId,omitempty"`
	OnFailID    *uint `gorm:"index:idx_action_identity" json:"onFailId,omitempty"`
}

// NextID returns the edge to follow for a terminal order status.
// Complete follows onSuccess; Failed and NotProcessable follow onFail.
// A nil result terminates the pipeline with the matching status.
func (a *Action) NextID(status enum.OrderStatus) *uint {
	if status == enum.OrderStatusComplete {
		return a.OnSuccessID
	}
	return a.OnFailID
}
