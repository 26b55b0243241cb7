package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"treasury/internal/model/enum"
)

// Pipeline is one rebalancing run for a rule. It walks the action graph one
// order at a time and is never reused after reaching a terminal status.
type Pipeline struct {
	gorm.Model `json:"-"`
	RuleID     uint                `gorm:"index" json:"ruleId"`
	Rule       *Rule               `json:"-"`
	Status     enum.PipelineStatus `gorm:"index" json:"status"`
	Type       enum.PipelineType   `json:"type"`

	TargetAmount decimal.Decimal `gorm:"type:numeric(30,8)" json:"targetAmount"`

	CurrentActionID *uint   `json:"currentActionId,omitempty"`
	CurrentAction   *Action `json:"-"`
	OrdersProcessed int     `json:"ordersProcessed"`
}

// NewPipeline creates a pipeline for a detected imbalance.
func NewPipeline(rule *Rule, t enum.PipelineType, target decimal.Decimal) *Pipeline {
	return &Pipeline{
		RuleID:       rule.ID,
		Rule:         rule,
		Status:       enum.PipelineStatusCreated,
		Type:         t,
		TargetAmount: target,
	}
}

// Start moves Created to InProgress and points at the rule's chain entry.
func (p *Pipeline) Start(rule *Rule) error {
	if p.Status != enum.PipelineStatusCreated {
		return ErrInvalidStatus
	}
	start := rule.StartActionFor(p.Type)
	if start == nil {
		return ErrRuleChainMissing
	}
	p.Status = enum.PipelineStatusInProgress
	p.CurrentActionID = start
	return nil
}

// Continue advances the state machine by one step given the terminal status
// of the last order. It is pure graph traversal: the caller persists the
// result under the pipeline row lock.
func (p *Pipeline) Continue(current *Action, lastOrderStatus enum.OrderStatus) {
	p.OrdersProcessed++

	next := current.NextID(lastOrderStatus)
	if next != nil {
		p.CurrentActionID = next
		return
	}

	p.CurrentActionID = nil
	if lastOrderStatus == enum.OrderStatusComplete {
		p.Status = enum.PipelineStatusComplete
	} else {
		p.Status = enum.PipelineStatusFailed
	}
}

// Stop terminates the pipeline without completing it.
func (p *Pipeline) Stop() {
	p.Status = enum.PipelineStatusStopped
	p.CurrentActionID = nil
}
