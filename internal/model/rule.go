package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"treasury/internal/model/enum"
)

// Rule is the configured liquidity band for one managed asset or fiat,
// together with the entry points of its deficit and redundancy chains.
type Rule struct {
	gorm.Model `json:"-"`
	Context    string          `json:"context"`
	Status     enum.RuleStatus `gorm:"index" json:"status"`

	// target is asset XOR fiat
	TargetAssetID *uint  `gorm:"index" json:"targetAssetId,omitempty"`
	TargetAsset   *Asset `json:"targetAsset,omitempty"`
	TargetFiatID  *uint  `gorm:"index" json:"targetFiatId,omitempty"`
	TargetFiat    *Fiat  `json:"targetFiat,omitempty"`

	Minimum *decimal.Decimal `gorm:"type:numeric(30,8)" json:"minimum,omitempty"`
	Optimal decimal.Decimal  `gorm:"type:numeric(30,8)" json:"optimal"`
	Maximum *decimal.Decimal `gorm:"type:numeric(30,8)" json:"maximum,omitempty"`

	DeficitStartActionID    *uint `json:"deficitStartActionId,omitempty"`
	RedundancyStartActionID *uint `json:"redundancyStartActionId,omitempty"`

	// minutes a paused rule waits before automatic reactivation; nil = manual only
	ReactivationTime  *int       `json:"reactivationTime,omitempty"`
	PausedAt          *time.Time `json:"pausedAt,omitempty"`
	SendNotifications bool       `json:"sendNotifications"`
}

// TargetName names the rule's target for logs and notifications.
func (r *Rule) TargetName() string {
	switch {
	case r.TargetAsset != nil:
		return r.TargetAsset.UniqueName()
	case r.TargetFiat != nil:
		return r.TargetFiat.Name
	default:
		return "unknown"
	}
}

// StartActionFor returns the chain entry action for the given pipeline type.
func (r *Rule) StartActionFor(t enum.PipelineType) *uint {
	if t == enum.PipelineTypeDeficit {
		return r.DeficitStartActionID
	}
	return r.RedundancyStartActionID
}

// Processing marks the rule as owned by a running pipeline.
func (r *Rule) Processing() {
	r.Status = enum.RuleStatusProcessing
}

// Reactivate resumes monitoring after a pipeline finished or a pause elapsed.
func (r *Rule) Reactivate() {
	r.Status = enum.RuleStatusActive
	r.PausedAt = nil
}

// Pause suspends the rule after a failed pipeline. The reactivation sweep
// picks it up again once ReactivationTime has elapsed.
func (r *Rule) Pause(now time.Time) {
	r.Status = enum.RuleStatusPaused
	r.PausedAt = &now
}

// Deactivate turns the rule off until manually reactivated.
func (r *Rule) Deactivate() {
	r.Status = enum.RuleStatusInactive
	r.PausedAt = nil
}

// ShouldReactivate reports whether a paused rule's cooldown has elapsed.
func (r *Rule) ShouldReactivate(now time.Time) bool {
	if r.Status != enum.RuleStatusPaused || r.ReactivationTime == nil || r.PausedAt == nil {
		return false
	}
	return now.Sub(*r.PausedAt) >= time.Duration(*r.ReactivationTime)*time.Minute
}

// Validate checks the band invariants: minimum < optimal < maximum where
// present, and a bound requires its corresponding action chain.
func (r *Rule) Validate() error {
	if (r.TargetAssetID == nil) == (r.TargetFiatID == nil) {
		return ErrRuleTarget
	}
	if r.Minimum != nil && !r.Minimum.LessThan(r.Optimal) {
		return ErrRuleBand
	}
	if r.Maximum != nil && !r.Optimal.LessThan(*r.Maximum) {
		return ErrRuleBand
	}
	if r.Minimum != nil && r.DeficitStartActionID == nil {
		return ErrRuleChainMissing
	}
	if r.Maximum != nil && r.RedundancyStartActionID == nil {
		return ErrRuleChainMissing
	}
	return nil
}
