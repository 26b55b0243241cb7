package enum

// RuleStatus is the lifecycle status of a liquidity rule.
type RuleStatus string

const (
	RuleStatusActive     RuleStatus = "active"
	RuleStatusInactive   RuleStatus = "inactive"
	RuleStatusPaused     RuleStatus = "paused"
	RuleStatusProcessing RuleStatus = "processing"
)

func (s RuleStatus) IsAvailable() bool {
	switch s {
	case RuleStatusActive, RuleStatusInactive, RuleStatusPaused, RuleStatusProcessing:
		return true
	default:
		return false
	}
}

// PipelineStatus is the lifecycle status of a rebalancing pipeline.
type PipelineStatus string

const (
	PipelineStatusCreated    PipelineStatus = "created"
	PipelineStatusInProgress PipelineStatus = "in_progress"
	PipelineStatusComplete   PipelineStatus = "complete"
	PipelineStatusStopped    PipelineStatus = "stopped"
	PipelineStatusFailed     PipelineStatus = "failed"
)

func (s PipelineStatus) IsTerminal() bool {
	switch s {
	case PipelineStatusComplete, PipelineStatusStopped, PipelineStatusFailed:
		return true
	default:
		return false
	}
}

// PipelineType is the imbalance direction a pipeline resolves.
type PipelineType string

const (
	PipelineTypeDeficit    PipelineType = "deficit"
	PipelineTypeRedundancy PipelineType = "redundancy"
)

// OrderStatus is the lifecycle status of a single action execution.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "created"
	OrderStatusInProgress     OrderStatus = "in_progress"
	OrderStatusComplete       OrderStatus = "complete"
	OrderStatusNotProcessable OrderStatus = "not_processable"
	OrderStatusFailed         OrderStatus = "failed"
)

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusComplete, OrderStatusNotProcessable, OrderStatusFailed:
		return true
	default:
		return false
	}
}
