package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"treasury/internal/model/enum"
)

// Order is one execution attempt of an action inside a pipeline. Status only
// moves Created -> InProgress -> {Complete | Failed | NotProcessable};
// terminal states are final.
type Order struct {
	gorm.Model `json:"-"`
	PipelineID uint             `gorm:"index" json:"pipelineId"`
	Pipeline   *Pipeline        `json:"-"`
	ActionID   uint             `json:"actionId"`
	Action     *Action          `json:"-"`
	Status     enum.OrderStatus `gorm:"index" json:"status"`

	MinAmount decimal.Decimal `gorm:"type:numeric(30,8)" json:"minAmount"`
	MaxAmount decimal.Decimal `gorm:"type:numeric(30,8)" json:"maxAmount"`

	// opaque backend handle: tx hash, exchange order id, or an encoded
	// multi-step state blob for bridge protocols
	CorrelationID string `json:"correlationId,omitempty"`

	InputAsset   string           `json:"inputAsset,omitempty"`
	InputAmount  *decimal.Decimal `gorm:"type:numeric(30,8)" json:"inputAmount,omitempty"`
	OutputAsset  string           `json:"outputAsset,omitempty"`
	OutputAmount *decimal.Decimal `gorm:"type:numeric(30,8)" json:"outputAmount,omitempty"`

	PreviousOrderID *uint  `json:"previousOrderId,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// NewOrder creates an order for one action visit.
func NewOrder(pipeline *Pipeline, actionID uint, minAmount, maxAmount decimal.Decimal, previous *Order) *Order {
	o := &Order{
		PipelineID: pipeline.ID,
		ActionID:   actionID,
		Status:     enum.OrderStatusCreated,
		MinAmount:  minAmount,
		MaxAmount:  maxAmount,
	}
	if previous != nil {
		o.PreviousOrderID = &previous.ID
	}
	return o
}

// Complete marks the order terminally successful.
func (o *Order) Complete() {
	o.Status = enum.OrderStatusComplete
}

// Fail marks the order terminally failed.
func (o *Order) Fail(msg string) {
	o.Status = enum.OrderStatusFailed
	o.ErrorMessage = msg
}

// NotProcessable marks the order as rejected by the backend for a
// recoverable reason (typically an insufficiency).
func (o *Order) NotProcessable(msg string) {
	o.Status = enum.OrderStatusNotProcessable
	o.ErrorMessage = msg
}

// SetOutput records the realized output amount.
func (o *Order) SetOutput(amount decimal.Decimal) {
	o.OutputAmount = &amount
}

// SetInput records what the adapter actually consumed.
func (o *Order) SetInput(asset string, amount decimal.Decimal) {
	o.InputAsset = asset
	o.InputAmount = &amount
}
