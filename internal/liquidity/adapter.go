package liquidity

import (
	"context"

	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// CorrelationID is the opaque backend handle returned by ExecuteOrder and
// consumed by CheckCompletion: a transaction hash, an exchange order id, or
// an encoded multi-step state blob.
type CorrelationID = string

// Adapter is one backend integration. Implementations never write order
// rows themselves beyond mutating the passed struct; classification of
// errors into terminal order states happens in the orchestration layer.
type Adapter interface {
	System() enum.System
	Commands() []enum.Command

	// ValidateParams is a pure syntactic check of the required parameters
	// for a command. Used at rule creation time.
	ValidateParams(cmd enum.Command, params map[string]string) bool

	// ExecuteOrder performs the operation and returns the handle for later
	// polling. It may set the order's input asset/amount and output asset
	// as side effects.
	ExecuteOrder(ctx context.Context, order *model.Order) (CorrelationID, error)

	// CheckCompletion polls the backend once. On success it sets the
	// order's output amount. Multi-step adapters may advance their internal
	// step and rewrite order.CorrelationID; the caller persists it.
	CheckCompletion(ctx context.Context, order *model.Order) (bool, error)
}

// CompletionEvent is published once per resolved order on the engine's
// single completion channel.
type CompletionEvent struct {
	OrderID    uint
	PipelineID uint
	Status     enum.OrderStatus
}

// EventSink accepts completion events. The pipeline service consumes the
// other end for immediate state machine continuation.
type EventSink interface {
	EmitCompletion(ev CompletionEvent)
}
