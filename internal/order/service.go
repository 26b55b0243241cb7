// Package order claims and executes single orders against their backend
// adapter. Claiming is a conditional update so concurrent workers never run
// the same order twice.
package order

import (
	"context"
	"errors"

	"github.com/yanun0323/logs"

	"treasury/internal/adapter"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
	"treasury/pkg/exception"
)

// Monitor starts asynchronous completion detection for an executed order.
type Monitor interface {
	Monitor(order *model.Order)
}

type Service struct {
	repos    *repository.Repos
	registry *adapter.Registry
	sink     liquidity.EventSink
	monitor  Monitor
}

func New(repos *repository.Repos, registry *adapter.Registry, sink liquidity.EventSink, monitor Monitor) *Service {
	return &Service{repos: repos, registry: registry, sink: sink, monitor: monitor}
}

// ExecutePending runs every claimable order once.
func (s *Service) ExecutePending(ctx context.Context) error {
	orders, err := s.repos.Order.ByStatus(ctx, enum.OrderStatusCreated)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if err := s.Execute(ctx, o.ID); err != nil {
			logs.Errorf("execute order %d: %v", o.ID, err)
		}
	}
	return nil
}

// Execute claims the order and dispatches it to its adapter. Classified
// adapter errors terminate the order; anything else reverts it to Created
// so a later pass retries.
func (s *Service) Execute(ctx context.Context, orderID uint) error {
	if err := s.repos.Order.Claim(ctx, orderID); err != nil {
		if errors.Is(err, exception.ErrAlreadyClaimed) {
			return nil
		}
		return err
	}

	order, err := s.repos.Order.ByID(ctx, orderID)
	if err != nil {
		return err
	}

	adp, err := s.registry.Get(order.Action.System)
	if err != nil {
		order.Fail(err.Error())
		return s.finish(ctx, order)
	}

	correlationID, execErr := adp.ExecuteOrder(ctx, order)
	switch {
	case execErr == nil:
		order.CorrelationID = correlationID
		if err := s.repos.Order.Save(ctx, order); err != nil {
			return err
		}
		if s.monitor != nil {
			s.monitor.Monitor(order)
		}
		return nil

	case liquidity.IsNotNecessary(execErr):
		logs.Infof("order %d not necessary: %v", order.ID, execErr)
		order.Complete()
		return s.finish(ctx, order)

	case liquidity.IsNotProcessable(execErr):
		order.NotProcessable(execErr.Error())
		return s.finish(ctx, order)

	case liquidity.IsFailed(execErr):
		order.Fail(execErr.Error())
		return s.finish(ctx, order)

	default:
		// infrastructure fault; give the order back for retry
		logs.Warnf("order %d execution hit unclassified error, reverting: %v", order.ID, execErr)
		return s.repos.Order.Revert(ctx, orderID)
	}
}

// finish persists a terminally resolved order and notifies the pipeline
// side immediately, without waiting for a completion poll.
func (s *Service) finish(ctx context.Context, order *model.Order) error {
	if err := s.repos.Order.Save(ctx, order); err != nil {
		return err
	}

	if s.sink != nil {
		s.sink.EmitCompletion(liquidity.CompletionEvent{
			OrderID:    order.ID,
			PipelineID: order.PipelineID,
			Status:     order.Status,
		})
	}
	return nil
}
