// Package pipeline drives the rebalancing state machine. A pipeline walks
// its rule's action graph one order at a time; continuation happens under a
// row lock so the push path and the fallback sweep can never both advance
// the same pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
	"treasury/pkg/exception"
)

// OrderRunner executes one created order. Wired to the order service so a
// freshly created order runs immediately instead of waiting for the next
// scheduler pass.
type OrderRunner interface {
	Execute(ctx context.Context, orderID uint) error
}

type Service struct {
	repos    *repository.Repos
	notifier client.Notifier
	runner   OrderRunner

	now func() time.Time
}

func New(repos *repository.Repos, notifier client.Notifier, runner OrderRunner) *Service {
	return &Service{
		repos:    repos,
		notifier: notifier,
		runner:   runner,
		now:      time.Now,
	}
}

// Run consumes the completion channel until ctx ends.
func (s *Service) Run(ctx context.Context, events <-chan liquidity.CompletionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := s.Continue(ctx, ev); err != nil {
				logs.Errorf("continue pipeline %d after order %d: %v", ev.PipelineID, ev.OrderID, err)
			}
		}
	}
}

// StartCreated starts every pipeline the verifier spawned since the last
// pass.
func (s *Service) StartCreated(ctx context.Context) error {
	pipelines, err := s.repos.Pipeline.ByStatuses(ctx, []enum.PipelineStatus{enum.PipelineStatusCreated})
	if err != nil {
		return err
	}

	for i := range pipelines {
		if err := s.start(ctx, &pipelines[i]); err != nil {
			logs.Errorf("start pipeline %d: %v", pipelines[i].ID, err)
		}
	}
	return nil
}

func (s *Service) start(ctx context.Context, p *model.Pipeline) error {
	rule, err := s.repos.Rule.ByID(ctx, p.RuleID)
	if err != nil {
		return err
	}

	if startErr := p.Start(rule); startErr != nil {
		// stopped is terminal, so the rule pauses like any other failure
		logs.Errorf("pipeline %d for rule %s not startable: %v", p.ID, rule.TargetName(), startErr)
		p.Stop()
		if err := s.repos.Pipeline.Save(ctx, p); err != nil {
			return err
		}
		rule.Pause(s.now())
		if err := s.repos.Rule.Save(ctx, rule); err != nil {
			return err
		}
		if rule.SendNotifications {
			s.notify(ctx, &notification{
				subject: fmt.Sprintf("Liquidity pipeline for %s failed", rule.TargetName()),
				lines: []string{
					fmt.Sprintf("pipeline %d (%s), target %s", p.ID, p.Type, p.TargetAmount),
					fmt.Sprintf("not startable: %v", startErr),
				},
			})
		}
		return nil
	}

	if err := s.repos.Pipeline.Save(ctx, p); err != nil {
		return err
	}

	order := model.NewOrder(p, *p.CurrentActionID, p.TargetAmount, p.TargetAmount, nil)
	if err := s.repos.Order.Create(ctx, order); err != nil {
		return err
	}

	logs.Infof("pipeline %d started for rule %s (%s %s)",
		p.ID, rule.TargetName(), p.Type, p.TargetAmount)

	s.execute(ctx, order.ID)
	return nil
}

// Continue advances one pipeline after an order reached a terminal state.
// The row lock makes the transition atomic; a concurrent continuation that
// lost the race observes ErrNotFound and does nothing.
func (s *Service) Continue(ctx context.Context, ev liquidity.CompletionEvent) error {
	var (
		nextOrderID uint
		note        *notification
	)

	err := s.repos.Transaction(ctx, func(tx *repository.Repos) error {
		p, err := tx.Pipeline.LockInProgress(ctx, ev.PipelineID)
		if errors.Is(err, exception.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if p.CurrentActionID == nil {
			return fmt.Errorf("pipeline %d in progress without current action", p.ID)
		}

		last, err := tx.Order.ByID(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		if !last.Status.IsTerminal() {
			// stale event; the order's own monitor will emit again
			return nil
		}

		// the event is actionable only while its order is still the
		// pipeline's newest; a duplicate arriving after the advance would
		// move the machine twice for one order. An action id comparison is
		// not enough because retry cycles revisit the same action.
		latest, err := tx.Order.LatestForPipeline(ctx, p.ID)
		if err != nil {
			return err
		}
		if latest.ID != last.ID {
			return nil
		}

		current, err := tx.Action.ByID(ctx, *p.CurrentActionID)
		if err != nil {
			return err
		}

		p.Continue(current, last.Status)
		if err := tx.Pipeline.Save(ctx, p); err != nil {
			return err
		}

		if p.Status == enum.PipelineStatusInProgress {
			minAmount, maxAmount := nextBounds(p, last)
			next := model.NewOrder(p, *p.CurrentActionID, minAmount, maxAmount, last)
			if err := tx.Order.Create(ctx, next); err != nil {
				return err
			}
			nextOrderID = next.ID
			return nil
		}

		note, err = s.finish(ctx, tx, p, last)
		return err
	})
	if err != nil {
		return err
	}

	if note != nil {
		s.notify(ctx, note)
	}
	if nextOrderID != 0 {
		s.execute(ctx, nextOrderID)
	}
	return nil
}

// finish settles the owning rule after a pipeline reached a terminal state
// and prepares the operational notification.
func (s *Service) finish(ctx context.Context, tx *repository.Repos, p *model.Pipeline, last *model.Order) (*notification, error) {
	rule, err := tx.Rule.ByID(ctx, p.RuleID)
	if err != nil {
		return nil, err
	}

	var note *notification
	switch p.Status {
	case enum.PipelineStatusComplete:
		logs.Infof("pipeline %d for rule %s complete after %d orders",
			p.ID, rule.TargetName(), p.OrdersProcessed)
		rule.Reactivate()
		note = &notification{
			subject: fmt.Sprintf("Liquidity pipeline for %s complete", rule.TargetName()),
			lines: []string{
				fmt.Sprintf("pipeline %d (%s), target %s", p.ID, p.Type, p.TargetAmount),
				fmt.Sprintf("orders processed: %d", p.OrdersProcessed),
			},
		}

	default:
		logs.Warnf("pipeline %d for rule %s terminated with %s: %s",
			p.ID, rule.TargetName(), p.Status, last.ErrorMessage)
		rule.Pause(s.now())
		note = &notification{
			subject: fmt.Sprintf("Liquidity pipeline for %s failed", rule.TargetName()),
			lines: []string{
				fmt.Sprintf("pipeline %d (%s), target %s", p.ID, p.Type, p.TargetAmount),
				fmt.Sprintf("last order %d: %s", last.ID, last.ErrorMessage),
			},
		}
	}

	if err := tx.Rule.Save(ctx, rule); err != nil {
		return nil, err
	}
	if !rule.SendNotifications {
		note = nil
	}
	return note, nil
}

// ProgressSweep is the fallback pass: it re-emits continuation for
// in-progress pipelines whose newest order already terminated, covering
// events lost across a restart.
func (s *Service) ProgressSweep(ctx context.Context) error {
	pipelines, err := s.repos.Pipeline.ByStatuses(ctx, []enum.PipelineStatus{enum.PipelineStatusInProgress})
	if err != nil {
		return err
	}

	for i := range pipelines {
		p := &pipelines[i]
		last, err := s.repos.Order.LatestForPipeline(ctx, p.ID)
		if errors.Is(err, exception.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !last.Status.IsTerminal() {
			continue
		}

		if err := s.Continue(ctx, liquidity.CompletionEvent{
			OrderID:    last.ID,
			PipelineID: p.ID,
			Status:     last.Status,
		}); err != nil {
			logs.Errorf("sweep pipeline %d: %v", p.ID, err)
		}
	}
	return nil
}

func (s *Service) execute(ctx context.Context, orderID uint) {
	if s.runner == nil {
		return
	}
	if err := s.runner.Execute(ctx, orderID); err != nil {
		logs.Errorf("execute order %d: %v", orderID, err)
	}
}

type notification struct {
	subject string
	lines   []string
}

func (s *Service) notify(ctx context.Context, note *notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, note.subject, note.lines); err != nil {
		logs.Warnf("send notification %q: %v", note.subject, err)
	}
}

// nextBounds sizes the next order. A fail-edge follow-up after an
// insufficiency tops up exactly the missing amount parsed from the previous
// order's error detail; everything else works on the pipeline target.
func nextBounds(p *model.Pipeline, last *model.Order) (decimal.Decimal, decimal.Decimal) {
	if last.Status == enum.OrderStatusNotProcessable {
		if balance, requested, ok := liquidity.ParseShortfall(last.ErrorMessage); ok {
			missing := requested.Sub(balance)
			if missing.IsPositive() {
				return missing, missing
			}
		}
	}
	return p.TargetAmount, p.TargetAmount
}
