// Package completion resolves in-flight orders asynchronously. Detection is
// hybrid: a short poll per monitored order, push updates from exchange
// streams where available, and a slow fallback sweep that re-adopts orders
// lost across restarts. All resolutions funnel into one event channel.
package completion

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"treasury/internal/adapter"
	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
)

const (
	_pollInterval  = 5 * time.Second
	_eventCapacity = 256
)

type Service struct {
	repos    *repository.Repos
	registry *adapter.Registry

	// push streams per exchange, optional
	streams map[enum.System]client.OrderStream

	events chan liquidity.CompletionEvent

	// monitor goroutines outlive scheduler ticks, so they run on this
	// context instead of the caller's
	root context.Context

	mu       sync.Mutex
	monitors map[uint]context.CancelFunc

	pollInterval time.Duration
}

func New(repos *repository.Repos, registry *adapter.Registry, streams map[enum.System]client.OrderStream) *Service {
	return &Service{
		repos:        repos,
		registry:     registry,
		streams:      streams,
		events:       make(chan liquidity.CompletionEvent, _eventCapacity),
		monitors:     map[uint]context.CancelFunc{},
		pollInterval: _pollInterval,
	}
}

// Start binds the service to its lifetime context. Must be called before
// the first Monitor.
func (s *Service) Start(ctx context.Context) {
	s.root = ctx
}

func (s *Service) rootCtx() context.Context {
	if s.root != nil {
		return s.root
	}
	return context.Background()
}

// Events is the single completion channel the pipeline service consumes.
func (s *Service) Events() <-chan liquidity.CompletionEvent {
	return s.events
}

// EmitCompletion publishes an event for an order resolved outside the
// monitors, e.g. inline during execution.
func (s *Service) EmitCompletion(ev liquidity.CompletionEvent) {
	select {
	case s.events <- ev:
	default:
		logs.Warnf("completion channel full, dropping event for order %d", ev.OrderID)
	}
}

// Monitor starts active completion detection for one in-progress order.
// Calling it again for the same order is a no-op.
func (s *Service) Monitor(order *model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.monitors[order.ID]; running {
		return
	}

	monitorCtx, cancel := context.WithCancel(s.rootCtx())
	s.monitors[order.ID] = cancel

	wake := make(chan struct{}, 1)
	unsubscribe := s.subscribePush(monitorCtx, order, wake)

	go s.run(monitorCtx, order.ID, wake, unsubscribe)
}

func (s *Service) run(ctx context.Context, orderID uint, wake <-chan struct{}, unsubscribe func()) {
	defer s.drop(orderID)
	if unsubscribe != nil {
		defer unsubscribe()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-ticker.C:
		}

		done, err := s.resolve(ctx, orderID)
		if err != nil {
			logs.Warnf("completion check for order %d: %v", orderID, err)
			continue
		}
		if done {
			return
		}
	}
}

// subscribePush attaches a stream subscription for exchange trades so a fill
// resolves immediately instead of on the next poll. Poll-only systems return
// nil.
func (s *Service) subscribePush(ctx context.Context, order *model.Order, wake chan<- struct{}) func() {
	if order.Action == nil || !order.Action.Command.IsTrade() || !order.Action.System.SupportsOrderStream() {
		return nil
	}
	stream, ok := s.streams[order.Action.System]
	if !ok {
		return nil
	}
	tradeID, ok := adapter.ActiveTradeID(order)
	if !ok {
		return nil
	}

	unsubscribe, err := stream.Watch(ctx, tradeID, tradeSymbol(order), func(update client.OrderUpdate) {
		if update.Status == client.TradeStatusOpen {
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	if err != nil {
		logs.Warnf("stream subscribe for order %d on %s failed, polling only: %v",
			order.ID, order.Action.System, err)
		return nil
	}
	return unsubscribe
}

// resolve performs one idempotent completion check. It reloads the order so
// a resolution that raced another path is observed, not repeated.
func (s *Service) resolve(ctx context.Context, orderID uint) (bool, error) {
	order, err := s.repos.Order.ByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status.IsTerminal() {
		return true, nil
	}
	if order.CorrelationID == "" {
		// claimed but the execution result never persisted, e.g. a crash
		// mid-execute; hand the order back instead of polling a blank handle
		logs.Warnf("order %d in progress without correlation id, reverting for re-execution", order.ID)
		if err := s.repos.Order.Revert(ctx, order.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	adp, err := s.registry.Get(order.Action.System)
	if err != nil {
		return false, err
	}

	previousCorrelation := order.CorrelationID

	complete, checkErr := adp.CheckCompletion(ctx, order)
	switch {
	case checkErr == nil && complete:
		order.Complete()
		return true, s.persistAndEmit(ctx, order)

	case checkErr == nil:
		// multi-step adapters advance their state inside the blob
		if order.CorrelationID != previousCorrelation {
			return false, s.repos.Order.Save(ctx, order)
		}
		return false, nil

	case liquidity.IsNotProcessable(checkErr):
		order.NotProcessable(checkErr.Error())
		return true, s.persistAndEmit(ctx, order)

	case liquidity.IsFailed(checkErr):
		order.Fail(checkErr.Error())
		return true, s.persistAndEmit(ctx, order)

	default:
		return false, checkErr
	}
}

func (s *Service) persistAndEmit(ctx context.Context, order *model.Order) error {
	if err := s.repos.Order.Save(ctx, order); err != nil {
		return err
	}
	s.EmitCompletion(liquidity.CompletionEvent{
		OrderID:    order.ID,
		PipelineID: order.PipelineID,
		Status:     order.Status,
	})
	return nil
}

// FallbackSweep re-adopts in-progress orders that have no monitor, e.g.
// after a restart, and runs one check on them.
func (s *Service) FallbackSweep(ctx context.Context) error {
	orders, err := s.repos.Order.ByStatus(ctx, enum.OrderStatusInProgress)
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]

		s.mu.Lock()
		_, monitored := s.monitors[order.ID]
		s.mu.Unlock()
		if monitored {
			continue
		}

		logs.Infof("adopting unmonitored order %d", order.ID)
		s.Monitor(order)
	}
	return nil
}

// Stop cancels every running monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.monitors {
		cancel()
		delete(s.monitors, id)
	}
}

func (s *Service) drop(orderID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.monitors[orderID]; ok {
		cancel()
		delete(s.monitors, orderID)
	}
}

// tradeSymbol derives the exchange pair from the order legs.
func tradeSymbol(order *model.Order) string {
	if order.Action.Command == enum.CommandBuy {
		return order.OutputAsset + "/" + order.InputAsset
	}
	return order.InputAsset + "/" + order.OutputAsset
}
