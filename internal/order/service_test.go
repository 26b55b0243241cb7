package order

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"treasury/internal/adapter"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
)

func newTestRepos(t *testing.T) *repository.Repos {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Asset{}, &model.Fiat{}, &model.Rule{}, &model.Action{},
		&model.Pipeline{}, &model.Order{},
	))
	return repository.New(db)
}

type fakeAdapter struct {
	execErr  error
	executed int
}

func (f *fakeAdapter) System() enum.System      { return enum.SystemKraken }
func (f *fakeAdapter) Commands() []enum.Command { return []enum.Command{enum.CommandBuy} }

func (f *fakeAdapter) ValidateParams(enum.Command, map[string]string) bool { return true }

func (f *fakeAdapter) ExecuteOrder(context.Context, *model.Order) (liquidity.CorrelationID, error) {
	f.executed++
	if f.execErr != nil {
		return "", f.execErr
	}
	return "handle-1", nil
}

func (f *fakeAdapter) CheckCompletion(context.Context, *model.Order) (bool, error) {
	return false, nil
}

type captureSink struct {
	events []liquidity.CompletionEvent
}

func (s *captureSink) EmitCompletion(ev liquidity.CompletionEvent) {
	s.events = append(s.events, ev)
}

func seedOrder(t *testing.T, repos *repository.Repos) *model.Order {
	t.Helper()

	action := &model.Action{System: enum.SystemKraken, Command: enum.CommandBuy}
	require.NoError(t, repos.Action.Create(t.Context(), action))

	pipeline := &model.Pipeline{Status: enum.PipelineStatusInProgress, CurrentActionID: &action.ID}
	require.NoError(t, repos.Pipeline.Create(t.Context(), pipeline))

	amount := decimal.RequireFromString("10")
	order := model.NewOrder(pipeline, action.ID, amount, amount, nil)
	require.NoError(t, repos.Order.Create(t.Context(), order))
	return order
}

func TestExecuteRunsOrderOnce(t *testing.T) {
	repos := newTestRepos(t)
	backend := &fakeAdapter{}
	svc := New(repos, adapter.NewRegistry(backend), nil, nil)

	order := seedOrder(t, repos)

	require.NoError(t, svc.Execute(t.Context(), order.ID))
	// second pass loses the claim and is a no-op
	require.NoError(t, svc.Execute(t.Context(), order.ID))

	assert.Equal(t, 1, backend.executed)

	reloaded, err := repos.Order.ByID(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusInProgress, reloaded.Status)
	assert.Equal(t, "handle-1", reloaded.CorrelationID)
}

func TestExecuteRevertsOnUnclassifiedError(t *testing.T) {
	repos := newTestRepos(t)
	backend := &fakeAdapter{execErr: errors.New("rpc timeout")}
	sink := &captureSink{}
	svc := New(repos, adapter.NewRegistry(backend), sink, nil)

	order := seedOrder(t, repos)

	require.NoError(t, svc.Execute(t.Context(), order.ID))

	reloaded, err := repos.Order.ByID(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCreated, reloaded.Status)
	assert.Empty(t, sink.events)

	// the backend recovered; the next pass picks the order up again
	backend.execErr = nil
	require.NoError(t, svc.Execute(t.Context(), order.ID))

	reloaded, err = repos.Order.ByID(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusInProgress, reloaded.Status)
	assert.Equal(t, 2, backend.executed)
}

func TestExecuteNotProcessableTerminatesAndEmits(t *testing.T) {
	repos := newTestRepos(t)
	backend := &fakeAdapter{execErr: liquidity.NotProcessable("not enough BTC")}
	sink := &captureSink{}
	svc := New(repos, adapter.NewRegistry(backend), sink, nil)

	order := seedOrder(t, repos)

	require.NoError(t, svc.Execute(t.Context(), order.ID))

	reloaded, err := repos.Order.ByID(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusNotProcessable, reloaded.Status)
	assert.Contains(t, reloaded.ErrorMessage, "not enough BTC")

	require.Len(t, sink.events, 1)
	assert.Equal(t, order.ID, sink.events[0].OrderID)
	assert.Equal(t, enum.OrderStatusNotProcessable, sink.events[0].Status)
}
