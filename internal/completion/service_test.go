package completion

import (
	"testing"

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

func TestTradeSymbol(t *testing.T) {
	testCases := []struct {
		desc     string
		command  enum.Command
		input    string
		output   string
		expected string
	}{
		{
			desc:     "buy quotes in the input asset",
			command:  enum.CommandBuy,
			input:    "USDT",
			output:   "BTC",
			expected: "BTC/USDT",
		},
		{
			desc:     "sell quotes in the output asset",
			command:  enum.CommandSell,
			input:    "BTC",
			output:   "USDT",
			expected: "BTC/USDT",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			order := &model.Order{
				Action:      &model.Action{Command: tc.command},
				InputAsset:  tc.input,
				OutputAsset: tc.output,
			}
			assert.Equal(t, tc.expected, tradeSymbol(order))
		})
	}
}

func TestEmitCompletionDeliversInOrder(t *testing.T) {
	s := New(nil, nil, nil)

	s.EmitCompletion(liquidity.CompletionEvent{OrderID: 1, PipelineID: 9, Status: enum.OrderStatusComplete})
	s.EmitCompletion(liquidity.CompletionEvent{OrderID: 2, PipelineID: 9, Status: enum.OrderStatusFailed})

	first := <-s.Events()
	require.Equal(t, uint(1), first.OrderID)
	assert.Equal(t, enum.OrderStatusComplete, first.Status)

	second := <-s.Events()
	require.Equal(t, uint(2), second.OrderID)
	assert.Equal(t, enum.OrderStatusFailed, second.Status)
}

func TestEmitCompletionDropsWhenFull(t *testing.T) {
	s := New(nil, nil, nil)
	s.events = make(chan liquidity.CompletionEvent, 1)

	s.EmitCompletion(liquidity.CompletionEvent{OrderID: 1})
	s.EmitCompletion(liquidity.CompletionEvent{OrderID: 2})

	ev := <-s.Events()
	assert.Equal(t, uint(1), ev.OrderID)

	select {
	case extra := <-s.Events():
		t.Fatalf("expected the overflow event to be dropped, got order %d", extra.OrderID)
	default:
	}
}

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

func TestResolveRevertsUnexecutedOrder(t *testing.T) {
	repos := newTestRepos(t)

	action := &model.Action{System: enum.SystemKraken, Command: enum.CommandBuy}
	require.NoError(t, repos.Action.Create(t.Context(), action))

	// claimed, but the process died before the execution result persisted:
	// in progress with no backend handle
	order := &model.Order{
		ActionID: action.ID,
		Status:   enum.OrderStatusInProgress,
	}
	require.NoError(t, repos.Order.Create(t.Context(), order))

	s := New(repos, adapter.NewRegistry(), nil)
	done, err := s.resolve(t.Context(), order.ID)
	require.NoError(t, err)
	assert.True(t, done)

	reloaded, err := repos.Order.ByID(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCreated, reloaded.Status)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected completion event %+v", ev)
	default:
	}
}
