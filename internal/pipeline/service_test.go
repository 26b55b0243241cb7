package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
)

func TestNextBounds(t *testing.T) {
	target := decimal.RequireFromString("4500")
	pipeline := &model.Pipeline{TargetAmount: target}

	testCases := []struct {
		desc     string
		last     model.Order
		expected string
	}{
		{
			desc:     "success edge works on the pipeline target",
			last:     model.Order{Status: enum.OrderStatusComplete},
			expected: "4500",
		},
		{
			desc: "insufficiency follow-up tops up the missing amount",
			last: model.Order{
				Status: enum.OrderStatusNotProcessable,
				ErrorMessage: "order not processable: not enough BTC " +
					liquidity.Shortfall(decimal.RequireFromString("80"), decimal.RequireFromString("150")),
			},
			expected: "70",
		},
		{
			desc: "unparseable detail falls back to the target",
			last: model.Order{
				Status:       enum.OrderStatusNotProcessable,
				ErrorMessage: "order not processable: venue rejected withdrawal",
			},
			expected: "4500",
		},
		{
			desc: "non positive missing amount falls back to the target",
			last: model.Order{
				Status: enum.OrderStatusNotProcessable,
				ErrorMessage: "order not processable: " +
					liquidity.Shortfall(decimal.RequireFromString("200"), decimal.RequireFromString("150")),
			},
			expected: "4500",
		},
		{
			desc: "hard failures ignore the error detail",
			last: model.Order{
				Status: enum.OrderStatusFailed,
				ErrorMessage: "order failed: " +
					liquidity.Shortfall(decimal.RequireFromString("80"), decimal.RequireFromString("150")),
			},
			expected: "4500",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			minAmount, maxAmount := nextBounds(pipeline, &tc.last)
			assert.Equal(t, tc.expected, minAmount.String())
			assert.Equal(t, tc.expected, maxAmount.String())
		})
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

type captureNotifier struct {
	subjects []string
}

func (n *captureNotifier) Send(_ context.Context, subject string, _ []string) error {
	n.subjects = append(n.subjects, subject)
	return nil
}

func TestContinueAdvancesOneOrderPerEvent(t *testing.T) {
	repos := newTestRepos(t)

	second := &model.Action{System: enum.SystemKraken, Command: enum.CommandBuy}
	require.NoError(t, repos.Action.Create(t.Context(), second))
	first := &model.Action{System: enum.SystemKraken, Command: enum.CommandSell, OnSuccessID: &second.ID}
	require.NoError(t, repos.Action.Create(t.Context(), first))

	target := decimal.RequireFromString("100")
	pipeline := &model.Pipeline{
		Status:          enum.PipelineStatusInProgress,
		Type:            enum.PipelineTypeDeficit,
		TargetAmount:    target,
		CurrentActionID: &first.ID,
	}
	require.NoError(t, repos.Pipeline.Create(t.Context(), pipeline))

	order := model.NewOrder(pipeline, first.ID, target, target, nil)
	require.NoError(t, repos.Order.Create(t.Context(), order))
	order.Complete()
	require.NoError(t, repos.Order.Save(t.Context(), order))

	svc := New(repos, nil, nil)
	ev := liquidity.CompletionEvent{OrderID: order.ID, PipelineID: pipeline.ID, Status: enum.OrderStatusComplete}
	require.NoError(t, svc.Continue(t.Context(), ev))

	advanced, err := repos.Pipeline.ByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PipelineStatusInProgress, advanced.Status)
	require.NotNil(t, advanced.CurrentActionID)
	assert.Equal(t, second.ID, *advanced.CurrentActionID)
	assert.Equal(t, 1, advanced.OrdersProcessed)

	orders, err := repos.Order.ByPipeline(t.Context(), pipeline.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, enum.OrderStatusCreated, orders[1].Status)
	assert.Equal(t, second.ID, orders[1].ActionID)

	// a duplicate of the same event must not move the machine again while
	// the follow-up order is still open
	require.NoError(t, svc.Continue(t.Context(), ev))

	replayed, err := repos.Pipeline.ByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PipelineStatusInProgress, replayed.Status)
	assert.Equal(t, 1, replayed.OrdersProcessed)

	orders, err = repos.Order.ByPipeline(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestContinueNotProcessablePausesRule(t *testing.T) {
	repos := newTestRepos(t)
	notifier := &captureNotifier{}

	rule := &model.Rule{Status: enum.RuleStatusProcessing, SendNotifications: true}
	require.NoError(t, repos.Rule.Create(t.Context(), rule))

	action := &model.Action{System: enum.SystemKraken, Command: enum.CommandWithdraw}
	require.NoError(t, repos.Action.Create(t.Context(), action))

	target := decimal.RequireFromString("50")
	pipeline := &model.Pipeline{
		RuleID:          rule.ID,
		Status:          enum.PipelineStatusInProgress,
		Type:            enum.PipelineTypeDeficit,
		TargetAmount:    target,
		CurrentActionID: &action.ID,
	}
	require.NoError(t, repos.Pipeline.Create(t.Context(), pipeline))

	order := model.NewOrder(pipeline, action.ID, target, target, nil)
	require.NoError(t, repos.Order.Create(t.Context(), order))
	order.NotProcessable("not enough BTC " +
		liquidity.Shortfall(decimal.RequireFromString("10"), decimal.RequireFromString("50")))
	require.NoError(t, repos.Order.Save(t.Context(), order))

	svc := New(repos, notifier, nil)
	require.NoError(t, svc.Continue(t.Context(), liquidity.CompletionEvent{
		OrderID:    order.ID,
		PipelineID: pipeline.ID,
		Status:     enum.OrderStatusNotProcessable,
	}))

	finished, err := repos.Pipeline.ByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PipelineStatusFailed, finished.Status)

	paused, err := repos.Rule.ByID(t.Context(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RuleStatusPaused, paused.Status)
	assert.NotNil(t, paused.PausedAt)

	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "failed")
}

func TestContinueCompleteReactivatesRule(t *testing.T) {
	repos := newTestRepos(t)
	notifier := &captureNotifier{}

	rule := &model.Rule{Status: enum.RuleStatusProcessing, SendNotifications: true}
	require.NoError(t, repos.Rule.Create(t.Context(), rule))

	action := &model.Action{System: enum.SystemKraken, Command: enum.CommandBuy}
	require.NoError(t, repos.Action.Create(t.Context(), action))

	target := decimal.RequireFromString("25")
	pipeline := &model.Pipeline{
		RuleID:          rule.ID,
		Status:          enum.PipelineStatusInProgress,
		Type:            enum.PipelineTypeDeficit,
		TargetAmount:    target,
		CurrentActionID: &action.ID,
	}
	require.NoError(t, repos.Pipeline.Create(t.Context(), pipeline))

	order := model.NewOrder(pipeline, action.ID, target, target, nil)
	require.NoError(t, repos.Order.Create(t.Context(), order))
	order.Complete()
	require.NoError(t, repos.Order.Save(t.Context(), order))

	svc := New(repos, notifier, nil)
	require.NoError(t, svc.Continue(t.Context(), liquidity.CompletionEvent{
		OrderID:    order.ID,
		PipelineID: pipeline.ID,
		Status:     enum.OrderStatusComplete,
	}))

	finished, err := repos.Pipeline.ByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PipelineStatusComplete, finished.Status)

	reactivated, err := repos.Rule.ByID(t.Context(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RuleStatusActive, reactivated.Status)
	assert.Nil(t, reactivated.PausedAt)

	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "complete")
}

func TestStartCreatedUnstartablePausesRule(t *testing.T) {
	repos := newTestRepos(t)
	notifier := &captureNotifier{}

	// no chain entry, so the pipeline can never start
	rule := &model.Rule{Status: enum.RuleStatusProcessing, SendNotifications: true}
	require.NoError(t, repos.Rule.Create(t.Context(), rule))

	pipeline := model.NewPipeline(rule, enum.PipelineTypeDeficit, decimal.RequireFromString("10"))
	require.NoError(t, repos.Pipeline.Create(t.Context(), pipeline))

	svc := New(repos, notifier, nil)
	require.NoError(t, svc.StartCreated(t.Context()))

	stopped, err := repos.Pipeline.ByID(t.Context(), pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PipelineStatusStopped, stopped.Status)

	paused, err := repos.Rule.ByID(t.Context(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RuleStatusPaused, paused.Status)

	require.Len(t, notifier.subjects, 1)
	assert.Contains(t, notifier.subjects[0], "failed")
}
