package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/model/enum"
)

func ptr(v uint) *uint { return &v }

func timeAt(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestPipelineStart(t *testing.T) {
	rule := &Rule{
		DeficitStartActionID:    ptr(11),
		RedundancyStartActionID: ptr(22),
	}

	p := NewPipeline(rule, enum.PipelineTypeDeficit, decimal.NewFromInt(100))
	require.NoError(t, p.Start(rule))
	assert.Equal(t, enum.PipelineStatusInProgress, p.Status)
	require.NotNil(t, p.CurrentActionID)
	assert.Equal(t, uint(11), *p.CurrentActionID)

	// already started
	assert.ErrorIs(t, p.Start(rule), ErrInvalidStatus)
}

func TestPipelineStartWithoutChain(t *testing.T) {
	rule := &Rule{DeficitStartActionID: ptr(11)}

	p := NewPipeline(rule, enum.PipelineTypeRedundancy, decimal.NewFromInt(5))
	assert.ErrorIs(t, p.Start(rule), ErrRuleChainMissing)
	assert.Equal(t, enum.PipelineStatusCreated, p.Status)
}

func TestPipelineContinue(t *testing.T) {
	testCases := []struct {
		desc           string
		action         Action
		lastStatus     enum.OrderStatus
		expectedNext   *uint
		expectedStatus enum.PipelineStatus
	}{
		{
			desc:           "complete follows success edge",
			action:         Action{OnSuccessID: ptr(2), OnFailID: ptr(3)},
			lastStatus:     enum.OrderStatusComplete,
			expectedNext:   ptr(2),
			expectedStatus: enum.PipelineStatusInProgress,
		},
		{
			desc:           "complete without edge terminates complete",
			action:         Action{OnFailID: ptr(3)},
			lastStatus:     enum.OrderStatusComplete,
			expectedStatus: enum.PipelineStatusComplete,
		},
		{
			desc:           "failed follows fail edge",
			action:         Action{OnSuccessID: ptr(2), OnFailID: ptr(3)},
			lastStatus:     enum.OrderStatusFailed,
			expectedNext:   ptr(3),
			expectedStatus: enum.PipelineStatusInProgress,
		},
		{
			desc:           "not processable maps to the fail edge",
			action:         Action{OnFailID: ptr(3)},
			lastStatus:     enum.OrderStatusNotProcessable,
			expectedNext:   ptr(3),
			expectedStatus: enum.PipelineStatusInProgress,
		},
		{
			desc:           "failed without edge terminates failed",
			action:         Action{OnSuccessID: ptr(2)},
			lastStatus:     enum.OrderStatusFailed,
			expectedStatus: enum.PipelineStatusFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			p := &Pipeline{Status: enum.PipelineStatusInProgress, CurrentActionID: ptr(1)}

			p.Continue(&tc.action, tc.lastStatus)

			assert.Equal(t, 1, p.OrdersProcessed)
			assert.Equal(t, tc.expectedStatus, p.Status)
			if tc.expectedNext == nil {
				assert.Nil(t, p.CurrentActionID)
			} else {
				require.NotNil(t, p.CurrentActionID)
				assert.Equal(t, *tc.expectedNext, *p.CurrentActionID)
			}
		})
	}
}

func TestPipelineContinueSupportsCycles(t *testing.T) {
	// retry loop: action 1 fails back into itself
	action := &Action{OnFailID: ptr(1), OnSuccessID: ptr(2)}
	p := &Pipeline{Status: enum.PipelineStatusInProgress, CurrentActionID: ptr(1)}

	for i := 0; i < 3; i++ {
		p.Continue(action, enum.OrderStatusNotProcessable)
		require.Equal(t, enum.PipelineStatusInProgress, p.Status)
		require.Equal(t, uint(1), *p.CurrentActionID)
	}

	p.Continue(action, enum.OrderStatusComplete)
	assert.Equal(t, uint(2), *p.CurrentActionID)
	assert.Equal(t, 4, p.OrdersProcessed)
}

func TestRuleValidate(t *testing.T) {
	min := decimal.NewFromInt(1000)
	max := decimal.NewFromInt(9000)
	assetID := uint(1)

	valid := func() *Rule {
		return &Rule{
			TargetAssetID:           &assetID,
			Minimum:                 &min,
			Optimal:                 decimal.NewFromInt(5000),
			Maximum:                 &max,
			DeficitStartActionID:    ptr(11),
			RedundancyStartActionID: ptr(22),
		}
	}

	testCases := []struct {
		desc        string
		mutate      func(*Rule)
		expectedErr error
	}{
		{
			desc:   "valid band",
			mutate: func(*Rule) {},
		},
		{
			desc: "no target",
			mutate: func(r *Rule) {
				r.TargetAssetID = nil
			},
			expectedErr: ErrRuleTarget,
		},
		{
			desc: "asset and fiat target",
			mutate: func(r *Rule) {
				fiatID := uint(2)
				r.TargetFiatID = &fiatID
			},
			expectedErr: ErrRuleTarget,
		},
		{
			desc: "minimum at optimal",
			mutate: func(r *Rule) {
				v := decimal.NewFromInt(5000)
				r.Minimum = &v
			},
			expectedErr: ErrRuleBand,
		},
		{
			desc: "maximum below optimal",
			mutate: func(r *Rule) {
				v := decimal.NewFromInt(4000)
				r.Maximum = &v
			},
			expectedErr: ErrRuleBand,
		},
		{
			desc: "minimum without deficit chain",
			mutate: func(r *Rule) {
				r.DeficitStartActionID = nil
			},
			expectedErr: ErrRuleChainMissing,
		},
		{
			desc: "maximum without redundancy chain",
			mutate: func(r *Rule) {
				r.RedundancyStartActionID = nil
			},
			expectedErr: ErrRuleChainMissing,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			rule := valid()
			tc.mutate(rule)

			err := rule.Validate()
			if tc.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestRuleReactivation(t *testing.T) {
	cooldown := 60
	pausedAt := timeAt(t, "2026-08-30T10:00:00Z")

	rule := &Rule{Status: enum.RuleStatusPaused, ReactivationTime: &cooldown, PausedAt: &pausedAt}

	assert.False(t, rule.ShouldReactivate(timeAt(t, "2026-08-30T10:59:00Z")))
	assert.True(t, rule.ShouldReactivate(timeAt(t, "2026-08-30T11:00:00Z")))

	rule.Reactivate()
	assert.Equal(t, enum.RuleStatusActive, rule.Status)
	assert.Nil(t, rule.PausedAt)
	assert.False(t, rule.ShouldReactivate(timeAt(t, "2026-08-30T12:00:00Z")))
}
