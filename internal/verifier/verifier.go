// Package verifier watches every active rule's target balance against its
// band and spawns a pipeline when it drifts out.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"treasury/internal/client"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
	"treasury/pkg/exception"
)

const _amountPrecision = 8

// Assessment is the band check result for one rule.
type Assessment struct {
	IsOptimal  bool
	Deficit    decimal.Decimal
	Redundancy decimal.Decimal
}

// Assess compares a balance against the rule's band. Deviation is the
// distance to the optimum; an absent bound never triggers.
func Assess(rule *model.Rule, balance decimal.Decimal) Assessment {
	deviation := rule.Optimal.Sub(balance).Abs().Round(_amountPrecision)

	var deficit, redundancy decimal.Decimal
	if rule.Minimum != nil && balance.LessThan(*rule.Minimum) {
		deficit = deviation
	}
	if deficit.IsZero() && rule.Maximum != nil && balance.GreaterThan(*rule.Maximum) {
		redundancy = deviation
	}

	return Assessment{
		IsOptimal:  deficit.IsZero() && redundancy.IsZero(),
		Deficit:    deficit,
		Redundancy: redundancy,
	}
}

// BalanceReader is the snapshot cache the verifier consults each tick.
type BalanceReader interface {
	RefreshAll(ctx context.Context) error
	CurrentFor(ctx context.Context, rule *model.Rule) (*decimal.Decimal, error)
}

type Service struct {
	repos    *repository.Repos
	balances BalanceReader
	notifier client.Notifier
	now      func() time.Time
}

func New(repos *repository.Repos, balances BalanceReader, notifier client.Notifier) *Service {
	return &Service{repos: repos, balances: balances, notifier: notifier, now: time.Now}
}

// Tick refreshes balances once and checks every active rule against it.
// Rules whose balance is unknown are skipped, never treated as zero.
func (s *Service) Tick(ctx context.Context) error {
	if err := s.balances.RefreshAll(ctx); err != nil {
		return err
	}

	rules, err := s.repos.Rule.ByStatus(ctx, enum.RuleStatusActive)
	if err != nil {
		return err
	}

	for i := range rules {
		rule := &rules[i]

		current, err := s.balances.CurrentFor(ctx, rule)
		if err != nil {
			logs.Warnf("balance lookup for rule %d (%s) failed: %v", rule.ID, rule.TargetName(), err)
			continue
		}
		if current == nil {
			logs.Infof("balance of %s unknown, skipping rule %d", rule.TargetName(), rule.ID)
			continue
		}

		assessment := Assess(rule, *current)
		if assessment.IsOptimal {
			continue
		}

		if err := s.spawn(ctx, rule, assessment); err != nil {
			logs.Errorf("spawn pipeline for rule %d: %v", rule.ID, err)
		}
	}

	return nil
}

// spawn creates the pipeline for a detected imbalance, unless one is
// already running for the rule.
func (s *Service) spawn(ctx context.Context, rule *model.Rule, assessment Assessment) error {
	pipelineType := enum.PipelineTypeDeficit
	target := assessment.Deficit
	if assessment.Deficit.IsZero() {
		pipelineType = enum.PipelineTypeRedundancy
		target = assessment.Redundancy
	}

	// a rule without the matching chain cannot act on this direction
	if rule.StartActionFor(pipelineType) == nil {
		return nil
	}

	return s.repos.Transaction(ctx, func(tx *repository.Repos) error {
		_, err := tx.Pipeline.RunningForRule(ctx, rule.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, exception.ErrNotFound) {
			return err
		}

		pipeline := model.NewPipeline(rule, pipelineType, target)
		if err := tx.Pipeline.Create(ctx, pipeline); err != nil {
			return err
		}

		rule.Processing()
		if err := tx.Rule.Save(ctx, rule); err != nil {
			return err
		}

		logs.Infof("%s pipeline %d spawned for rule %d (%s), target %s",
			pipelineType, pipeline.ID, rule.ID, rule.TargetName(), target)
		return nil
	})
}

// ReactivationSweep resumes paused rules whose cooldown has elapsed.
func (s *Service) ReactivationSweep(ctx context.Context) error {
	rules, err := s.repos.Rule.PausedWithCooldown(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for i := range rules {
		rule := &rules[i]
		if !rule.ShouldReactivate(now) {
			continue
		}

		rule.Reactivate()
		if err := s.repos.Rule.Save(ctx, rule); err != nil {
			logs.Errorf("reactivate rule %d: %v", rule.ID, err)
			continue
		}
		logs.Infof("rule %d (%s) reactivated after cooldown", rule.ID, rule.TargetName())

		if s.notifier != nil && rule.SendNotifications {
			lines := []string{
				fmt.Sprintf("Rule: %d (%s)", rule.ID, rule.TargetName()),
				"The cooldown elapsed and the rule is active again.",
			}
			if err := s.notifier.Send(ctx, fmt.Sprintf("Liquidity rule for %s reactivated", rule.TargetName()), lines); err != nil {
				logs.Warnf("reactivation notification for rule %d: %v", rule.ID, err)
			}
		}
	}

	return nil
}
