// Package admin exposes the operational HTTP API: rule management and
// read-only views over pipelines, orders and balance snapshots.
package admin

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"treasury/internal/adapter"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
	"treasury/pkg/exception"
)

// ActionInput is one node of a requested action chain, addressed by step
// number. Step numbers are request-local; edges reference other steps and
// may form cycles.
type ActionInput struct {
	Step          int               `json:"step" binding:"required,min=1"`
	System        enum.System       `json:"system" binding:"required"`
	Command       enum.Command      `json:"command" binding:"required"`
	Params        map[string]string `json:"params"`
	StepOnSuccess *int              `json:"stepOnSuccess"`
	StepOnFail    *int              `json:"stepOnFail"`
}

// RuleInput is the rule creation request.
type RuleInput struct {
	Context           string            `json:"context"`
	TargetAssetID     *uint             `json:"targetAssetId"`
	TargetFiatID      *uint             `json:"targetFiatId"`
	Minimum           *decimal.Decimal  `json:"minimum"`
	Optimal           decimal.Decimal   `json:"optimal" binding:"required"`
	Maximum           *decimal.Decimal  `json:"maximum"`
	ReactivationTime  *int              `json:"reactivationTime"`
	SendNotifications bool              `json:"sendNotifications"`
	DeficitActions    []ActionInput     `json:"deficitActions"`
	RedundancyActions []ActionInput     `json:"redundancyActions"`
}

// RuleUpdate carries the mutable band fields. Nil fields stay untouched.
type RuleUpdate struct {
	Minimum           *decimal.Decimal `json:"minimum"`
	Optimal           *decimal.Decimal `json:"optimal"`
	Maximum           *decimal.Decimal `json:"maximum"`
	SendNotifications *bool            `json:"sendNotifications"`
}

// RuleManager implements the rule lifecycle behind the HTTP handlers.
type RuleManager struct {
	repos    *repository.Repos
	registry *adapter.Registry
}

func NewRuleManager(repos *repository.Repos, registry *adapter.Registry) *RuleManager {
	return &RuleManager{repos: repos, registry: registry}
}

// CreateRule validates the request, persists the action chains (reusing
// identical existing actions) and inserts the rule.
func (m *RuleManager) CreateRule(ctx context.Context, in RuleInput) (*model.Rule, error) {
	if err := m.checkTarget(ctx, in); err != nil {
		return nil, err
	}

	if _, err := m.repos.Rule.ByTarget(ctx, in.TargetAssetID, in.TargetFiatID); err == nil {
		return nil, errors.Wrap(exception.ErrAlreadyExists, "rule for target already exists")
	} else if !stderrors.Is(err, exception.ErrNotFound) {
		return nil, err
	}

	deficitStart, err := m.buildChain(ctx, in.DeficitActions)
	if err != nil {
		return nil, err
	}
	redundancyStart, err := m.buildChain(ctx, in.RedundancyActions)
	if err != nil {
		return nil, err
	}

	rule := &model.Rule{
		Context:                 in.Context,
		Status:                  enum.RuleStatusActive,
		TargetAssetID:           in.TargetAssetID,
		TargetFiatID:            in.TargetFiatID,
		Minimum:                 in.Minimum,
		Optimal:                 in.Optimal,
		Maximum:                 in.Maximum,
		DeficitStartActionID:    deficitStart,
		RedundancyStartActionID: redundancyStart,
		ReactivationTime:        in.ReactivationTime,
		SendNotifications:       in.SendNotifications,
	}
	if err := rule.Validate(); err != nil {
		return nil, errors.Wrap(exception.ErrInvalidArgument, err.Error())
	}

	if err := m.repos.Rule.Create(ctx, rule); err != nil {
		return nil, err
	}

	logs.Infof("rule %d created for target asset=%v fiat=%v", rule.ID, in.TargetAssetID, in.TargetFiatID)
	return rule, nil
}

func (m *RuleManager) GetRule(ctx context.Context, id uint) (*model.Rule, error) {
	return m.repos.Rule.ByID(ctx, id)
}

// UpdateRule changes the band of a rule that is not currently processing.
func (m *RuleManager) UpdateRule(ctx context.Context, id uint, upd RuleUpdate) (*model.Rule, error) {
	rule, err := m.repos.Rule.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Status == enum.RuleStatusProcessing {
		return nil, exception.ErrRuleProcessing
	}

	if upd.Minimum != nil {
		rule.Minimum = upd.Minimum
	}
	if upd.Optimal != nil {
		rule.Optimal = *upd.Optimal
	}
	if upd.Maximum != nil {
		rule.Maximum = upd.Maximum
	}
	if upd.SendNotifications != nil {
		rule.SendNotifications = *upd.SendNotifications
	}

	if err := rule.Validate(); err != nil {
		return nil, errors.Wrap(exception.ErrInvalidArgument, err.Error())
	}
	return rule, m.repos.Rule.Save(ctx, rule)
}

func (m *RuleManager) DeactivateRule(ctx context.Context, id uint) (*model.Rule, error) {
	rule, err := m.repos.Rule.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.Deactivate()
	return rule, m.repos.Rule.Save(ctx, rule)
}

func (m *RuleManager) ReactivateRule(ctx context.Context, id uint) (*model.Rule, error) {
	rule, err := m.repos.Rule.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.Reactivate()
	return rule, m.repos.Rule.Save(ctx, rule)
}

// SetReactivationTime configures the auto-reactivation cooldown in minutes;
// nil disables automatic reactivation.
func (m *RuleManager) SetReactivationTime(ctx context.Context, id uint, minutes *int) (*model.Rule, error) {
	rule, err := m.repos.Rule.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.ReactivationTime = minutes
	return rule, m.repos.Rule.Save(ctx, rule)
}

func (m *RuleManager) checkTarget(ctx context.Context, in RuleInput) error {
	if (in.TargetAssetID == nil) == (in.TargetFiatID == nil) {
		return errors.Wrap(exception.ErrInvalidArgument, "exactly one of targetAssetId and targetFiatId is required")
	}
	if in.TargetAssetID != nil {
		if _, err := m.repos.Asset.ByID(ctx, *in.TargetAssetID); err != nil {
			return errors.Wrap(err, "target asset")
		}
	}
	if in.TargetFiatID != nil {
		if _, err := m.repos.Fiat.ByID(ctx, *in.TargetFiatID); err != nil {
			return errors.Wrap(err, "target fiat")
		}
	}
	return nil
}

// buildChain persists an action chain and returns the entry action's id.
// An empty chain yields nil.
func (m *RuleManager) buildChain(ctx context.Context, actions []ActionInput) (*uint, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	steps, err := validateChain(actions)
	if err != nil {
		return nil, errors.Wrap(exception.ErrInvalidArgument, err.Error())
	}
	if err := m.checkIntegrations(actions); err != nil {
		return nil, err
	}

	b := &chainBuilder{
		repos:    m.repos,
		steps:    steps,
		resolved: map[int]*model.Action{},
		visiting: map[int]bool{},
	}
	entry, err := b.resolve(ctx, 1)
	if err != nil {
		return nil, err
	}
	return &entry.ID, nil
}

// checkIntegrations verifies every node has a registered adapter that knows
// the command and accepts the parameters.
func (m *RuleManager) checkIntegrations(actions []ActionInput) error {
	for _, a := range actions {
		adp, err := m.registry.Get(a.System)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("step %d (%s)", a.Step, a.System))
		}
		if !m.registry.Supports(a.System, a.Command) {
			return errors.Wrap(exception.ErrCommandUnsupported,
				fmt.Sprintf("step %d: %s does not support %s", a.Step, a.System, a.Command))
		}
		if !adp.ValidateParams(a.Command, a.Params) {
			return errors.Wrap(exception.ErrInvalidArgument,
				fmt.Sprintf("step %d: invalid params for %s %s", a.Step, a.System, a.Command))
		}
	}
	return nil
}

// validateChain checks the step structure: step 1 present, step numbers
// unique, every referenced step defined. Returns the step index.
func validateChain(actions []ActionInput) (map[int]ActionInput, error) {
	steps := make(map[int]ActionInput, len(actions))
	for _, a := range actions {
		if _, dup := steps[a.Step]; dup {
			return nil, fmt.Errorf("duplicate step %d", a.Step)
		}
		steps[a.Step] = a
	}

	if _, ok := steps[1]; !ok {
		return nil, fmt.Errorf("chain entry step 1 is missing")
	}

	for _, a := range actions {
		for _, ref := range []*int{a.StepOnSuccess, a.StepOnFail} {
			if ref == nil {
				continue
			}
			if _, ok := steps[*ref]; !ok {
				return nil, fmt.Errorf("step %d references undefined step %d", a.Step, *ref)
			}
		}
	}
	return steps, nil
}

// chainBuilder turns step-addressed nodes into persisted actions. Acyclic
// parts are resolved children-first so identical existing actions can be
// reused; nodes on a cycle are inserted first and linked afterwards.
type chainBuilder struct {
	repos    *repository.Repos
	steps    map[int]ActionInput
	resolved map[int]*model.Action
	visiting map[int]bool
}

func (b *chainBuilder) resolve(ctx context.Context, step int) (*model.Action, error) {
	if a, ok := b.resolved[step]; ok {
		return a, nil
	}

	in := b.steps[step]
	params, err := serializeParams(in.Params)
	if err != nil {
		return nil, err
	}

	if b.visiting[step] {
		// back edge: insert the node now, edges are patched by the frame
		// currently resolving this step
		a := &model.Action{System: in.System, Command: in.Command, Params: params}
		if err := b.repos.Action.Create(ctx, a); err != nil {
			return nil, err
		}
		b.resolved[step] = a
		return a, nil
	}

	b.visiting[step] = true
	defer delete(b.visiting, step)

	var onSuccessID, onFailID *uint
	if in.StepOnSuccess != nil {
		child, err := b.resolve(ctx, *in.StepOnSuccess)
		if err != nil {
			return nil, err
		}
		onSuccessID = &child.ID
	}
	if in.StepOnFail != nil {
		child, err := b.resolve(ctx, *in.StepOnFail)
		if err != nil {
			return nil, err
		}
		onFailID = &child.ID
	}

	if a, ok := b.resolved[step]; ok {
		// this node was inserted by a back edge; link it up
		a.OnSuccessID = onSuccessID
		a.OnFailID = onFailID
		return a, b.repos.Action.Save(ctx, a)
	}

	existing, err := b.repos.Action.FindIdentical(ctx, in.System, in.Command, params, onSuccessID, onFailID)
	if err == nil {
		b.resolved[step] = existing
		return existing, nil
	}
	if !stderrors.Is(err, exception.ErrNotFound) {
		return nil, err
	}

	a := &model.Action{
		System:      in.System,
		Command:     in.Command,
		Params:      params,
		OnSuccessID: onSuccessID,
		OnFailID:    onFailID,
	}
	if err := b.repos.Action.Create(ctx, a); err != nil {
		return nil, err
	}
	b.resolved[step] = a
	return a, nil
}

func serializeParams(params map[string]string) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	raw, err := sonic.MarshalString(params)
	if err != nil {
		return "", errors.Wrap(err, "serialize action params")
	}
	return raw, nil
}
