// Package balance maintains the cached liquidity snapshots the verifier
// reads. Sources are slow and rate limited, so refreshes are coalesced and
// a failed source invalidates its entries to unknown instead of zero.
package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/singleflight"

	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/repository"
)

// Source reports on-chain balances for the assets of its blockchains.
type Source interface {
	Blockchains() []enum.Blockchain
	// Balances returns amounts keyed by asset id. A missing key means the
	// source could not read that asset.
	Balances(ctx context.Context, assets []model.Asset) (map[uint]decimal.Decimal, error)
}

// FiatSource reports bank account balances per fiat id.
type FiatSource interface {
	Balances(ctx context.Context, fiats []model.Fiat) (map[uint]decimal.Decimal, error)
}

// Aggregator refreshes and serves balance snapshots.
type Aggregator struct {
	repos   *repository.Repos
	sources map[enum.Blockchain]Source
	fiat    FiatSource

	group singleflight.Group
	now   func() time.Time
}

func New(repos *repository.Repos, fiat FiatSource, sources ...Source) *Aggregator {
	byChain := make(map[enum.Blockchain]Source, len(sources))
	for _, s := range sources {
		for _, chain := range s.Blockchains() {
			byChain[chain] = s
		}
	}
	return &Aggregator{
		repos:   repos,
		sources: byChain,
		fiat:    fiat,
		now:     time.Now,
	}
}

// RefreshAll reloads every managed asset and fiat balance. Concurrent calls
// share one upstream round per blockchain.
func (a *Aggregator) RefreshAll(ctx context.Context) error {
	assets, err := a.repos.Asset.List(ctx)
	if err != nil {
		return err
	}

	byChain := map[enum.Blockchain][]model.Asset{}
	for _, asset := range assets {
		byChain[asset.Blockchain] = append(byChain[asset.Blockchain], asset)
	}

	for chain, chainAssets := range byChain {
		a.refreshChain(ctx, chain, chainAssets)
	}

	a.refreshFiats(ctx)
	return nil
}

func (a *Aggregator) refreshChain(ctx context.Context, chain enum.Blockchain, assets []model.Asset) {
	source, ok := a.sources[chain]
	if !ok {
		return
	}

	safe := assets[:0:0]
	for _, asset := range assets {
		unsafe, err := a.isUnsafe(ctx, asset)
		if err != nil {
			logs.Warnf("in-flight check for %s failed: %v", asset.UniqueName(), err)
			continue
		}
		if unsafe {
			logs.Infof("skipping balance refresh of %s, dex orders in flight", asset.UniqueName())
			continue
		}
		safe = append(safe, asset)
	}
	if len(safe) == 0 {
		return
	}

	result, err, _ := a.group.Do(string(chain), func() (any, error) {
		return source.Balances(ctx, safe)
	})
	if err != nil {
		logs.Warnf("balance refresh on %s failed, invalidating: %v", chain, err)
		for _, asset := range safe {
			if ierr := a.repos.Balance.InvalidateAsset(ctx, asset.ID); ierr != nil {
				logs.Errorf("invalidate balance of %s: %v", asset.UniqueName(), ierr)
			}
		}
		return
	}

	amounts := result.(map[uint]decimal.Decimal)
	at := a.now()
	for _, asset := range safe {
		amount, ok := amounts[asset.ID]
		if !ok {
			continue
		}
		if err := a.repos.Balance.SetAsset(ctx, asset.ID, amount, at); err != nil {
			logs.Errorf("store balance of %s: %v", asset.UniqueName(), err)
		}
	}
}

func (a *Aggregator) refreshFiats(ctx context.Context) {
	if a.fiat == nil {
		return
	}

	fiats, err := a.repos.Fiat.List(ctx)
	if err != nil {
		logs.Warnf("list fiats: %v", err)
		return
	}
	if len(fiats) == 0 {
		return
	}

	result, err, _ := a.group.Do("fiat", func() (any, error) {
		return a.fiat.Balances(ctx, fiats)
	})
	if err != nil {
		logs.Warnf("fiat balance refresh failed: %v", err)
		return
	}

	amounts := result.(map[uint]decimal.Decimal)
	at := a.now()
	for id, amount := range amounts {
		if err := a.repos.Balance.SetFiat(ctx, id, amount, at); err != nil {
			logs.Errorf("store fiat balance %d: %v", id, err)
		}
	}
}

// isUnsafe reports whether the internal dex currently moves this asset,
// which makes any snapshot read mid-trade unreliable.
func (a *Aggregator) isUnsafe(ctx context.Context, asset model.Asset) (bool, error) {
	n, err := a.repos.Order.CountInFlightFor(ctx, enum.SystemDex, asset.Name)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CurrentFor returns the cached balance for a rule's target, or nil when it
// is unknown.
func (a *Aggregator) CurrentFor(ctx context.Context, rule *model.Rule) (*decimal.Decimal, error) {
	var (
		snapshot *model.Balance
		err      error
	)
	switch {
	case rule.TargetAssetID != nil:
		snapshot, err = a.repos.Balance.ForAsset(ctx, *rule.TargetAssetID)
	case rule.TargetFiatID != nil:
		snapshot, err = a.repos.Balance.ForFiat(ctx, *rule.TargetFiatID)
	default:
		return nil, model.ErrRuleTarget
	}
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}
	return &snapshot.Amount, nil
}
