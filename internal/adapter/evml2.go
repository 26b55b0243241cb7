package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// EvmL2Adapter moves funds across a canonical rollup bridge. Deposit funds
// the L2 from the L1 wallet, withdraw drains back to L1. The rule target is
// the L2-side asset; its L1 twin is resolved by name on Ethereum.
type EvmL2Adapter struct {
	system enum.System
	bridge client.L2BridgeClient
	l2     client.EvmClient
	assets AssetSource
}

func NewArbitrumBridge(bridge client.L2BridgeClient, l2 client.EvmClient, assets AssetSource) *EvmL2Adapter {
	return &EvmL2Adapter{system: enum.SystemArbitrumBridge, bridge: bridge, l2: l2, assets: assets}
}

func NewOptimismBridge(bridge client.L2BridgeClient, l2 client.EvmClient, assets AssetSource) *EvmL2Adapter {
	return &EvmL2Adapter{system: enum.SystemOptimismBridge, bridge: bridge, l2: l2, assets: assets}
}

func (a *EvmL2Adapter) System() enum.System { return a.system }

func (a *EvmL2Adapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandDeposit, enum.CommandWithdraw}
}

func (a *EvmL2Adapter) ValidateParams(cmd enum.Command, _ map[string]string) bool {
	return cmd == enum.CommandDeposit || cmd == enum.CommandWithdraw
}

func (a *EvmL2Adapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	asset, err := targetAsset(order)
	if err != nil {
		return "", err
	}

	switch order.Action.Command {
	case enum.CommandDeposit:
		return a.deposit(ctx, order, asset)
	case enum.CommandWithdraw:
		return a.withdraw(ctx, order, asset)
	default:
		return "", liquidity.Failed("%s does not support command %s", a.system, order.Action.Command)
	}
}

func (a *EvmL2Adapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	asset, err := targetAsset(order)
	if err != nil {
		return false, err
	}

	var complete bool
	switch order.Action.Command {
	case enum.CommandDeposit:
		complete, err = a.bridge.CheckL2Completion(ctx, order.CorrelationID, *asset)
	case enum.CommandWithdraw:
		complete, err = a.bridge.CheckL1Completion(ctx, order.CorrelationID, *asset)
	default:
		return false, liquidity.Failed("%s does not support command %s", a.system, order.Action.Command)
	}
	if err != nil {
		return false, err
	}

	// the bridge passes amounts through unchanged
	if complete && order.OutputAmount == nil && order.InputAmount != nil {
		order.SetOutput(*order.InputAmount)
	}
	return complete, nil
}

func (a *EvmL2Adapter) deposit(ctx context.Context, order *model.Order, l2Asset *model.Asset) (string, error) {
	available, l1Asset, err := a.l1Available(ctx, l2Asset)
	if err != nil {
		return "", err
	}
	if available.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on L1 to bridge to %s %s",
			l2Asset.Name, l2Asset.Blockchain, liquidity.Shortfall(available, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, available)

	var txHash string
	if l2Asset.Type == enum.AssetTypeCoin {
		txHash, err = a.bridge.DepositCoin(ctx, amount)
	} else {
		txHash, err = a.bridge.DepositToken(ctx, *l1Asset, *l2Asset, amount)
	}
	if err != nil {
		return "", err
	}

	order.SetInput(l2Asset.Name, amount)
	order.OutputAsset = l2Asset.Name
	return txHash, nil
}

func (a *EvmL2Adapter) withdraw(ctx context.Context, order *model.Order, l2Asset *model.Asset) (string, error) {
	available, err := a.l2Available(ctx, l2Asset)
	if err != nil {
		return "", err
	}
	if available.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on %s to withdraw to L1 %s",
			l2Asset.Name, l2Asset.Blockchain, liquidity.Shortfall(available, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, available)

	var txHash string
	if l2Asset.Type == enum.AssetTypeCoin {
		txHash, err = a.bridge.WithdrawCoin(ctx, amount)
	} else {
		var l1Asset *model.Asset
		l1Asset, err = a.l1Twin(ctx, l2Asset)
		if err != nil {
			return "", err
		}
		txHash, err = a.bridge.WithdrawToken(ctx, *l1Asset, *l2Asset, amount)
	}
	if err != nil {
		return "", err
	}

	order.SetInput(l2Asset.Name, amount)
	order.OutputAsset = l2Asset.Name
	return txHash, nil
}

func (a *EvmL2Adapter) l1Available(ctx context.Context, l2Asset *model.Asset) (decimal.Decimal, *model.Asset, error) {
	if l2Asset.Type == enum.AssetTypeCoin {
		available, err := a.bridge.L1CoinBalance(ctx)
		return available, nil, err
	}

	l1Asset, err := a.l1Twin(ctx, l2Asset)
	if err != nil {
		return decimal.Zero, nil, err
	}
	available, err := a.bridge.L1TokenBalance(ctx, *l1Asset)
	return available, l1Asset, err
}

func (a *EvmL2Adapter) l2Available(ctx context.Context, l2Asset *model.Asset) (decimal.Decimal, error) {
	if l2Asset.Type == enum.AssetTypeCoin {
		return a.l2.CoinBalance(ctx)
	}
	return a.l2.TokenBalance(ctx, *l2Asset)
}

func (a *EvmL2Adapter) l1Twin(ctx context.Context, l2Asset *model.Asset) (*model.Asset, error) {
	l1Asset, err := a.assets.ByQuery(ctx, l2Asset.Name, l2Asset.Type, enum.BlockchainEthereum)
	if err != nil {
		return nil, liquidity.Failed("no L1 twin of %s/%s: %s", l2Asset.Blockchain, l2Asset.Name, err)
	}
	return l1Asset, nil
}
