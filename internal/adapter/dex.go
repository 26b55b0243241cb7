package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// DexAdapter trades against the platform's internal liquidity pool. Unlike
// the exchange venues there is no withdrawal step, the pool shares custody
// with the rest of the system.
type DexAdapter struct {
	dex client.DexClient
}

func NewDex(dex client.DexClient) *DexAdapter {
	return &DexAdapter{dex: dex}
}

func (a *DexAdapter) System() enum.System { return enum.SystemDex }

func (a *DexAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandBuy, enum.CommandSell}
}

func (a *DexAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	return (cmd == enum.CommandBuy || cmd == enum.CommandSell) && params[paramTradeAsset] != ""
}

func (a *DexAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	target, err := targetAssetName(order)
	if err != nil {
		return "", err
	}
	params, err := actionParams(order)
	if err != nil {
		return "", err
	}
	counter := params[paramTradeAsset]

	switch order.Action.Command {
	case enum.CommandBuy:
		// amount of target acquired with counter liquidity
		available, err := a.dex.AvailableLiquidity(ctx, counter)
		if err != nil {
			return "", err
		}
		if available.IsZero() {
			return "", liquidity.NotProcessable("no %s liquidity on dex", counter)
		}

		tradeID, err := a.dex.Purchase(ctx, counter, target, order.MaxAmount)
		if err != nil {
			return "", err
		}

		order.InputAsset = counter
		order.OutputAsset = target
		return tradeID, nil

	case enum.CommandSell:
		available, err := a.dex.AvailableLiquidity(ctx, target)
		if err != nil {
			return "", err
		}
		if available.LessThan(order.MinAmount) {
			return "", liquidity.NotProcessable("not enough %s on dex to sell %s",
				target, liquidity.Shortfall(available, order.MaxAmount))
		}

		amount := decimal.Min(order.MaxAmount, available)

		tradeID, err := a.dex.Sell(ctx, target, counter, amount)
		if err != nil {
			return "", err
		}

		order.SetInput(target, amount)
		order.OutputAsset = counter
		return tradeID, nil

	default:
		return "", liquidity.Failed("dex does not support command %s", order.Action.Command)
	}
}

func (a *DexAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	complete, output, err := a.dex.CheckTrade(ctx, order.CorrelationID)
	if err != nil {
		return false, err
	}
	if complete {
		order.SetOutput(output)
	}
	return complete, nil
}
