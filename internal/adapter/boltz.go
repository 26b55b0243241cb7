package adapter

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

const boltzDepositPrefix = "boltz:deposit:"

var satsPerBtc = decimal.NewFromInt(1e8)

type boltzDepositState struct {
	V                 int    `json:"v"`
	SwapID            string `json:"swapId"`
	ClaimAddress      string `json:"claimAddress"`
	InvoiceAmountSats int64  `json:"invoiceAmountSats"`
}

// BoltzAdapter funds the citrea wallet with cBTC through a lightning
// reverse swap: the swap provider pays out to the claim address once the
// invoice settles.
type BoltzAdapter struct {
	boltz  client.BoltzClient
	citrea client.EvmClient
	assets AssetSource
}

func NewBoltz(boltz client.BoltzClient, citrea client.EvmClient, assets AssetSource) *BoltzAdapter {
	return &BoltzAdapter{boltz: boltz, citrea: citrea, assets: assets}
}

func (a *BoltzAdapter) System() enum.System { return enum.SystemBoltz }

func (a *BoltzAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandDeposit}
}

func (a *BoltzAdapter) ValidateParams(cmd enum.Command, _ map[string]string) bool {
	return cmd == enum.CommandDeposit
}

func (a *BoltzAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	if order.Action.Command != enum.CommandDeposit {
		return "", liquidity.Failed("boltz does not support command %s", order.Action.Command)
	}

	citreaAsset, err := targetAsset(order)
	if err != nil {
		return "", err
	}
	if citreaAsset.Type != enum.AssetTypeCoin || citreaAsset.Blockchain != enum.BlockchainCitrea {
		return "", liquidity.NotProcessable("boltz deposit only supports the native coin on %s", enum.BlockchainCitrea)
	}

	claimAddress := a.citrea.WalletAddress()
	invoiceAmountSats := order.MaxAmount.Mul(satsPerBtc).Round(0).IntPart()

	swapID, err := a.boltz.CreateReverseSwap(ctx, claimAddress, invoiceAmountSats)
	if err != nil {
		return "", err
	}
	logs.Infof("boltz reverse swap %s created, %d sats to %s", swapID, invoiceAmountSats, claimAddress)

	btcAsset, err := a.assets.Coin(ctx, enum.BlockchainBitcoin)
	if err != nil {
		return "", liquidity.Failed("no bitcoin asset configured: %s", err)
	}

	order.SetInput(btcAsset.Name, order.MaxAmount)
	order.OutputAsset = citreaAsset.Name

	return encodeCorrelation(boltzDepositPrefix, boltzDepositState{
		V:                 1,
		SwapID:            swapID,
		ClaimAddress:      claimAddress,
		InvoiceAmountSats: invoiceAmountSats,
	})
}

func (a *BoltzAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	var state boltzDepositState
	if err := decodeCorrelation(order.CorrelationID, boltzDepositPrefix, &state); err != nil {
		return false, liquidity.Failed("corrupt swap correlation for order %d: %s", order.ID, err)
	}

	status, failureReason, err := a.boltz.SwapStatus(ctx, state.SwapID)
	if err != nil {
		return false, err
	}

	if slices.Contains(client.ReverseSwapFailedStatuses, status) {
		if failureReason != "" {
			return false, liquidity.Failed("boltz swap failed: %s (%s)", status, failureReason)
		}
		return false, liquidity.Failed("boltz swap failed: %s", status)
	}

	if slices.Contains(client.ReverseSwapSuccessStatuses, status) {
		order.SetOutput(decimal.NewFromInt(state.InvoiceAmountSats).Div(satsPerBtc))
		return true, nil
	}

	return false, nil
}
