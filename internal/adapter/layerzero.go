package adapter

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// OFT adapter contracts on the Ethereum side, keyed by base token name.
var layerZeroOftAdapters = map[string]string{
	"USDC": "0xdaa289CC487Cf95Ba99Db62f791c7E2d2a4b868E",
	"USDT": "0x6925ccD29e3993c82a574CED4372d8737C6dbba6",
	"WBTC": "0x2c01390E10e44C968B73A7BcFF7E4b4F50ba76Ed",
}

// LayerZeroAdapter bridges ERC-20 tokens from Ethereum to citrea over the
// OFT messaging layer. The correlation id is the origin-chain tx hash.
type LayerZeroAdapter struct {
	lz       client.LayerZeroClient
	ethereum client.EvmClient
	citrea   client.EvmClient
	assets   AssetSource
}

func NewLayerZero(lz client.LayerZeroClient, ethereum, citrea client.EvmClient, assets AssetSource) *LayerZeroAdapter {
	return &LayerZeroAdapter{lz: lz, ethereum: ethereum, citrea: citrea, assets: assets}
}

func (a *LayerZeroAdapter) System() enum.System { return enum.SystemLayerZero }

func (a *LayerZeroAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandDeposit}
}

func (a *LayerZeroAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	return cmd == enum.CommandDeposit && len(params) == 0
}

func (a *LayerZeroAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	if order.Action.Command != enum.CommandDeposit {
		return "", liquidity.Failed("layerzero does not support command %s", order.Action.Command)
	}

	citreaAsset, err := targetAsset(order)
	if err != nil {
		return "", err
	}
	if citreaAsset.Type != enum.AssetTypeToken {
		return "", liquidity.NotProcessable("layerzero bridge only supports token assets")
	}

	baseName := baseTokenName(citreaAsset.Name)

	oftAdapterAddress, ok := layerZeroOftAdapters[baseName]
	if !ok {
		return "", liquidity.NotProcessable("layerzero bridge not configured for token %s (base %s)", citreaAsset.Name, baseName)
	}

	ethereumAsset, err := a.assets.ByQuery(ctx, baseName, enum.AssetTypeToken, enum.BlockchainEthereum)
	if err != nil {
		return "", liquidity.NotProcessable("no Ethereum asset for %s", baseName)
	}

	balance, err := a.ethereum.TokenBalance(ctx, *ethereumAsset)
	if err != nil {
		return "", err
	}
	if balance.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on Ethereum %s",
			baseName, liquidity.Shortfall(balance, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, balance)

	order.SetInput(ethereumAsset.Name, amount)
	order.OutputAsset = citreaAsset.Name
	// OFT sends pass the amount through; the fee is paid in the native coin
	order.SetOutput(amount)

	logs.Infof("layerzero bridge %s %s from Ethereum to %s via %s", amount, baseName, citreaAsset.Blockchain, oftAdapterAddress)

	return a.lz.SendTokens(ctx, *ethereumAsset, oftAdapterAddress, a.citrea.WalletAddress(), amount)
}

func (a *LayerZeroAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	citreaAsset, err := targetAsset(order)
	if err != nil {
		return false, err
	}

	found, success, err := a.ethereum.TxSucceeded(ctx, order.CorrelationID)
	if err != nil {
		logs.Warnf("layerzero tx %s lookup failed: %v", order.CorrelationID, err)
		return false, nil
	}
	if !found {
		return false, nil
	}
	if !success {
		return false, liquidity.Failed("layerzero bridge transaction %s failed on Ethereum", order.CorrelationID)
	}

	// message finality takes a few minutes; the destination balance is a
	// heuristic for arrival since there is no message receipt to query
	citreaBalance, err := a.citrea.TokenBalance(ctx, *citreaAsset)
	if err != nil {
		logs.Warnf("layerzero destination balance check failed: %v", err)
		return false, nil
	}

	expected := decimal.Zero
	if order.OutputAmount != nil {
		expected = *order.OutputAmount
	}

	arrived := citreaBalance.GreaterThanOrEqual(expected)
	if arrived {
		logs.Infof("layerzero bridge complete: %s, balance %s %s", order.CorrelationID, citreaBalance, citreaAsset.Name)
	}
	return arrived, nil
}

// baseTokenName strips bridge suffixes, e.g. "USDC.e" resolves to "USDC".
func baseTokenName(name string) string {
	for _, suffix := range []string{".e", ".b", ".E", ".B"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
