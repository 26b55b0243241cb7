package adapter

import (
	"context"
	"os"

	"github.com/shopspring/decimal"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// Wallet adapters move the managed asset between own wallets. Destination
// addresses come from the environment, never straight from action params,
// so a compromised rule cannot redirect funds.

// BitcoinWalletAdapter transfers BTC out of the node wallet.
type BitcoinWalletAdapter struct {
	bitcoin client.BitcoinClient
	fees    client.FeeService
	env     func(string) string
}

func NewBitcoinWallet(bitcoin client.BitcoinClient, fees client.FeeService) *BitcoinWalletAdapter {
	return &BitcoinWalletAdapter{bitcoin: bitcoin, fees: fees, env: os.Getenv}
}

func (a *BitcoinWalletAdapter) System() enum.System { return enum.SystemBitcoinWallet }

func (a *BitcoinWalletAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandTransfer}
}

func (a *BitcoinWalletAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	return cmd == enum.CommandTransfer && a.env(params[paramDestinationAddress]) != ""
}

func (a *BitcoinWalletAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	asset, err := targetAssetName(order)
	if err != nil {
		return "", err
	}
	params, err := actionParams(order)
	if err != nil {
		return "", err
	}

	address := a.env(params[paramDestinationAddress])
	if address == "" {
		return "", liquidity.Failed("bitcoin wallet transfer destination not configured")
	}

	balance, err := a.bitcoin.Balance(ctx)
	if err != nil {
		return "", err
	}
	if balance.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s in bitcoin wallet %s",
			asset, liquidity.Shortfall(balance, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, balance)

	feeRate, err := a.fees.RecommendedFeeRate(ctx)
	if err != nil {
		return "", err
	}

	txID, err := a.bitcoin.SendToAddress(ctx, address, amount, feeRate)
	if err != nil {
		return "", err
	}

	order.SetInput(asset, amount)
	order.OutputAsset = asset
	return txID, nil
}

func (a *BitcoinWalletAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	confirmed, err := a.bitcoin.IsTxConfirmed(ctx, order.CorrelationID, 1)
	if err != nil {
		return false, err
	}
	if confirmed && order.OutputAmount == nil && order.InputAmount != nil {
		order.SetOutput(*order.InputAmount)
	}
	return confirmed, nil
}

// EvmWalletAdapter transfers a coin or token out of one EVM wallet.
type EvmWalletAdapter struct {
	evm client.EvmClient
	env func(string) string
}

func NewEvmWallet(evm client.EvmClient) *EvmWalletAdapter {
	return &EvmWalletAdapter{evm: evm, env: os.Getenv}
}

func (a *EvmWalletAdapter) System() enum.System { return enum.SystemEvmWallet }

func (a *EvmWalletAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandTransfer}
}

func (a *EvmWalletAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	return cmd == enum.CommandTransfer && a.env(params[paramDestinationAddress]) != ""
}

func (a *EvmWalletAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	asset, err := targetAsset(order)
	if err != nil {
		return "", err
	}
	params, err := actionParams(order)
	if err != nil {
		return "", err
	}

	address := a.env(params[paramDestinationAddress])
	if address == "" {
		return "", liquidity.Failed("evm wallet transfer destination not configured")
	}

	var balance decimal.Decimal
	if asset.Type == enum.AssetTypeCoin {
		balance, err = a.evm.CoinBalance(ctx)
	} else {
		balance, err = a.evm.TokenBalance(ctx, *asset)
	}
	if err != nil {
		return "", err
	}
	if balance.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s in evm wallet %s",
			asset.Name, liquidity.Shortfall(balance, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, balance)

	var txHash string
	if asset.Type == enum.AssetTypeCoin {
		txHash, err = a.evm.SendCoin(ctx, address, amount)
	} else {
		txHash, err = a.evm.SendToken(ctx, *asset, address, amount)
	}
	if err != nil {
		return "", err
	}

	order.SetInput(asset.Name, amount)
	order.OutputAsset = asset.Name
	return txHash, nil
}

func (a *EvmWalletAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	found, success, err := a.evm.TxSucceeded(ctx, order.CorrelationID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if !success {
		return false, liquidity.Failed("evm transfer %s reverted", order.CorrelationID)
	}
	if order.OutputAmount == nil && order.InputAmount != nil {
		order.SetOutput(*order.InputAmount)
	}
	return true, nil
}

// LightningWalletAdapter pays out over lightning.
type LightningWalletAdapter struct {
	lightning client.LightningClient
	env       func(string) string
}

func NewLightningWallet(lightning client.LightningClient) *LightningWalletAdapter {
	return &LightningWalletAdapter{lightning: lightning, env: os.Getenv}
}

func (a *LightningWalletAdapter) System() enum.System { return enum.SystemLightningWallet }

func (a *LightningWalletAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandTransfer}
}

func (a *LightningWalletAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	return cmd == enum.CommandTransfer && a.env(params[paramDestinationAddress]) != ""
}

func (a *LightningWalletAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	asset, err := targetAssetName(order)
	if err != nil {
		return "", err
	}
	params, err := actionParams(order)
	if err != nil {
		return "", err
	}

	address := a.env(params[paramDestinationAddress])
	if address == "" {
		return "", liquidity.Failed("lightning transfer destination not configured")
	}

	balance, err := a.lightning.Balance(ctx)
	if err != nil {
		return "", err
	}
	if balance.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on lightning %s",
			asset, liquidity.Shortfall(balance, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, balance)

	paymentID, err := a.lightning.PayToAddress(ctx, address, amount)
	if err != nil {
		return "", err
	}

	order.SetInput(asset, amount)
	order.OutputAsset = asset
	return paymentID, nil
}

func (a *LightningWalletAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	settled, err := a.lightning.IsPaymentSettled(ctx, order.CorrelationID)
	if err != nil {
		return false, err
	}
	if settled && order.OutputAmount == nil && order.InputAmount != nil {
		order.SetOutput(*order.InputAmount)
	}
	return settled, nil
}
