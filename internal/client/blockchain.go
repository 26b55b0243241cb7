package client

import (
	"context"

	"github.com/shopspring/decimal"

	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// EvmClient is one EVM wallet on one chain.
type EvmClient interface {
	ChainID() int64
	WalletAddress() string

	CoinBalance(ctx context.Context) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, asset model.Asset) (decimal.Decimal, error)

	SendCoin(ctx context.Context, to string, amount decimal.Decimal) (string, error)
	SendToken(ctx context.Context, asset model.Asset, to string, amount decimal.Decimal) (string, error)

	// TxSucceeded reports whether a transaction is mined and whether it
	// succeeded. found=false while still pending.
	TxSucceeded(ctx context.Context, hash string) (found, success bool, err error)
}

// L2BridgeClient spans the canonical bridge between an L1 wallet and one L2.
type L2BridgeClient interface {
	// L1 side preflight
	L1CoinBalance(ctx context.Context) (decimal.Decimal, error)
	L1TokenBalance(ctx context.Context, asset model.Asset) (decimal.Decimal, error)

	DepositCoin(ctx context.Context, amount decimal.Decimal) (string, error)
	DepositToken(ctx context.Context, l1Asset, l2Asset model.Asset, amount decimal.Decimal) (string, error)
	WithdrawCoin(ctx context.Context, amount decimal.Decimal) (string, error)
	WithdrawToken(ctx context.Context, l1Asset, l2Asset model.Asset, amount decimal.Decimal) (string, error)

	// deposit lands on L2, withdraw lands on L1
	CheckL2Completion(ctx context.Context, txHash string, asset model.Asset) (bool, error)
	CheckL1Completion(ctx context.Context, txHash string, asset model.Asset) (bool, error)
}

// BitcoinClient is one bitcoin-family node wallet.
type BitcoinClient interface {
	WalletAddress() string
	Balance(ctx context.Context) (decimal.Decimal, error)
	SendToAddress(ctx context.Context, address string, amount, feeRate decimal.Decimal) (string, error)
	IsTxConfirmed(ctx context.Context, txID string, minConfirmations int) (bool, error)

	// chain name as reported by the node, e.g. "main" or "testnet4"
	ChainName(ctx context.Context) (string, error)
}

// TransferChecker confirms an on-chain transfer identified by tx id on the
// given blockchain, used after exchange withdrawals.
type TransferChecker interface {
	IsTransferComplete(ctx context.Context, txID string, chain enum.Blockchain) (bool, error)
}

// FeeService recommends a bitcoin fee rate.
type FeeService interface {
	RecommendedFeeRate(ctx context.Context) (decimal.Decimal, error)
}

// LightningClient is a lightning node wallet used for off-chain transfers.
type LightningClient interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	PayToAddress(ctx context.Context, address string, amount decimal.Decimal) (string, error)
	IsPaymentSettled(ctx context.Context, paymentID string) (bool, error)
}

// BankClient is the fiat gateway used for bank transfers.
type BankClient interface {
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
	Transfer(ctx context.Context, currency string, amount decimal.Decimal, accountRef string) (string, error)
	IsTransferSettled(ctx context.Context, transferID string) (bool, error)
}
