package client

import (
	"context"

	"github.com/shopspring/decimal"

	"treasury/internal/model"
)

// VersionInfo describes a bridge control process build.
type VersionInfo struct {
	Version string
	Commit  string
}

// BridgeOpStatus is the remote bridge's view of one operation.
type BridgeOpStatus string

const (
	BridgeOpNotFound  BridgeOpStatus = "not_found"
	BridgeOpPending   BridgeOpStatus = "pending"
	BridgeOpCompleted BridgeOpStatus = "completed"
	BridgeOpFailed    BridgeOpStatus = "failed"
)

// BridgeOpResult pairs a status with an optional error detail.
type BridgeOpResult struct {
	Status       BridgeOpStatus
	ErrorMessage string
}

// WithdrawSignatures are the two signatures of the operator-escrow scheme.
type WithdrawSignatures struct {
	Optimistic   string
	OperatorPaid string
}

// ClementineClient drives the clementine bridge CLI.
type ClementineClient interface {
	Version(ctx context.Context) (VersionInfo, error)

	DepositStart(ctx context.Context, recoveryAddress, citreaAddress string) (depositAddress string, err error)
	DepositStatus(ctx context.Context, depositAddress string) (BridgeOpResult, error)

	WithdrawStart(ctx context.Context, signerAddress, destinationAddress string) error
	// WithdrawScan looks for the withdrawal UTXO; found=false while the
	// dust transaction is unconfirmed.
	WithdrawScan(ctx context.Context, signerAddress, destinationAddress string) (utxo string, found bool, err error)
	WithdrawSignatures(ctx context.Context, signerAddress, destinationAddress, utxo string) (WithdrawSignatures, error)
	// WithdrawSend submits the burn to the bridge contract. Irreversible.
	WithdrawSend(ctx context.Context, signerAddress, destinationAddress, utxo, optimisticSignature string) error
	WithdrawStatus(ctx context.Context, utxo string) (BridgeOpResult, error)
	WithdrawSendToOperators(ctx context.Context, signerAddress, destinationAddress, utxo, operatorPaidSignature string) error
}

// BoltzClient creates and tracks reverse swaps.
type BoltzClient interface {
	CreateReverseSwap(ctx context.Context, claimAddress string, invoiceAmountSats int64) (swapID string, err error)
	SwapStatus(ctx context.Context, swapID string) (status string, failureReason string, err error)
}

// Reverse swap terminal status sets as published by the swap provider.
var (
	ReverseSwapSuccessStatuses = []string{"invoice.settled", "transaction.claimed"}
	ReverseSwapFailedStatuses  = []string{"swap.expired", "invoice.expired", "transaction.failed", "transaction.refunded"}
)

// LayerZeroClient executes OFT bridge sends on the origin chain. Approval,
// fee quoting and the send call are the client's business; the adapter only
// supplies the parameters.
type LayerZeroClient interface {
	SendTokens(ctx context.Context, originAsset model.Asset, oftAdapterAddress, recipient string, amount decimal.Decimal) (txHash string, err error)
}

// DexClient is the platform's internal liquidity pool.
type DexClient interface {
	AvailableLiquidity(ctx context.Context, asset string) (decimal.Decimal, error)
	// Purchase buys amount of target spending source liquidity.
	Purchase(ctx context.Context, source, target string, amount decimal.Decimal) (tradeID string, err error)
	// Sell liquidates amount of source into target.
	Sell(ctx context.Context, source, target string, amount decimal.Decimal) (tradeID string, err error)
	// CheckTrade reports completion and the realized output amount.
	CheckTrade(ctx context.Context, tradeID string) (complete bool, output decimal.Decimal, err error)
}
