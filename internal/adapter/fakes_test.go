package adapter

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"treasury/internal/client"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/pkg/exception"
)

func testOrder(cmd enum.Command, params map[string]string, minAmount, maxAmount string, target *model.Asset) *model.Order {
	raw := ""
	if params != nil {
		b, _ := sonic.Marshal(params)
		raw = string(b)
	}

	o := &model.Order{
		Status:    enum.OrderStatusCreated,
		MinAmount: decimal.RequireFromString(minAmount),
		MaxAmount: decimal.RequireFromString(maxAmount),
		Action:    &model.Action{Command: cmd, Params: raw},
		Pipeline:  &model.Pipeline{Rule: &model.Rule{TargetAsset: target}},
	}
	o.ID = 7
	return o
}

func btcAsset() *model.Asset {
	return &model.Asset{Name: "BTC", Type: enum.AssetTypeCoin, Blockchain: enum.BlockchainBitcoin}
}

func cbtcAsset() *model.Asset {
	return &model.Asset{Name: "cBTC", Type: enum.AssetTypeCoin, Blockchain: enum.BlockchainCitrea}
}

type fakeExchange struct {
	balances    map[string]decimal.Decimal
	price       decimal.Decimal
	trades      map[string]client.TradeResult
	tradeErrs   map[string]error
	withdrawals map[string]*client.Withdrawal

	lastTradeAmount decimal.Decimal
	lastWithdrawal  struct {
		Amount  decimal.Decimal
		Address string
		Network string
	}
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) Balance(_ context.Context, coin string) (decimal.Decimal, error) {
	return f.balances[coin], nil
}

func (f *fakeExchange) Price(context.Context, string, string) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeExchange) Buy(_ context.Context, _, _ string, amount decimal.Decimal, _ string) (string, error) {
	f.lastTradeAmount = amount
	return "trade-1", nil
}

func (f *fakeExchange) Sell(_ context.Context, _, _ string, amount decimal.Decimal, _ string) (string, error) {
	f.lastTradeAmount = amount
	return "trade-1", nil
}

func (f *fakeExchange) FetchTrade(_ context.Context, orderID, _ string) (client.TradeResult, error) {
	if err, ok := f.tradeErrs[orderID]; ok {
		return client.TradeResult{}, err
	}
	trade, ok := f.trades[orderID]
	if !ok {
		return client.TradeResult{}, exception.ErrNotFound
	}
	return trade, nil
}

func (f *fakeExchange) Withdraw(_ context.Context, _ string, amount decimal.Decimal, address, _, network string) (string, error) {
	f.lastWithdrawal.Amount = amount
	f.lastWithdrawal.Address = address
	f.lastWithdrawal.Network = network
	return "wd-1", nil
}

func (f *fakeExchange) FetchWithdrawal(_ context.Context, id, _ string) (*client.Withdrawal, error) {
	return f.withdrawals[id], nil
}

type fakePricing struct {
	price decimal.Decimal
}

func (f *fakePricing) Price(context.Context, string, string) (decimal.Decimal, error) {
	return f.price, nil
}

type fakeTransfers struct {
	complete bool
}

func (f *fakeTransfers) IsTransferComplete(context.Context, string, enum.Blockchain) (bool, error) {
	return f.complete, nil
}

type fakeAssets struct {
	coins  map[enum.Blockchain]*model.Asset
	byName map[string]*model.Asset
}

func (f *fakeAssets) Coin(_ context.Context, chain enum.Blockchain) (*model.Asset, error) {
	if a, ok := f.coins[chain]; ok {
		return a, nil
	}
	return nil, exception.ErrNotFound
}

func (f *fakeAssets) ByQuery(_ context.Context, name string, _ enum.AssetType, _ enum.Blockchain) (*model.Asset, error) {
	if a, ok := f.byName[name]; ok {
		return a, nil
	}
	return nil, exception.ErrNotFound
}

type fakeEvm struct {
	chainID      int64
	address      string
	coinBalance  decimal.Decimal
	tokenBalance decimal.Decimal

	txFound   bool
	txSuccess bool
}

func (f *fakeEvm) ChainID() int64        { return f.chainID }
func (f *fakeEvm) WalletAddress() string { return f.address }

func (f *fakeEvm) CoinBalance(context.Context) (decimal.Decimal, error) {
	return f.coinBalance, nil
}

func (f *fakeEvm) TokenBalance(context.Context, model.Asset) (decimal.Decimal, error) {
	return f.tokenBalance, nil
}

func (f *fakeEvm) SendCoin(context.Context, string, decimal.Decimal) (string, error) {
	return "0xtx", nil
}

func (f *fakeEvm) SendToken(context.Context, model.Asset, string, decimal.Decimal) (string, error) {
	return "0xtx", nil
}

func (f *fakeEvm) TxSucceeded(context.Context, string) (bool, bool, error) {
	return f.txFound, f.txSuccess, nil
}

type fakeBitcoin struct {
	address   string
	balance   decimal.Decimal
	chain     string
	confirmed bool

	sent []struct {
		Address string
		Amount  decimal.Decimal
	}
}

func (f *fakeBitcoin) WalletAddress() string { return f.address }

func (f *fakeBitcoin) Balance(context.Context) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeBitcoin) SendToAddress(_ context.Context, address string, amount, _ decimal.Decimal) (string, error) {
	f.sent = append(f.sent, struct {
		Address string
		Amount  decimal.Decimal
	}{address, amount})
	return "btctx-1", nil
}

func (f *fakeBitcoin) IsTxConfirmed(context.Context, string, int) (bool, error) {
	return f.confirmed, nil
}

func (f *fakeBitcoin) ChainName(context.Context) (string, error) {
	return f.chain, nil
}

type fakeFees struct{}

func (fakeFees) RecommendedFeeRate(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(2), nil
}

type fakeClementine struct {
	version client.VersionInfo

	scanUtxo  string
	scanFound bool

	signatures client.WithdrawSignatures

	withdrawResult client.BridgeOpResult
	depositResult  client.BridgeOpResult

	sends         int
	operatorSends int
	started       int
}

func (f *fakeClementine) Version(context.Context) (client.VersionInfo, error) {
	return f.version, nil
}

func (f *fakeClementine) DepositStart(context.Context, string, string) (string, error) {
	return "deposit-addr", nil
}

func (f *fakeClementine) DepositStatus(context.Context, string) (client.BridgeOpResult, error) {
	return f.depositResult, nil
}

func (f *fakeClementine) WithdrawStart(context.Context, string, string) error {
	f.started++
	return nil
}

func (f *fakeClementine) WithdrawScan(context.Context, string, string) (string, bool, error) {
	return f.scanUtxo, f.scanFound, nil
}

func (f *fakeClementine) WithdrawSignatures(context.Context, string, string, string) (client.WithdrawSignatures, error) {
	return f.signatures, nil
}

func (f *fakeClementine) WithdrawSend(context.Context, string, string, string, string) error {
	f.sends++
	return nil
}

func (f *fakeClementine) WithdrawStatus(context.Context, string) (client.BridgeOpResult, error) {
	return f.withdrawResult, nil
}

func (f *fakeClementine) WithdrawSendToOperators(context.Context, string, string, string, string) error {
	f.operatorSends++
	return nil
}
