package adapter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model/enum"
)

func newTestExchangeAdapter(exchange *fakeExchange, pricing *fakePricing, transfers *fakeTransfers, env map[string]string) *ExchangeAdapter {
	a := NewKraken(exchange, pricing, transfers)
	a.env = func(key string) string { return env[key] }
	return a
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuyNotNecessaryWhenBalanceCoversMax(t *testing.T) {
	exchange := &fakeExchange{balances: map[string]decimal.Decimal{"BTC": d("5")}, price: d("100")}
	a := newTestExchangeAdapter(exchange, &fakePricing{price: d("100")}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())

	_, err := a.ExecuteOrder(t.Context(), order)
	require.Error(t, err)
	assert.True(t, liquidity.IsNotNecessary(err))
}

func TestBuyAddsSafetyMargin(t *testing.T) {
	exchange := &fakeExchange{
		balances: map[string]decimal.Decimal{"BTC": d("2"), "USDT": d("1000000")},
		price:    d("100"),
	}
	a := newTestExchangeAdapter(exchange, &fakePricing{price: d("100")}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())

	correlationID, err := a.ExecuteOrder(t.Context(), order)
	require.NoError(t, err)

	// missing 3 BTC plus 1% headroom
	assert.True(t, exchange.lastTradeAmount.Equal(d("3.03")), "got %s", exchange.lastTradeAmount)
	assert.Equal(t, "USDT", order.InputAsset)
	assert.Equal(t, "BTC", order.OutputAsset)

	var corr tradeCorrelation
	require.NoError(t, decodeCorrelation(correlationID, a.tradePrefix(), &corr))
	assert.Equal(t, []string{"trade-1"}, corr.OrderIDs)
	assert.NotEmpty(t, corr.ClientID)
}

func TestBuyRejectsDivergentQuote(t *testing.T) {
	exchange := &fakeExchange{balances: map[string]decimal.Decimal{"USDT": d("1000000")}, price: d("110")}
	a := newTestExchangeAdapter(exchange, &fakePricing{price: d("100")}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())

	_, err := a.ExecuteOrder(t.Context(), order)
	require.Error(t, err)
	assert.True(t, liquidity.IsNotProcessable(err))
}

func TestBuyQuoteShortfallIsParseable(t *testing.T) {
	exchange := &fakeExchange{
		balances: map[string]decimal.Decimal{"BTC": d("0"), "USDT": d("100")},
		price:    d("100"),
	}
	a := newTestExchangeAdapter(exchange, &fakePricing{price: d("100")}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())

	_, err := a.ExecuteOrder(t.Context(), order)
	require.Error(t, err)
	require.True(t, liquidity.IsNotProcessable(err))

	balance, requested, ok := liquidity.ParseShortfall(err.Error())
	require.True(t, ok)
	assert.True(t, balance.Equal(d("100")))
	assert.True(t, requested.Equal(d("505")))
}

func TestSellShortfall(t *testing.T) {
	exchange := &fakeExchange{balances: map[string]decimal.Decimal{"BTC": d("0.5")}, price: d("100")}
	a := newTestExchangeAdapter(exchange, &fakePricing{price: d("100")}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandSell, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())

	_, err := a.ExecuteOrder(t.Context(), order)
	require.Error(t, err)
	assert.True(t, liquidity.IsNotProcessable(err))
}

func TestSellBoundsToHeldBalance(t *testing.T) {
	exchange := &fakeExchange{balances: map[string]decimal.Decimal{"BTC": d("3")}, price: d("100")}
	a := newTestExchangeAdapter(exchange, &fakePricing{price: d("100")}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandSell, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())

	_, err := a.ExecuteOrder(t.Context(), order)
	require.NoError(t, err)
	assert.True(t, exchange.lastTradeAmount.Equal(d("3")))
}

func TestWithdrawResolvesDestinationFromEnv(t *testing.T) {
	exchange := &fakeExchange{balances: map[string]decimal.Decimal{"BTC": d("10")}}
	env := map[string]string{"BTC_ADDR": "bc1qtest", "BTC_KEY": "wallet-main"}
	a := newTestExchangeAdapter(exchange, &fakePricing{}, &fakeTransfers{}, env)

	order := testOrder(enum.CommandWithdraw, map[string]string{
		"destinationBlockchain": "bitcoin",
		"destinationAddress":    "BTC_ADDR",
		"destinationAddressKey": "BTC_KEY",
	}, "1", "5", btcAsset())

	correlationID, err := a.ExecuteOrder(t.Context(), order)
	require.NoError(t, err)
	assert.Equal(t, "wd-1", correlationID)
	assert.Equal(t, "bc1qtest", exchange.lastWithdrawal.Address)
	assert.Equal(t, "Bitcoin", exchange.lastWithdrawal.Network)
	assert.True(t, exchange.lastWithdrawal.Amount.Equal(d("5")))
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	exchange := &fakeExchange{balances: map[string]decimal.Decimal{"BTC": d("0.2")}}
	env := map[string]string{"BTC_ADDR": "bc1qtest", "BTC_KEY": "wallet-main"}
	a := newTestExchangeAdapter(exchange, &fakePricing{}, &fakeTransfers{}, env)

	order := testOrder(enum.CommandWithdraw, map[string]string{
		"destinationBlockchain": "bitcoin",
		"destinationAddress":    "BTC_ADDR",
		"destinationAddressKey": "BTC_KEY",
	}, "1", "5", btcAsset())

	_, err := a.ExecuteOrder(t.Context(), order)
	require.Error(t, err)
	assert.True(t, liquidity.IsNotProcessable(err))
}

func TestTradeCompletionRecordsRestartedTrade(t *testing.T) {
	exchange := &fakeExchange{
		tradeErrs: map[string]error{"trade-1": &client.TradeChangedError{NewID: "trade-2"}},
		trades:    map[string]client.TradeResult{},
	}
	a := newTestExchangeAdapter(exchange, &fakePricing{}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())
	order.InputAsset = "USDT"
	order.OutputAsset = "BTC"

	correlationID, err := encodeCorrelation(a.tradePrefix(), tradeCorrelation{V: 1, ClientID: "c", OrderIDs: []string{"trade-1"}})
	require.NoError(t, err)
	order.CorrelationID = correlationID

	complete, err := a.CheckCompletion(t.Context(), order)
	require.NoError(t, err)
	assert.False(t, complete)

	var corr tradeCorrelation
	require.NoError(t, decodeCorrelation(order.CorrelationID, a.tradePrefix(), &corr))
	assert.Equal(t, []string{"trade-1", "trade-2"}, corr.OrderIDs)
}

func TestTradeCompletionAggregatesSubTrades(t *testing.T) {
	exchange := &fakeExchange{
		trades: map[string]client.TradeResult{
			"trade-1": {ID: "trade-1", Status: client.TradeStatusCanceled, Filled: d("1"), Cost: d("100")},
			"trade-2": {ID: "trade-2", Status: client.TradeStatusClosed, Filled: d("2"), Cost: d("200")},
		},
	}
	a := newTestExchangeAdapter(exchange, &fakePricing{}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())
	order.InputAsset = "USDT"
	order.OutputAsset = "BTC"

	correlationID, err := encodeCorrelation(a.tradePrefix(), tradeCorrelation{V: 1, ClientID: "c", OrderIDs: []string{"trade-1", "trade-2"}})
	require.NoError(t, err)
	order.CorrelationID = correlationID

	complete, err := a.CheckCompletion(t.Context(), order)
	require.NoError(t, err)
	require.True(t, complete)

	require.NotNil(t, order.OutputAmount)
	assert.True(t, order.OutputAmount.Equal(d("3")), "filled across both sub-trades")
	require.NotNil(t, order.InputAmount)
	assert.True(t, order.InputAmount.Equal(d("300")))
}

func TestTradeCompletionCanceledFails(t *testing.T) {
	exchange := &fakeExchange{
		trades: map[string]client.TradeResult{
			"trade-1": {ID: "trade-1", Status: client.TradeStatusCanceled},
		},
	}
	a := newTestExchangeAdapter(exchange, &fakePricing{}, &fakeTransfers{}, nil)

	order := testOrder(enum.CommandSell, map[string]string{"tradeAsset": "USDT"}, "1", "5", btcAsset())
	order.InputAsset = "BTC"
	order.OutputAsset = "USDT"

	correlationID, err := encodeCorrelation(a.tradePrefix(), tradeCorrelation{V: 1, ClientID: "c", OrderIDs: []string{"trade-1"}})
	require.NoError(t, err)
	order.CorrelationID = correlationID

	_, err = a.CheckCompletion(t.Context(), order)
	require.Error(t, err)
	assert.True(t, liquidity.IsFailed(err))
}

func TestValidateParams(t *testing.T) {
	env := map[string]string{"ADDR": "bc1qtest", "KEY": "k"}
	a := newTestExchangeAdapter(&fakeExchange{}, &fakePricing{}, &fakeTransfers{}, env)

	testCases := []struct {
		desc   string
		cmd    enum.Command
		params map[string]string
		ok     bool
	}{
		{"buy with trade asset", enum.CommandBuy, map[string]string{"tradeAsset": "USDT"}, true},
		{"buy without trade asset", enum.CommandBuy, map[string]string{}, false},
		{"withdraw complete", enum.CommandWithdraw, map[string]string{
			"destinationBlockchain": "bitcoin", "destinationAddress": "ADDR", "destinationAddressKey": "KEY",
		}, true},
		{"withdraw unknown chain", enum.CommandWithdraw, map[string]string{
			"destinationBlockchain": "solana", "destinationAddress": "ADDR", "destinationAddressKey": "KEY",
		}, false},
		{"withdraw unresolvable address", enum.CommandWithdraw, map[string]string{
			"destinationBlockchain": "bitcoin", "destinationAddress": "MISSING", "destinationAddressKey": "KEY",
		}, false},
		{"deposit unsupported", enum.CommandDeposit, map[string]string{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.ok, a.ValidateParams(tc.cmd, tc.params))
		})
	}
}

func TestActiveTradeID(t *testing.T) {
	a := NewKraken(&fakeExchange{}, &fakePricing{}, &fakeTransfers{})

	order := testOrder(enum.CommandBuy, nil, "1", "5", btcAsset())
	order.Action.System = enum.SystemKraken

	correlationID, err := encodeCorrelation(a.tradePrefix(), tradeCorrelation{V: 1, ClientID: "c", OrderIDs: []string{"trade-1", "trade-2"}})
	require.NoError(t, err)
	order.CorrelationID = correlationID

	id, ok := ActiveTradeID(order)
	require.True(t, ok)
	assert.Equal(t, "trade-2", id)

	order.CorrelationID = "kraken:withdraw:xxxx"
	_, ok = ActiveTradeID(order)
	assert.False(t, ok)

	order.Action = nil
	_, ok = ActiveTradeID(order)
	assert.False(t, ok)
}
