package adapter

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

var (
	// headroom bought on top of the missing amount to absorb price drift
	// between quoting and fill
	tradeSafetyMargin = decimal.NewFromFloat(0.01)

	// maximum tolerated divergence between the exchange quote and the
	// independent pricing service
	maxPriceDivergence = decimal.NewFromFloat(0.05)
)

const (
	paramTradeAsset            = "tradeAsset"
	paramDestinationBlockchain = "destinationBlockchain"
	paramDestinationAddress    = "destinationAddress"
	paramDestinationAddressKey = "destinationAddressKey"
)

// tradeCorrelation aggregates every exchange order id spawned for one order.
// Exchanges occasionally restart a trade under a new id; all ids are kept so
// completion can sum filled amounts across the restarts.
type tradeCorrelation struct {
	V        int      `json:"v"`
	ClientID string   `json:"clientId"`
	OrderIDs []string `json:"orderIds"`
}

// ExchangeAdapter runs trades and withdrawals on one centralized exchange.
// Venue specifics reduce to the name and the blockchain->network table.
type ExchangeAdapter struct {
	system    enum.System
	exchange  client.ExchangeClient
	pricing   client.PricingService
	transfers client.TransferChecker

	// ccxt-style network name per destination blockchain
	networks map[enum.Blockchain]string

	// env lookup, swappable in tests
	env func(string) string
}

func NewExchangeAdapter(system enum.System, exchange client.ExchangeClient, pricing client.PricingService, transfers client.TransferChecker, networks map[enum.Blockchain]string) *ExchangeAdapter {
	return &ExchangeAdapter{
		system:    system,
		exchange:  exchange,
		pricing:   pricing,
		transfers: transfers,
		networks:  networks,
		env:       os.Getenv,
	}
}

func (a *ExchangeAdapter) System() enum.System { return a.system }

func (a *ExchangeAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandBuy, enum.CommandSell, enum.CommandWithdraw}
}

func (a *ExchangeAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	switch cmd {
	case enum.CommandBuy, enum.CommandSell:
		return params[paramTradeAsset] != ""
	case enum.CommandWithdraw:
		_, _, _, err := a.withdrawTarget(params)
		return err == nil
	default:
		return false
	}
}

func (a *ExchangeAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	asset, err := targetAssetName(order)
	if err != nil {
		return "", err
	}
	params, err := actionParams(order)
	if err != nil {
		return "", err
	}

	switch order.Action.Command {
	case enum.CommandBuy:
		return a.buy(ctx, order, asset, params[paramTradeAsset])
	case enum.CommandSell:
		return a.sell(ctx, order, asset, params[paramTradeAsset])
	case enum.CommandWithdraw:
		return a.withdraw(ctx, order, asset, params)
	default:
		return "", liquidity.Failed("%s does not support command %s", a.system, order.Action.Command)
	}
}

func (a *ExchangeAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	switch order.Action.Command {
	case enum.CommandBuy, enum.CommandSell:
		return a.checkTradeCompletion(ctx, order)
	case enum.CommandWithdraw:
		return a.checkWithdrawCompletion(ctx, order)
	default:
		return false, liquidity.Failed("%s does not support command %s", a.system, order.Action.Command)
	}
}

// --- COMMANDS --- //

func (a *ExchangeAdapter) buy(ctx context.Context, order *model.Order, base, quote string) (string, error) {
	held, err := a.exchange.Balance(ctx, base)
	if err != nil {
		return "", err
	}
	if held.GreaterThanOrEqual(order.MaxAmount) {
		return "", liquidity.NotNecessary("%s balance %s already covers %s", base, held, order.MaxAmount)
	}

	// buy the missing amount plus headroom for drift until fill
	amount := order.MaxAmount.Sub(held).Mul(decimal.NewFromInt(1).Add(tradeSafetyMargin))

	price, err := a.checkedPrice(ctx, base, quote)
	if err != nil {
		return "", err
	}

	cost := amount.Mul(price)
	quoteHeld, err := a.exchange.Balance(ctx, quote)
	if err != nil {
		return "", err
	}
	if quoteHeld.LessThan(cost) {
		return "", liquidity.NotProcessable("not enough %s on %s to buy %s %s %s",
			quote, a.system, amount, base, liquidity.Shortfall(quoteHeld, cost))
	}

	clientID := uuid.NewString()
	id, err := a.exchange.Buy(ctx, base, quote, amount, clientID)
	if err != nil {
		return "", err
	}

	order.SetInput(quote, cost)
	order.OutputAsset = base

	return encodeCorrelation(a.tradePrefix(), tradeCorrelation{V: 1, ClientID: clientID, OrderIDs: []string{id}})
}

func (a *ExchangeAdapter) sell(ctx context.Context, order *model.Order, base, quote string) (string, error) {
	held, err := a.exchange.Balance(ctx, base)
	if err != nil {
		return "", err
	}
	if held.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on %s to sell %s",
			base, a.system, liquidity.Shortfall(held, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, held)

	if _, err := a.checkedPrice(ctx, base, quote); err != nil {
		return "", err
	}

	clientID := uuid.NewString()
	id, err := a.exchange.Sell(ctx, base, quote, amount, clientID)
	if err != nil {
		return "", err
	}

	order.SetInput(base, amount)
	order.OutputAsset = quote

	return encodeCorrelation(a.tradePrefix(), tradeCorrelation{V: 1, ClientID: clientID, OrderIDs: []string{id}})
}

func (a *ExchangeAdapter) withdraw(ctx context.Context, order *model.Order, coin string, params map[string]string) (string, error) {
	address, key, network, err := a.withdrawTarget(params)
	if err != nil {
		return "", liquidity.Failed("invalid withdraw params for %s: %s", a.system, err)
	}

	available, err := a.exchange.Balance(ctx, coin)
	if err != nil {
		return "", err
	}
	if available.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on %s to withdraw %s",
			coin, a.system, liquidity.Shortfall(available, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, available)

	id, err := a.exchange.Withdraw(ctx, coin, amount, address, key, network)
	if err != nil {
		return "", err
	}

	order.SetInput(coin, amount)
	order.OutputAsset = coin

	return id, nil
}

// --- COMPLETION CHECKS --- //

func (a *ExchangeAdapter) checkTradeCompletion(ctx context.Context, order *model.Order) (bool, error) {
	var corr tradeCorrelation
	if err := decodeCorrelation(order.CorrelationID, a.tradePrefix(), &corr); err != nil {
		return false, liquidity.Failed("corrupt trade correlation for order %d: %s", order.ID, err)
	}

	symbol := tradeSymbol(order)

	var (
		totalFilled decimal.Decimal
		totalCost   decimal.Decimal
		last        *client.TradeResult
	)

	// sum across possibly-restarted sub-trades; a single failed fetch must
	// not abort the aggregate
	for _, id := range corr.OrderIDs {
		trade, err := a.exchange.FetchTrade(ctx, id, symbol)
		if err != nil {
			if changed, ok := asTradeChanged(err); ok {
				corr.OrderIDs = append(corr.OrderIDs, changed.NewID)
				encoded, encErr := encodeCorrelation(a.tradePrefix(), corr)
				if encErr != nil {
					return false, encErr
				}
				order.CorrelationID = encoded
				return false, nil
			}

			logs.Warnf("fetch trade %s on %s failed: %v", id, a.system, err)
			continue
		}

		totalFilled = totalFilled.Add(trade.Filled)
		totalCost = totalCost.Add(trade.Cost)
		if id == corr.OrderIDs[len(corr.OrderIDs)-1] {
			last = &trade
		}
	}

	if last == nil {
		return false, nil
	}

	switch last.Status {
	case client.TradeStatusClosed:
		if order.Action.Command == enum.CommandBuy {
			order.SetInput(order.InputAsset, totalCost)
			order.SetOutput(totalFilled)
		} else {
			order.SetInput(order.InputAsset, totalFilled)
			order.SetOutput(totalCost)
		}
		return true, nil
	case client.TradeStatusCanceled:
		return false, liquidity.Failed("trade canceled on %s", a.system)
	default:
		return false, nil
	}
}

func (a *ExchangeAdapter) checkWithdrawCompletion(ctx context.Context, order *model.Order) (bool, error) {
	coin, err := targetAssetName(order)
	if err != nil {
		return false, err
	}
	params, err := actionParams(order)
	if err != nil {
		return false, err
	}

	withdrawal, err := a.exchange.FetchWithdrawal(ctx, order.CorrelationID, coin)
	if err != nil {
		return false, err
	}
	if withdrawal == nil {
		logs.Infof("no withdrawal for id %s and asset %s at %s yet", order.CorrelationID, coin, a.system)
		return false, nil
	}

	chain := enum.Blockchain(params[paramDestinationBlockchain])

	complete, err := a.transfers.IsTransferComplete(ctx, withdrawal.TxID, chain)
	if err != nil {
		return false, err
	}
	if complete && order.OutputAmount == nil && order.InputAmount != nil {
		order.SetOutput(*order.InputAmount)
	}
	return complete, nil
}

// --- HELPERS --- //

func (a *ExchangeAdapter) checkedPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	quoted, err := a.exchange.Price(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}

	reference, err := a.pricing.Price(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}
	if reference.IsZero() {
		return decimal.Zero, liquidity.NotProcessable("no reference price for %s/%s", base, quote)
	}

	divergence := quoted.Sub(reference).Abs().Div(reference)
	if divergence.GreaterThan(maxPriceDivergence) {
		return decimal.Zero, liquidity.NotProcessable(
			"%s quote %s for %s/%s diverges %s from reference %s",
			a.system, quoted, base, quote, divergence, reference)
	}

	return quoted, nil
}

func (a *ExchangeAdapter) withdrawTarget(params map[string]string) (address, key, network string, err error) {
	address = a.env(params[paramDestinationAddress])
	key = a.env(params[paramDestinationAddressKey])
	network = a.networks[enum.Blockchain(params[paramDestinationBlockchain])]

	if address == "" || key == "" || network == "" {
		return "", "", "", liquidity.Failed("missing withdraw destination for %s", a.system)
	}
	return address, key, network, nil
}

func (a *ExchangeAdapter) tradePrefix() string {
	return string(a.system) + ":trade:"
}

// ActiveTradeID extracts the newest exchange order id from a trade order's
// correlation blob, for stream subscriptions. ok is false for non-trade
// correlations.
func ActiveTradeID(order *model.Order) (string, bool) {
	if order.Action == nil {
		return "", false
	}

	var corr tradeCorrelation
	prefix := string(order.Action.System) + ":trade:"
	if err := decodeCorrelation(order.CorrelationID, prefix, &corr); err != nil || len(corr.OrderIDs) == 0 {
		return "", false
	}
	return corr.OrderIDs[len(corr.OrderIDs)-1], true
}

// tradeSymbol builds the exchange pair symbol from the order legs.
// Buy: input=quote, output=base. Sell: input=base, output=quote.
func tradeSymbol(order *model.Order) string {
	if order.Action.Command == enum.CommandBuy {
		return order.OutputAsset + "/" + order.InputAsset
	}
	return order.InputAsset + "/" + order.OutputAsset
}

func asTradeChanged(err error) (*client.TradeChangedError, bool) {
	var changed *client.TradeChangedError
	if errors.As(err, &changed) {
		return changed, true
	}
	return nil, false
}
