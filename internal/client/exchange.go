// Package client declares the contracts of the external collaborators the
// engine drives: exchanges, blockchain nodes, bridge control processes,
// pricing and notification. Concrete wire implementations live outside the
// orchestration core and are injected at startup.
package client

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeResult is one exchange order snapshot.
type TradeResult struct {
	ID     string
	Status TradeStatus
	// base amount filled so far
	Filled decimal.Decimal
	// quote amount spent/received so far
	Cost decimal.Decimal
}

type TradeStatus string

const (
	TradeStatusOpen     TradeStatus = "open"
	TradeStatusClosed   TradeStatus = "closed"
	TradeStatusCanceled TradeStatus = "canceled"
)

// TradeChangedError reports that the exchange replaced an order id, e.g.
// after a partial cancel/repost. The caller records the new id and keeps
// polling.
type TradeChangedError struct {
	NewID string
}

func (e *TradeChangedError) Error() string {
	return fmt.Sprintf("trade changed, new id: %s", e.NewID)
}

// Withdrawal is one exchange withdrawal record.
type Withdrawal struct {
	ID   string
	TxID string
}

// ExchangeClient is a ccxt-style exchange integration.
type ExchangeClient interface {
	Name() string

	// free balance of a coin on the exchange
	Balance(ctx context.Context, coin string) (decimal.Decimal, error)

	// last traded price of base quoted in quote
	Price(ctx context.Context, base, quote string) (decimal.Decimal, error)

	// Buy places a market buy of amount base using quote funds and returns
	// the exchange order id.
	Buy(ctx context.Context, base, quote string, amount decimal.Decimal, clientID string) (string, error)

	// Sell places a market sell of amount base into quote funds.
	Sell(ctx context.Context, base, quote string, amount decimal.Decimal, clientID string) (string, error)

	// FetchTrade loads one order. Returns *TradeChangedError when the
	// exchange restarted the order under a new id.
	FetchTrade(ctx context.Context, orderID, symbol string) (TradeResult, error)

	// Withdraw moves funds off the exchange and returns the withdrawal id.
	Withdraw(ctx context.Context, coin string, amount decimal.Decimal, address, addressKey, network string) (string, error)

	// FetchWithdrawal loads a withdrawal record, nil when not (yet) known.
	FetchWithdrawal(ctx context.Context, id, coin string) (*Withdrawal, error)
}

// OrderUpdate is one push notification about an exchange order.
type OrderUpdate struct {
	OrderID string
	Status  TradeStatus
	Filled  decimal.Decimal
	Cost    decimal.Decimal
}

// OrderStream delivers push updates for a single exchange order. Watch
// returns an unsubscribe func; the handler runs until a terminal update or
// unsubscribe.
type OrderStream interface {
	Watch(ctx context.Context, orderID, symbol string, handler func(OrderUpdate)) (func(), error)
}

// PricingService is the independent price source used to cross-check
// exchange quotes before trading.
type PricingService interface {
	Price(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Notifier delivers operational notifications. Delivery (mail, chat) is an
// external concern.
type Notifier interface {
	Send(ctx context.Context, subject string, lines []string) error
}
