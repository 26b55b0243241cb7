package client

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// RateLimitedExchange wraps an ExchangeClient with a request budget so
// scheduler bursts (fallback sweeps hitting many orders at once) stay inside
// the venue's API limits.
type RateLimitedExchange struct {
	inner   ExchangeClient
	limiter *rate.Limiter
}

func NewRateLimitedExchange(inner ExchangeClient, rps float64, burst int) *RateLimitedExchange {
	return &RateLimitedExchange{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *RateLimitedExchange) Name() string { return c.inner.Name() }

func (c *RateLimitedExchange) Balance(ctx context.Context, coin string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	return c.inner.Balance(ctx, coin)
}

func (c *RateLimitedExchange) Price(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	return c.inner.Price(ctx, base, quote)
}

func (c *RateLimitedExchange) Buy(ctx context.Context, base, quote string, amount decimal.Decimal, clientID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Buy(ctx, base, quote, amount, clientID)
}

func (c *RateLimitedExchange) Sell(ctx context.Context, base, quote string, amount decimal.Decimal, clientID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Sell(ctx, base, quote, amount, clientID)
}

func (c *RateLimitedExchange) FetchTrade(ctx context.Context, orderID, symbol string) (TradeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return TradeResult{}, err
	}
	return c.inner.FetchTrade(ctx, orderID, symbol)
}

func (c *RateLimitedExchange) Withdraw(ctx context.Context, coin string, amount decimal.Decimal, address, addressKey, network string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Withdraw(ctx, coin, amount, address, addressKey, network)
}

func (c *RateLimitedExchange) FetchWithdrawal(ctx context.Context, id, coin string) (*Withdrawal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.FetchWithdrawal(ctx, id, coin)
}

var _ ExchangeClient = (*RateLimitedExchange)(nil)
