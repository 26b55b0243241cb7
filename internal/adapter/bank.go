package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

const paramAccountRef = "accountRef"

// BankAdapter moves fiat between own bank accounts. The only fiat-capable
// system; every other adapter requires an asset target.
type BankAdapter struct {
	bank client.BankClient
}

func NewBank(bank client.BankClient) *BankAdapter {
	return &BankAdapter{bank: bank}
}

func (a *BankAdapter) System() enum.System { return enum.SystemBank }

func (a *BankAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandTransfer}
}

func (a *BankAdapter) ValidateParams(cmd enum.Command, params map[string]string) bool {
	return cmd == enum.CommandTransfer && params[paramAccountRef] != ""
}

func (a *BankAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	currency, err := targetFiatName(order)
	if err != nil {
		return "", err
	}
	params, err := actionParams(order)
	if err != nil {
		return "", err
	}

	accountRef := params[paramAccountRef]
	if accountRef == "" {
		return "", liquidity.Failed("bank transfer account not configured")
	}

	balance, err := a.bank.Balance(ctx, currency)
	if err != nil {
		return "", err
	}
	if balance.LessThan(order.MinAmount) {
		return "", liquidity.NotProcessable("not enough %s on bank account %s",
			currency, liquidity.Shortfall(balance, order.MaxAmount))
	}

	amount := decimal.Min(order.MaxAmount, balance)

	transferID, err := a.bank.Transfer(ctx, currency, amount, accountRef)
	if err != nil {
		return "", err
	}

	order.SetInput(currency, amount)
	order.OutputAsset = currency
	return transferID, nil
}

func (a *BankAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	settled, err := a.bank.IsTransferSettled(ctx, order.CorrelationID)
	if err != nil {
		return false, err
	}
	if settled && order.OutputAmount == nil && order.InputAmount != nil {
		order.SetOutput(*order.InputAmount)
	}
	return settled, nil
}
