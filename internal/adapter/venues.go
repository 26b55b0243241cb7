package adapter

import (
	"treasury/internal/client"
	"treasury/internal/model/enum"
)

// ccxt network identifiers differ per venue for the same chain.

var krakenNetworks = map[enum.Blockchain]string{
	enum.BlockchainBitcoin:   "Bitcoin",
	enum.BlockchainLightning: "Lightning",
	enum.BlockchainEthereum:  "Ethereum",
	enum.BlockchainArbitrum:  "Arbitrum One",
	enum.BlockchainOptimism:  "Optimism",
}

var binanceNetworks = map[enum.Blockchain]string{
	enum.BlockchainBitcoin:  "BTC",
	enum.BlockchainEthereum: "ETH",
	enum.BlockchainArbitrum: "ARBITRUM",
	enum.BlockchainOptimism: "OPTIMISM",
}

var mexcNetworks = map[enum.Blockchain]string{
	enum.BlockchainBitcoin:  "BTC",
	enum.BlockchainEthereum: "ERC20",
	enum.BlockchainArbitrum: "ARB",
	enum.BlockchainOptimism: "OP",
}

var xtNetworks = map[enum.Blockchain]string{
	enum.BlockchainBitcoin:  "Bitcoin",
	enum.BlockchainEthereum: "Ethereum",
	enum.BlockchainArbitrum: "Arbitrum",
	enum.BlockchainOptimism: "Optimism",
}

func NewKraken(exchange client.ExchangeClient, pricing client.PricingService, transfers client.TransferChecker) *ExchangeAdapter {
	return NewExchangeAdapter(enum.SystemKraken, exchange, pricing, transfers, krakenNetworks)
}

func NewBinance(exchange client.ExchangeClient, pricing client.PricingService, transfers client.TransferChecker) *ExchangeAdapter {
	return NewExchangeAdapter(enum.SystemBinance, exchange, pricing, transfers, binanceNetworks)
}

func NewMexc(exchange client.ExchangeClient, pricing client.PricingService, transfers client.TransferChecker) *ExchangeAdapter {
	return NewExchangeAdapter(enum.SystemMexc, exchange, pricing, transfers, mexcNetworks)
}

func NewXt(exchange client.ExchangeClient, pricing client.PricingService, transfers client.TransferChecker) *ExchangeAdapter {
	return NewExchangeAdapter(enum.SystemXT, exchange, pricing, transfers, xtNetworks)
}
