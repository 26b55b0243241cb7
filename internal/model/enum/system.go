package enum

// System identifies one backend integration an action can run on.
type System string

const (
	SystemKraken          System = "kraken"
	SystemBinance         System = "binance"
	SystemMexc            System = "mexc"
	SystemXT              System = "xt"
	SystemDex             System = "dex"
	SystemArbitrumBridge  System = "arbitrum_bridge"
	SystemOptimismBridge  System = "optimism_bridge"
	SystemClementine      System = "clementine_bridge"
	SystemBoltz           System = "boltz"
	SystemLayerZero       System = "layerzero_bridge"
	SystemBitcoinWallet   System = "bitcoin_wallet"
	SystemEvmWallet       System = "evm_wallet"
	SystemLightningWallet System = "lightning_wallet"
	SystemBank            System = "bank"
)

func (s System) IsAvailable() bool {
	switch s {
	case SystemKraken, SystemBinance, SystemMexc, SystemXT, SystemDex,
		SystemArbitrumBridge, SystemOptimismBridge, SystemClementine,
		SystemBoltz, SystemLayerZero, SystemBitcoinWallet, SystemEvmWallet,
		SystemLightningWallet, SystemBank:
		return true
	default:
		return false
	}
}

// SupportsOrderStream reports whether the system pushes order updates
// over a live stream. Everything else is poll-only.
func (s System) SupportsOrderStream() bool {
	switch s {
	case SystemKraken, SystemBinance, SystemMexc, SystemXT:
		return true
	default:
		return false
	}
}

// Command is one operation an adapter knows how to run.
type Command string

const (
	CommandBuy      Command = "buy"
	CommandSell     Command = "sell"
	CommandWithdraw Command = "withdraw"
	CommandDeposit  Command = "deposit"
	CommandTransfer Command = "transfer"
)

func (c Command) IsAvailable() bool {
	switch c {
	case CommandBuy, CommandSell, CommandWithdraw, CommandDeposit, CommandTransfer:
		return true
	default:
		return false
	}
}

// IsTrade reports whether the command places an exchange trade,
// the only command class eligible for stream-based completion.
func (c Command) IsTrade() bool {
	return c == CommandBuy || c == CommandSell
}
