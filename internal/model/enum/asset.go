package enum

// AssetType distinguishes native coins from contract tokens.
type AssetType string

const (
	AssetTypeCoin  AssetType = "coin"
	AssetTypeToken AssetType = "token"
)

// Blockchain identifies the network an asset lives on.
type Blockchain string

const (
	BlockchainBitcoin         Blockchain = "bitcoin"
	BlockchainBitcoinTestnet4 Blockchain = "bitcoin_testnet4"
	BlockchainLightning       Blockchain = "lightning"
	BlockchainEthereum        Blockchain = "ethereum"
	BlockchainArbitrum        Blockchain = "arbitrum"
	BlockchainOptimism        Blockchain = "optimism"
	BlockchainCitrea          Blockchain = "citrea"
	BlockchainCitreaTestnet   Blockchain = "citrea_testnet"
)

// BridgeNetwork selects mainnet or testnet operation for the
// bitcoin-side bridge integrations.
type BridgeNetwork string

const (
	BridgeNetworkMainnet  BridgeNetwork = "mainnet"
	BridgeNetworkTestnet4 BridgeNetwork = "testnet4"
)

func (n BridgeNetwork) IsAvailable() bool {
	return n == BridgeNetworkMainnet || n == BridgeNetworkTestnet4
}
