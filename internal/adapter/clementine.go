package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"treasury/internal/client"
	"treasury/internal/liquidity"
	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// The operator-escrow bridge works in fixed 10 BTC units. Withdrawals burn
// on the EVM side first, so every irreversible call is guarded by a remote
// status check before it runs.
var (
	clementineBridgeAmount = decimal.NewFromInt(10)
	clementineWithdrawDust = decimal.NewFromFloat(0.0000033) // 330 sats
)

const (
	clementineDepositPrefix  = "clementine:deposit:"
	clementineWithdrawPrefix = "clementine:withdraw:"

	// confirmations the bridge requires before crediting a deposit
	clementineDepositConfirmations = 6

	// wait this long for the optimistic path before paying operators
	clementineOptimisticTimeout = 12 * time.Hour
)

type clementineStep string

const (
	stepDustSent            clementineStep = "dust_sent"
	stepScanning            clementineStep = "scanning"
	stepSignaturesGenerated clementineStep = "signatures_generated"
	stepSentToBridge        clementineStep = "sent_to_bridge"
	stepWaitingOptimistic   clementineStep = "waiting_optimistic"
	stepSentToOperators     clementineStep = "sent_to_operators"
)

var clementineChains = map[enum.BridgeNetwork]struct {
	Bitcoin       enum.Blockchain
	Citrea        enum.Blockchain
	BtcChainName  string
	CitreaChainID int64
	BtcPrefixes   []string
}{
	enum.BridgeNetworkMainnet: {
		Bitcoin:       enum.BlockchainBitcoin,
		Citrea:        enum.BlockchainCitrea,
		BtcChainName:  "main",
		CitreaChainID: 4114,
		BtcPrefixes:   []string{"bc1", "1", "3"},
	},
	enum.BridgeNetworkTestnet4: {
		Bitcoin:       enum.BlockchainBitcoinTestnet4,
		Citrea:        enum.BlockchainCitreaTestnet,
		BtcChainName:  "testnet4",
		CitreaChainID: 5115,
		BtcPrefixes:   []string{"tb1", "bcrt1", "m", "n", "2"},
	},
}

type clementineDepositState struct {
	V              int    `json:"v"`
	DepositAddress string `json:"depositAddress"`
	BtcTxID        string `json:"btcTxId"`
}

type clementineWithdrawState struct {
	V                     int            `json:"v"`
	Step                  clementineStep `json:"step"`
	SignerAddress         string         `json:"signerAddress"`
	DestinationAddress    string         `json:"destinationAddress"`
	WithdrawalUtxo        string         `json:"withdrawalUtxo,omitempty"`
	OptimisticSignature   string         `json:"optimisticSignature,omitempty"`
	OperatorPaidSignature string         `json:"operatorPaidSignature,omitempty"`
	SentToBridgeAt        *time.Time     `json:"sentToBridgeAt,omitempty"`
}

// ClementineConfig is the static bridge deployment this instance talks to.
type ClementineConfig struct {
	Network enum.BridgeNetwork

	// taproot refund address, "dep"-prefixed
	RecoveryAddress string
	// withdrawal signer address, "wit"-prefixed
	SignerAddress string

	ExpectedCliVersion string
}

// ClementineAdapter bridges BTC to and from the citrea rollup in fixed
// 10 BTC units.
type ClementineAdapter struct {
	cfg     ClementineConfig
	bridge  client.ClementineClient
	bitcoin client.BitcoinClient
	citrea  client.EvmClient
	fees    client.FeeService
	assets  AssetSource

	mu        sync.Mutex
	validated bool

	now func() time.Time
}

func NewClementine(cfg ClementineConfig, bridge client.ClementineClient, bitcoin client.BitcoinClient, citrea client.EvmClient, fees client.FeeService, assets AssetSource) *ClementineAdapter {
	return &ClementineAdapter{
		cfg:     cfg,
		bridge:  bridge,
		bitcoin: bitcoin,
		citrea:  citrea,
		fees:    fees,
		assets:  assets,
		now:     time.Now,
	}
}

func (a *ClementineAdapter) System() enum.System { return enum.SystemClementine }

func (a *ClementineAdapter) Commands() []enum.Command {
	return []enum.Command{enum.CommandDeposit, enum.CommandWithdraw}
}

func (a *ClementineAdapter) ValidateParams(cmd enum.Command, _ map[string]string) bool {
	return cmd == enum.CommandDeposit || cmd == enum.CommandWithdraw
}

func (a *ClementineAdapter) ExecuteOrder(ctx context.Context, order *model.Order) (liquidity.CorrelationID, error) {
	asset, err := targetAsset(order)
	if err != nil {
		return "", err
	}

	switch order.Action.Command {
	case enum.CommandDeposit:
		return a.deposit(ctx, order, asset)
	case enum.CommandWithdraw:
		return a.withdraw(ctx, order, asset)
	default:
		return "", liquidity.Failed("clementine does not support command %s", order.Action.Command)
	}
}

func (a *ClementineAdapter) CheckCompletion(ctx context.Context, order *model.Order) (bool, error) {
	switch order.Action.Command {
	case enum.CommandDeposit:
		return a.checkDeposit(ctx, order)
	case enum.CommandWithdraw:
		return a.checkWithdraw(ctx, order)
	default:
		return false, liquidity.Failed("clementine does not support command %s", order.Action.Command)
	}
}

// --- COMMANDS --- //

// deposit moves 10 BTC from the bitcoin wallet into the bridge, yielding
// cBTC on citrea.
func (a *ClementineAdapter) deposit(ctx context.Context, order *model.Order, citreaAsset *model.Asset) (string, error) {
	chains := clementineChains[a.cfg.Network]

	if citreaAsset.Type != enum.AssetTypeCoin || citreaAsset.Blockchain != chains.Citrea {
		return "", liquidity.NotProcessable("clementine deposit only supports the native coin on %s", chains.Citrea)
	}

	if err := a.validateRecoveryAddress(); err != nil {
		return "", err
	}
	if err := a.validateNetworkConsistency(ctx); err != nil {
		return "", err
	}

	btcAsset, err := a.assets.Coin(ctx, chains.Bitcoin)
	if err != nil {
		return "", liquidity.Failed("no bitcoin asset configured: %s", err)
	}

	balance, err := a.bitcoin.Balance(ctx)
	if err != nil {
		return "", err
	}
	if balance.LessThan(clementineBridgeAmount) {
		return "", liquidity.NotProcessable("not enough BTC for the bridge %s",
			liquidity.Shortfall(balance, clementineBridgeAmount))
	}

	depositAddress, err := a.bridge.DepositStart(ctx, a.cfg.RecoveryAddress, a.citrea.WalletAddress())
	if err != nil {
		return "", err
	}
	logs.Infof("clementine deposit address %s, recovery %s", depositAddress, a.cfg.RecoveryAddress)

	order.SetInput(btcAsset.Name, clementineBridgeAmount)
	order.OutputAsset = citreaAsset.Name

	btcTxID, err := a.sendBtc(ctx, depositAddress, clementineBridgeAmount)
	if err != nil {
		return "", err
	}

	return encodeCorrelation(clementineDepositPrefix, clementineDepositState{
		V:              1,
		DepositAddress: depositAddress,
		BtcTxID:        btcTxID,
	})
}

// withdraw burns 10 cBTC on citrea and releases BTC to the bitcoin wallet.
// The burn itself happens later, inside the completion state machine, once
// the withdrawal UTXO exists and is signed.
func (a *ClementineAdapter) withdraw(ctx context.Context, order *model.Order, btcAsset *model.Asset) (string, error) {
	chains := clementineChains[a.cfg.Network]

	if btcAsset.Type != enum.AssetTypeCoin || btcAsset.Blockchain != chains.Bitcoin {
		return "", liquidity.NotProcessable("clementine withdraw only supports the native coin on %s", chains.Bitcoin)
	}

	if err := a.validateSignerAddress(); err != nil {
		return "", err
	}
	if err := a.validateNetworkConsistency(ctx); err != nil {
		return "", err
	}

	citreaAsset, err := a.assets.Coin(ctx, chains.Citrea)
	if err != nil {
		return "", liquidity.Failed("no citrea asset configured: %s", err)
	}

	balance, err := a.citrea.CoinBalance(ctx)
	if err != nil {
		return "", err
	}
	if balance.LessThan(clementineBridgeAmount) {
		return "", liquidity.NotProcessable("not enough cBTC for the bridge %s",
			liquidity.Shortfall(balance, clementineBridgeAmount))
	}

	destinationAddress := a.bitcoin.WalletAddress()

	if err := a.bridge.WithdrawStart(ctx, a.cfg.SignerAddress, destinationAddress); err != nil {
		return "", err
	}

	// dust to the signer's underlying address creates the withdrawal UTXO;
	// the node only accepts standard addresses, so the wit prefix is stripped
	signerBtcAddress := strings.TrimPrefix(a.cfg.SignerAddress, "wit")
	dustTxID, err := a.sendBtc(ctx, signerBtcAddress, clementineWithdrawDust)
	if err != nil {
		return "", err
	}
	logs.Infof("clementine withdraw dust sent to %s: %s", signerBtcAddress, dustTxID)

	order.SetInput(citreaAsset.Name, clementineBridgeAmount)
	order.OutputAsset = btcAsset.Name

	return encodeCorrelation(clementineWithdrawPrefix, clementineWithdrawState{
		V:                  1,
		Step:               stepDustSent,
		SignerAddress:      a.cfg.SignerAddress,
		DestinationAddress: destinationAddress,
	})
}

// --- COMPLETION CHECKS --- //

func (a *ClementineAdapter) checkDeposit(ctx context.Context, order *model.Order) (bool, error) {
	var state clementineDepositState
	if err := decodeCorrelation(order.CorrelationID, clementineDepositPrefix, &state); err != nil {
		return false, liquidity.Failed("corrupt deposit correlation for order %d: %s", order.ID, err)
	}

	confirmed, err := a.bitcoin.IsTxConfirmed(ctx, state.BtcTxID, clementineDepositConfirmations)
	if err != nil {
		return false, err
	}
	if !confirmed {
		return false, nil
	}

	result, err := a.bridge.DepositStatus(ctx, state.DepositAddress)
	if err != nil {
		return false, err
	}

	switch result.Status {
	case client.BridgeOpFailed:
		return false, liquidity.Failed("clementine deposit failed: %s", result.ErrorMessage)
	case client.BridgeOpCompleted:
		order.SetOutput(clementineBridgeAmount)
		return true, nil
	default:
		return false, nil
	}
}

func (a *ClementineAdapter) checkWithdraw(ctx context.Context, order *model.Order) (bool, error) {
	var state clementineWithdrawState
	if err := decodeCorrelation(order.CorrelationID, clementineWithdrawPrefix, &state); err != nil {
		return false, liquidity.Failed("corrupt withdraw correlation for order %d: %s", order.ID, err)
	}

	logs.Infof("clementine withdraw order %d at step %s", order.ID, state.Step)

	switch state.Step {
	case stepDustSent, stepScanning:
		return a.withdrawScanStep(ctx, order, &state)
	case stepSignaturesGenerated:
		return a.withdrawSendStep(ctx, order, &state)
	case stepSentToBridge, stepWaitingOptimistic:
		return a.withdrawWaitStep(ctx, order, &state)
	case stepSentToOperators:
		return a.withdrawFinalStep(ctx, order, &state)
	default:
		return false, liquidity.Failed("unknown withdrawal step %q", state.Step)
	}
}

func (a *ClementineAdapter) withdrawScanStep(ctx context.Context, order *model.Order, state *clementineWithdrawState) (bool, error) {
	utxo, found, err := a.bridge.WithdrawScan(ctx, state.SignerAddress, state.DestinationAddress)
	if err != nil {
		return false, err
	}
	if !found {
		state.Step = stepScanning
		return false, a.saveWithdrawState(order, state)
	}

	state.WithdrawalUtxo = utxo

	signatures, err := a.bridge.WithdrawSignatures(ctx, state.SignerAddress, state.DestinationAddress, utxo)
	if err != nil {
		return false, err
	}

	state.OptimisticSignature = signatures.Optimistic
	state.OperatorPaidSignature = signatures.OperatorPaid
	state.Step = stepSignaturesGenerated

	logs.Infof("clementine withdraw signatures generated for utxo %s", utxo)
	return false, a.saveWithdrawState(order, state)
}

func (a *ClementineAdapter) withdrawSendStep(ctx context.Context, order *model.Order, state *clementineWithdrawState) (bool, error) {
	// the burn is irreversible and the state blob may lag a crash, so only
	// submit when the bridge has never seen this UTXO
	existing, err := a.bridge.WithdrawStatus(ctx, state.WithdrawalUtxo)
	if err != nil {
		return false, err
	}
	if existing.Status != client.BridgeOpNotFound {
		logs.Warnf("clementine withdraw already submitted (status %s), skipping send", existing.Status)

		state.Step = stepSentToBridge
		if state.SentToBridgeAt == nil {
			// exact submission time is lost, the order's last update is the
			// closest bound we have
			at := order.UpdatedAt
			state.SentToBridgeAt = &at
		}
		return false, a.saveWithdrawState(order, state)
	}

	if err := a.bridge.WithdrawSend(ctx, state.SignerAddress, state.DestinationAddress, state.WithdrawalUtxo, state.OptimisticSignature); err != nil {
		return false, err
	}

	now := a.now()
	state.Step = stepSentToBridge
	state.SentToBridgeAt = &now
	return false, a.saveWithdrawState(order, state)
}

func (a *ClementineAdapter) withdrawWaitStep(ctx context.Context, order *model.Order, state *clementineWithdrawState) (bool, error) {
	done, err := a.withdrawStatusTerminal(ctx, order, state)
	if done || err != nil {
		return done, err
	}

	if state.Step == stepSentToBridge {
		state.Step = stepWaitingOptimistic
		return false, a.saveWithdrawState(order, state)
	}

	if state.SentToBridgeAt == nil {
		logs.Warnf("clementine withdraw order %d missing submission time, using last update", order.ID)
		at := order.UpdatedAt
		state.SentToBridgeAt = &at
		return false, a.saveWithdrawState(order, state)
	}

	if a.now().Sub(*state.SentToBridgeAt) > clementineOptimisticTimeout {
		logs.Infof("clementine withdraw order %d optimistic window elapsed, paying operators", order.ID)

		if err := a.bridge.WithdrawSendToOperators(ctx, state.SignerAddress, state.DestinationAddress, state.WithdrawalUtxo, state.OperatorPaidSignature); err != nil {
			return false, err
		}

		state.Step = stepSentToOperators
		return false, a.saveWithdrawState(order, state)
	}

	return false, nil
}

func (a *ClementineAdapter) withdrawFinalStep(ctx context.Context, order *model.Order, state *clementineWithdrawState) (bool, error) {
	return a.withdrawStatusTerminal(ctx, order, state)
}

// withdrawStatusTerminal resolves the bridge status into terminal outcomes;
// (false, nil) means still pending.
func (a *ClementineAdapter) withdrawStatusTerminal(ctx context.Context, order *model.Order, state *clementineWithdrawState) (bool, error) {
	result, err := a.bridge.WithdrawStatus(ctx, state.WithdrawalUtxo)
	if err != nil {
		return false, err
	}

	switch result.Status {
	case client.BridgeOpFailed:
		return false, liquidity.Failed("clementine withdrawal failed: %s", result.ErrorMessage)
	case client.BridgeOpCompleted:
		order.SetOutput(clementineBridgeAmount)
		return true, nil
	default:
		return false, nil
	}
}

func (a *ClementineAdapter) saveWithdrawState(order *model.Order, state *clementineWithdrawState) error {
	encoded, err := encodeCorrelation(clementineWithdrawPrefix, state)
	if err != nil {
		return err
	}
	order.CorrelationID = encoded
	return nil
}

// --- HELPERS --- //

func (a *ClementineAdapter) sendBtc(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	if !a.isValidBitcoinAddress(address) {
		return "", liquidity.Failed("invalid bitcoin address %q", address)
	}

	feeRate, err := a.fees.RecommendedFeeRate(ctx)
	if err != nil {
		return "", err
	}

	txID, err := a.bitcoin.SendToAddress(ctx, address, amount, feeRate)
	if err != nil {
		return "", err
	}
	logs.Infof("sent %s BTC to %s, txid %s", amount, address, txID)
	return txID, nil
}

func (a *ClementineAdapter) isValidBitcoinAddress(address string) bool {
	if len(address) < 26 || len(address) > 90 {
		return false
	}
	if !a.addressMatchesNetwork(address) {
		return false
	}
	// bech32 addresses must be lowercase
	for _, prefix := range []string{"bc1", "tb1", "bcrt1"} {
		if strings.HasPrefix(address, prefix) && address != strings.ToLower(address) {
			return false
		}
	}
	return true
}

func (a *ClementineAdapter) addressMatchesNetwork(address string) bool {
	for _, prefix := range clementineChains[a.cfg.Network].BtcPrefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}
	return false
}

func (a *ClementineAdapter) validateRecoveryAddress() error {
	if a.cfg.RecoveryAddress == "" {
		return liquidity.NotProcessable("clementine recovery address not configured")
	}
	if !strings.HasPrefix(a.cfg.RecoveryAddress, "dep") {
		return liquidity.NotProcessable("clementine recovery address must have dep prefix, got %q", a.cfg.RecoveryAddress)
	}
	if underlying := strings.TrimPrefix(a.cfg.RecoveryAddress, "dep"); !a.isValidBitcoinAddress(underlying) {
		return liquidity.NotProcessable("clementine recovery address has invalid underlying address %q", underlying)
	}
	return nil
}

func (a *ClementineAdapter) validateSignerAddress() error {
	if a.cfg.SignerAddress == "" {
		return liquidity.NotProcessable("clementine signer address not configured")
	}
	if !strings.HasPrefix(a.cfg.SignerAddress, "wit") {
		return liquidity.NotProcessable("clementine signer address must have wit prefix, got %q", a.cfg.SignerAddress)
	}
	if underlying := strings.TrimPrefix(a.cfg.SignerAddress, "wit"); !a.isValidBitcoinAddress(underlying) {
		return liquidity.NotProcessable("clementine signer address has invalid underlying address %q", underlying)
	}
	return nil
}

// validateNetworkConsistency checks once that the CLI build, both nodes and
// every configured address agree on mainnet vs testnet. A mismatch here
// would burn funds, so nothing runs until it passes.
func (a *ClementineAdapter) validateNetworkConsistency(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.validated {
		return nil
	}

	chains := clementineChains[a.cfg.Network]
	var problems []string

	if a.cfg.ExpectedCliVersion == "" {
		problems = append(problems, "expected CLI version not configured")
	} else if info, err := a.bridge.Version(ctx); err != nil {
		problems = append(problems, "CLI version check failed: "+err.Error())
	} else if info.Version != a.cfg.ExpectedCliVersion {
		problems = append(problems, "CLI version mismatch: expected "+a.cfg.ExpectedCliVersion+", got "+info.Version)
	}

	if chain, err := a.bitcoin.ChainName(ctx); err != nil {
		problems = append(problems, "bitcoin chain check failed: "+err.Error())
	} else if chain != chains.BtcChainName {
		problems = append(problems, "bitcoin node on "+chain+", expected "+chains.BtcChainName)
	}

	if a.citrea.ChainID() != chains.CitreaChainID {
		problems = append(problems, "citrea chain id mismatch")
	}

	if wallet := a.bitcoin.WalletAddress(); wallet != "" && !a.addressMatchesNetwork(wallet) {
		problems = append(problems, "bitcoin wallet address does not match network "+string(a.cfg.Network))
	}
	if a.cfg.RecoveryAddress != "" && !a.addressMatchesNetwork(strings.TrimPrefix(a.cfg.RecoveryAddress, "dep")) {
		problems = append(problems, "recovery address does not match network "+string(a.cfg.Network))
	}
	if a.cfg.SignerAddress != "" && !a.addressMatchesNetwork(strings.TrimPrefix(a.cfg.SignerAddress, "wit")) {
		problems = append(problems, "signer address does not match network "+string(a.cfg.Network))
	}

	if len(problems) > 0 {
		msg := "clementine network configuration mismatch: " + strings.Join(problems, "; ")
		logs.Errorf("%s", msg)
		return liquidity.NotProcessable("%s", msg)
	}

	a.validated = true
	return nil
}
