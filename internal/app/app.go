// Package app assembles the engine: repositories, adapters, services, the
// admin API and the job schedule. Backend clients are passed in as
// interfaces; systems without a configured client are simply not
// registered, and rules referencing them are rejected at creation.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"treasury/internal/admin"
	"treasury/internal/adapter"
	"treasury/internal/balance"
	"treasury/internal/client"
	"treasury/internal/completion"
	"treasury/internal/liquidity"
	"treasury/internal/model/enum"
	"treasury/internal/ops"
	"treasury/internal/order"
	"treasury/internal/pipeline"
	"treasury/internal/repository"
	"treasury/internal/scheduler"
	"treasury/internal/verifier"
)

// exchange API budget shared by trading and withdrawal calls
const (
	_exchangeRatePerSecond = 5
	_exchangeBurst         = 10
)

// Clients bundles every backend integration. Nil fields disable the
// dependent adapters.
type Clients struct {
	Exchanges map[enum.System]client.ExchangeClient
	Pricing   client.PricingService
	Transfers client.TransferChecker
	Streams   map[enum.System]client.OrderStream

	Dex client.DexClient

	ArbitrumBridge client.L2BridgeClient
	OptimismBridge client.L2BridgeClient
	Arbitrum       client.EvmClient
	Optimism       client.EvmClient
	Ethereum       client.EvmClient
	Citrea         client.EvmClient

	Clementine client.ClementineClient
	Bitcoin    client.BitcoinClient
	Fees       client.FeeService
	Boltz      client.BoltzClient
	LayerZero  client.LayerZeroClient
	Lightning  client.LightningClient
	Bank       client.BankClient

	Notifier client.Notifier

	BalanceSources []balance.Source
	FiatBalances   balance.FiatSource
}

// Engine is the fully wired process.
type Engine struct {
	cfg   ops.Loaded
	repos *repository.Repos

	registry   *adapter.Registry
	balances   *balance.Aggregator
	verifier   *verifier.Service
	orders     *order.Service
	pipelines  *pipeline.Service
	completion *completion.Service
	admin      *admin.Server
}

func Build(cfg ops.Loaded, db *gorm.DB, clients Clients) *Engine {
	repos := repository.New(db)
	registry := adapter.NewRegistry(buildAdapters(cfg, repos, clients)...)

	balances := balance.New(repos, clients.FiatBalances, clients.BalanceSources...)
	completionSvc := completion.New(repos, registry, clients.Streams)
	orders := order.New(repos, registry, completionSvc, completionSvc)
	pipelines := pipeline.New(repos, clients.Notifier, orders)

	return &Engine{
		cfg:        cfg,
		repos:      repos,
		registry:   registry,
		balances:   balances,
		verifier:   verifier.New(repos, balances, clients.Notifier),
		orders:     orders,
		pipelines:  pipelines,
		completion: completionSvc,
		admin:      admin.NewServer(repos, admin.NewRuleManager(repos, registry)),
	}
}

func buildAdapters(cfg ops.Loaded, repos *repository.Repos, c Clients) []liquidity.Adapter {
	var adapters []liquidity.Adapter

	for system, exchange := range c.Exchanges {
		limited := client.NewRateLimitedExchange(exchange, _exchangeRatePerSecond, _exchangeBurst)
		switch system {
		case enum.SystemKraken:
			adapters = append(adapters, adapter.NewKraken(limited, c.Pricing, c.Transfers))
		case enum.SystemBinance:
			adapters = append(adapters, adapter.NewBinance(limited, c.Pricing, c.Transfers))
		case enum.SystemMexc:
			adapters = append(adapters, adapter.NewMexc(limited, c.Pricing, c.Transfers))
		case enum.SystemXT:
			adapters = append(adapters, adapter.NewXt(limited, c.Pricing, c.Transfers))
		default:
			logs.Warnf("no exchange adapter for system %s", system)
		}
	}

	if c.Dex != nil {
		adapters = append(adapters, adapter.NewDex(c.Dex))
	}
	if c.ArbitrumBridge != nil && c.Arbitrum != nil {
		adapters = append(adapters, adapter.NewArbitrumBridge(c.ArbitrumBridge, c.Arbitrum, repos.Asset))
	}
	if c.OptimismBridge != nil && c.Optimism != nil {
		adapters = append(adapters, adapter.NewOptimismBridge(c.OptimismBridge, c.Optimism, repos.Asset))
	}
	if c.Clementine != nil && c.Bitcoin != nil && c.Citrea != nil && c.Fees != nil {
		adapters = append(adapters, adapter.NewClementine(adapter.ClementineConfig{
			Network:            cfg.Bridge.Network,
			RecoveryAddress:    cfg.Bridge.RecoveryAddress,
			SignerAddress:      cfg.Bridge.SignerAddress,
			ExpectedCliVersion: cfg.Bridge.ExpectedCliVersion,
		}, c.Clementine, c.Bitcoin, c.Citrea, c.Fees, repos.Asset))
	}
	if c.Boltz != nil && c.Citrea != nil {
		adapters = append(adapters, adapter.NewBoltz(c.Boltz, c.Citrea, repos.Asset))
	}
	if c.LayerZero != nil && c.Ethereum != nil && c.Citrea != nil {
		adapters = append(adapters, adapter.NewLayerZero(c.LayerZero, c.Ethereum, c.Citrea, repos.Asset))
	}
	if c.Bitcoin != nil && c.Fees != nil {
		adapters = append(adapters, adapter.NewBitcoinWallet(c.Bitcoin, c.Fees))
	}
	if c.Ethereum != nil {
		adapters = append(adapters, adapter.NewEvmWallet(c.Ethereum))
	}
	if c.Lightning != nil {
		adapters = append(adapters, adapter.NewLightningWallet(c.Lightning))
	}
	if c.Bank != nil {
		adapters = append(adapters, adapter.NewBank(c.Bank))
	}

	return adapters
}

// Run starts the services and blocks until ctx ends, then shuts everything
// down.
func (e *Engine) Run(ctx context.Context) error {
	e.completion.Start(ctx)
	go e.pipelines.Run(ctx, e.completion.Events())

	if err := e.completion.FallbackSweep(ctx); err != nil {
		logs.Warnf("initial completion sweep: %v", err)
	}

	runner := scheduler.New()
	jobs := e.cfg.Jobs
	runner.Add(ctx, scheduler.Job{
		Name:     "verify",
		Interval: jobs.Verify,
		Timeout:  jobs.Verify,
		Run: func(ctx context.Context) error {
			if err := e.verifier.Tick(ctx); err != nil {
				return err
			}
			return e.pipelines.StartCreated(ctx)
		},
	})
	runner.Add(ctx, scheduler.Job{
		Name:     "orders",
		Interval: jobs.Orders,
		Timeout:  jobs.Orders,
		Run:      e.orders.ExecutePending,
	})
	runner.Add(ctx, scheduler.Job{
		Name:     "pipeline-sweep",
		Interval: jobs.PipelineSweep,
		Timeout:  jobs.PipelineSweep,
		Run:      e.pipelines.ProgressSweep,
	})
	runner.Add(ctx, scheduler.Job{
		Name:     "completion-sweep",
		Interval: jobs.CompletionSweep,
		Timeout:  jobs.CompletionSweep,
		Run:      e.completion.FallbackSweep,
	})
	runner.Add(ctx, scheduler.Job{
		Name:     "reactivation",
		Interval: jobs.Reactivation,
		Timeout:  jobs.Reactivation,
		Run:      e.verifier.ReactivationSweep,
	})

	srv := &http.Server{Addr: e.cfg.Server.Listen, Handler: e.admin.Router}
	go func() {
		logs.Infof("admin api listening on %s", e.cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("admin api: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Warnf("admin api shutdown: %v", err)
	}

	e.completion.Stop()
	runner.Wait()
	return nil
}
