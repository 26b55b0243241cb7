package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"

	"treasury/internal/app"
	"treasury/internal/client"
	"treasury/internal/model"
	"treasury/internal/model/enum"
	"treasury/internal/ops"
	"treasury/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the engine config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logs.Infof("no .env file, using process environment")
	}

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Profiling.Enabled {
		if _, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "treasury",
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		}); err != nil {
			logs.Warnf("pyroscope: %v", err)
		}
	}

	db, err := conn.New(cfg.Database)
	if err != nil {
		logs.Errorf("connect database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(
		&model.Asset{},
		&model.Fiat{},
		&model.Rule{},
		&model.Action{},
		&model.Pipeline{},
		&model.Order{},
		&model.Balance{},
	); err != nil {
		logs.Errorf("migrate: %v", err)
		os.Exit(1)
	}

	clients := app.Clients{}
	if cfg.Stream.URL != "" {
		stream := client.NewWsOrderStream(ctx, cfg.Stream.URL)
		if err := stream.Start(ctx); err != nil {
			logs.Errorf("start order stream: %v", err)
			os.Exit(1)
		}
		defer stream.Close()

		clients.Streams = map[enum.System]client.OrderStream{
			enum.SystemKraken:  stream,
			enum.SystemBinance: stream,
			enum.SystemMexc:    stream,
			enum.SystemXT:      stream,
		}
	}

	engine := app.Build(cfg, db.DB(), clients)

	logs.Infof("treasury engine starting")
	if err := engine.Run(ctx); err != nil {
		logs.Errorf("engine: %v", err)
		os.Exit(1)
	}
	logs.Infof("treasury engine stopped")
}
