// Package ops loads the engine configuration: a JSON file for structure,
// environment variables for secrets.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"treasury/internal/model/enum"
	"treasury/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Jobs      JobsConfig      `json:"jobs"`
	Stream    StreamConfig    `json:"stream"`
	Bridge    BridgeConfig    `json:"bridge"`
	Profiling ProfilingConfig `json:"profiling"`
}

// DatabaseConfig describes the postgres connection. The password always
// comes from the environment.
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Database     string `json:"database"`
	SSLMode      string `json:"sslMode"`
	MaxOpenConns int    `json:"maxOpenConns"`
	MaxIdleConns int    `json:"maxIdleConns"`
}

// ServerConfig describes the admin HTTP listener.
type ServerConfig struct {
	Listen string `json:"listen"`
}

// JobsConfig holds scheduler intervals in seconds; zero means default.
type JobsConfig struct {
	VerifySeconds          int `json:"verifySeconds"`
	OrderSeconds           int `json:"orderSeconds"`
	PipelineSweepSeconds   int `json:"pipelineSweepSeconds"`
	CompletionSweepSeconds int `json:"completionSweepSeconds"`
	ReactivationSeconds    int `json:"reactivationSeconds"`
}

// StreamConfig points at the order update stream gateway.
type StreamConfig struct {
	URL string `json:"url"`
}

// BridgeConfig configures the clementine bridge integration.
type BridgeConfig struct {
	Network            enum.BridgeNetwork `json:"network"`
	RecoveryAddress    string             `json:"recoveryAddress"`
	SignerAddress      string             `json:"signerAddress"`
	ExpectedCliVersion string             `json:"expectedCliVersion"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Database  conn.Option
	Server    ServerConfig
	Jobs      JobIntervals
	Stream    StreamConfig
	Bridge    BridgeConfig
	Profiling ProfilingConfig
}

// JobIntervals are the resolved scheduler intervals.
type JobIntervals struct {
	Verify          time.Duration
	Orders          time.Duration
	PipelineSweep   time.Duration
	CompletionSweep time.Duration
	Reactivation    time.Duration
}

// Load reads the JSON config file and resolves defaults and secrets.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}

	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}

	return resolve(cfg), nil
}

func resolve(cfg FileConfig) Loaded {
	if cfg.Bridge.Network == "" {
		cfg.Bridge.Network = enum.BridgeNetworkTestnet4
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}

	return Loaded{
		Database: conn.Option{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     os.Getenv("TREASURY_DB_PASSWORD"),
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		},
		Server: cfg.Server,
		Jobs: JobIntervals{
			Verify:          interval(cfg.Jobs.VerifySeconds, time.Minute),
			Orders:          interval(cfg.Jobs.OrderSeconds, 30*time.Second),
			PipelineSweep:   interval(cfg.Jobs.PipelineSweepSeconds, time.Minute),
			CompletionSweep: interval(cfg.Jobs.CompletionSweepSeconds, 5*time.Minute),
			Reactivation:    interval(cfg.Jobs.ReactivationSeconds, 5*time.Minute),
		},
		Stream:    cfg.Stream,
		Bridge:    cfg.Bridge,
		Profiling: cfg.Profiling,
	}
}

func interval(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
