// Package config loads server settings from a config file, a .env file and
// PHANTOM_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Kartikvyas1604/PhantomPool/internal/engine"
)

// EnvPrefix prefixes every environment variable, e.g. PHANTOM_HTTP_ADDR.
const EnvPrefix = "PHANTOM"

// Storage modes.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Log         LogConfig         `mapstructure:"log"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`

	// Faucet enables crediting wallets over HTTP. Local runs only.
	Faucet bool `mapstructure:"faucet"`

	// Insecure allows starting with verifiers that accept every proof.
	// Local runs only.
	Insecure bool `mapstructure:"insecure"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// StorageConfig selects the state store. In postgres mode ClickHouse is the
// optional analytics sink.
type StorageConfig struct {
	Mode          string `mapstructure:"mode"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	Migrate       bool   `mapstructure:"migrate"`
}

type FeedConfig struct {
	SendBuffer  int `mapstructure:"send_buffer"`
	ReplayLimit int `mapstructure:"replay_limit"`
}

// EngineConfig mirrors engine.Params with durations instead of seconds.
type EngineConfig struct {
	CancellationGracePeriod time.Duration `mapstructure:"cancellation_grace_period"`
	CancellationFee         uint64        `mapstructure:"cancellation_fee"`
	MinimumExecutorStake    uint64        `mapstructure:"minimum_executor_stake"`
	MinRoundInterval        time.Duration `mapstructure:"min_round_interval"`
	NonceRetention          time.Duration `mapstructure:"nonce_retention"`
	HeartbeatStaleness      time.Duration `mapstructure:"heartbeat_staleness"`
	StallTimeout            time.Duration `mapstructure:"stall_timeout"`
	MaxRoundOrders          int           `mapstructure:"max_round_orders"`
	ExecutorRewardBps       uint16        `mapstructure:"executor_reward_bps"`
}

// Params converts to engine parameters.
func (c EngineConfig) Params() engine.Params {
	return engine.Params{
		CancellationGracePeriod: seconds(c.CancellationGracePeriod),
		CancellationFee:         c.CancellationFee,
		MinimumExecutorStake:    c.MinimumExecutorStake,
		MinRoundInterval:        seconds(c.MinRoundInterval),
		NonceRetention:          seconds(c.NonceRetention),
		HeartbeatStaleness:      seconds(c.HeartbeatStaleness),
		StallTimeout:            seconds(c.StallTimeout),
		MaxRoundOrders:          c.MaxRoundOrders,
		ExecutorRewardBps:       c.ExecutorRewardBps,
	}
}

type MaintenanceConfig struct {
	NoncePruneInterval time.Duration `mapstructure:"nonce_prune_interval"`
}

// Options control where Load looks.
type Options struct {
	File    string // optional config file (yaml, json, toml); must exist when set
	EnvFile string // optional .env file; default ".env", ignored when missing
}

// Load reads the configuration. Variables already set in the environment
// win over the .env file.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	p := engine.DefaultParams()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("storage.mode", StorageMemory)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.migrate", true)
	v.SetDefault("feed.send_buffer", 256)
	v.SetDefault("feed.replay_limit", 1000)
	v.SetDefault("faucet", false)
	v.SetDefault("insecure", false)
	v.SetDefault("maintenance.nonce_prune_interval", time.Hour)

	v.SetDefault("engine.cancellation_grace_period", duration(p.CancellationGracePeriod))
	v.SetDefault("engine.cancellation_fee", p.CancellationFee)
	v.SetDefault("engine.minimum_executor_stake", p.MinimumExecutorStake)
	v.SetDefault("engine.min_round_interval", duration(p.MinRoundInterval))
	v.SetDefault("engine.nonce_retention", duration(p.NonceRetention))
	v.SetDefault("engine.heartbeat_staleness", duration(p.HeartbeatStaleness))
	v.SetDefault("engine.stall_timeout", duration(p.StallTimeout))
	v.SetDefault("engine.max_round_orders", p.MaxRoundOrders)
	v.SetDefault("engine.executor_reward_bps", p.ExecutorRewardBps)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn is required in postgres mode")
		}
	default:
		return fmt.Errorf("config: unknown storage.mode %q", c.Storage.Mode)
	}
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr is required")
	}
	if c.Maintenance.NoncePruneInterval <= 0 {
		return errors.New("config: maintenance.nonce_prune_interval must be positive")
	}
	if err := c.Engine.Params().Validate(); err != nil {
		return fmt.Errorf("config: engine: %w", err)
	}
	return nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func duration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
