// Package main runs the dark pool service: the matching engine behind the
// HTTP API, the websocket notification feed and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Kartikvyas1604/PhantomPool/internal/api"
	"github.com/Kartikvyas1604/PhantomPool/internal/config"
	"github.com/Kartikvyas1604/PhantomPool/internal/engine"
	"github.com/Kartikvyas1604/PhantomPool/internal/feed"
	"github.com/Kartikvyas1604/PhantomPool/internal/ledger"
	"github.com/Kartikvyas1604/PhantomPool/internal/observability"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage"
	chstore "github.com/Kartikvyas1604/PhantomPool/internal/storage/clickhouse"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage/memory"
	"github.com/Kartikvyas1604/PhantomPool/internal/storage/migrations"
	pgstore "github.com/Kartikvyas1604/PhantomPool/internal/storage/postgres"
	"github.com/Kartikvyas1604/PhantomPool/internal/threshold"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify"
	"github.com/Kartikvyas1604/PhantomPool/internal/verify/stub"
)

func main() {
	configFile := flag.String("config", os.Getenv("PHANTOM_CONFIG"), "Path to a config file (yaml, json or toml)")
	envFile := flag.String("env-file", ".env", "Path to a .env file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	faucet := flag.Bool("faucet", false, "Enable the wallet credit endpoint (local runs only)")
	insecure := flag.Bool("insecure", false, "Start with verifiers that accept every solvency, share and evidence proof (local runs only)")
	flag.Parse()

	cfg, err := config.Load(config.Options{File: *configFile, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *useMemory {
		cfg.Storage.Mode = config.StorageMemory
	}
	if *faucet {
		cfg.Faucet = true
	}
	if *insecure {
		cfg.Insecure = true
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	verifiers, err := verifierSuite(cfg.Insecure, logger)
	if err != nil {
		return err
	}

	st, cleanup, err := createStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Token custody is in-process; a chain-backed Transferer replaces it in deployment.
	funds := ledger.New()
	metrics := observability.NewMetrics("", nil)

	params := cfg.Engine.Params()
	eng, err := engine.New(engine.Options{
		Store:     st.state,
		Analytics: st.analytics,
		Transfers: funds,
		Verifiers: verifiers,
		Combiner:  threshold.Shamir{},
		Recorder:  metrics,
		Params:    &params,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	hub, err := feed.NewHub(feed.Options{
		Source:      eng,
		SendBuffer:  cfg.Feed.SendBuffer,
		ReplayLimit: cfg.Feed.ReplayLimit,
		Logger:      logger,
		Clients:     metrics.FeedClients,
		Dropped:     metrics.FeedDropped,
	})
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}
	defer hub.Close()
	eng.AddNotifier(metrics)
	eng.AddNotifier(hub)

	if cfg.Faucet {
		logger.Warn("faucet enabled: wallets can be credited over HTTP")
	}
	srv, err := api.NewServer(api.Options{
		Engine:  eng,
		Funds:   funds,
		Faucet:  cfg.Faucet,
		Feed:    hub,
		Metrics: observability.Handler(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create api: %w", err)
	}

	go pruneNonces(ctx, eng, metrics, cfg.Maintenance.NoncePruneInterval, logger)

	logger.Info("starting server",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Mode),
		zap.Int64("stall_timeout_s", params.StallTimeout),
		zap.Int("max_round_orders", params.MaxRoundOrders),
	)
	return srv.ListenAndServe(ctx, cfg.HTTP.Addr)
}

// errNoVerifierBackend is returned when the server would have to run with
// permissive verifiers and -insecure was not given.
var errNoVerifierBackend = errors.New("solvency, threshold share, share proof and slashing evidence checks have no backend; rerun with -insecure (or PHANTOM_INSECURE=true) for a local deployment")

// verifierSuite wires the real signature, VRF and execution checks. Solvency,
// key-share, share-proof and evidence checks have no production backend; the
// permissive stub stands in for them only when insecure is set.
func verifierSuite(insecure bool, logger *zap.Logger) (verify.Suite, error) {
	if !insecure {
		return verify.Suite{}, errNoVerifierBackend
	}
	permissive := stub.NewVerifier()
	logger.Warn("insecure mode: solvency, threshold share, share proof and slashing evidence checks accept everything")
	return verify.Suite{
		Solvency:       permissive,
		Signature:      verify.Ed25519{},
		VRF:            verify.ECVRF{},
		ThresholdShare: permissive,
		ShareProof:     permissive,
		Execution:      verify.ExecutionDigest{},
		Evidence:       permissive,
	}, nil
}

func pruneNonces(ctx context.Context, eng *engine.Engine, metrics *observability.Metrics, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := eng.PruneNonces(ctx)
			if err != nil {
				logger.Warn("nonce pruning failed", zap.Error(err))
				continue
			}
			metrics.RecordNoncesPruned(n)
			if n > 0 {
				logger.Info("pruned nonces", zap.Int64("count", n))
			}
		}
	}
}

type storeSet struct {
	state     storage.Store
	analytics storage.AnalyticsStore
}

// createStores builds the state store and the optional analytics sink.
func createStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*storeSet, func(), error) {
	if cfg.Mode == config.StorageMemory {
		logger.Warn("using in-memory storage: state is lost on restart")
		return &storeSet{
			state:     memory.NewStore(),
			analytics: memory.NewAnalyticsStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("postgres migrations applied", zap.Strings("files", applied))
	}
	s := &storeSet{state: pgstore.NewStore(pool)}

	if cfg.ClickHouseDSN == "" {
		logger.Info("no clickhouse dsn: analytics sink disabled")
		return s, pool.Close, nil
	}

	// ClickHouse
	var conn *chstore.Conn
	if cfg.Migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	s.analytics = chstore.NewAnalyticsStore(conn)

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return s, cleanup, nil
}
