package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/amm"
	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/engine"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/notify"
	"liquidityPilot/internal/poolapi"
	"liquidityPilot/internal/solver"
	"liquidityPilot/internal/storage"
	"liquidityPilot/internal/storage/memory"
	"liquidityPilot/internal/storage/postgres"
)

// app bundles the dependencies shared by subcommands.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	store    storage.Store
	port     amm.QueryPort
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []func()
}

// setup loads config and opens the store. withChain also connects the AMM port
// and fails when the chain cannot be reached.
func setup(ctx context.Context, cmd *cobra.Command, withChain bool) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:      cfg,
		log:      logger,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if withChain {
		if err := a.connectChain(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) connectChain(ctx context.Context) error {
	if err := a.cfg.RequireChain(); err != nil {
		return err
	}
	if !common.IsHexAddress(a.cfg.QuoterAddress) {
		return fmt.Errorf("invalid quoter address %q", a.cfg.QuoterAddress)
	}

	client, err := chain.NewClient(ctx, a.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	adapterCfg := dex.AdapterConfig{
		Quoter: common.HexToAddress(a.cfg.QuoterAddress),
		Logger: a.log.Named("dex"),
	}
	if a.cfg.PoolAPIURL != "" {
		adapterCfg.Stats = poolapi.NewClient(a.cfg.PoolAPIURL, a.cfg.PoolAPITimeout, a.log.Named("poolapi"))
	}
	adapter, err := dex.NewAdapter(client, adapterCfg)
	if err != nil {
		return err
	}

	guarded := amm.NewGuarded(adapter, amm.GuardOptions{
		CallTimeout:    a.cfg.AMMTimeout,
		MaxRetries:     a.cfg.MaxRetries,
		RetryBaseDelay: a.cfg.RetryBackoff,
		Observer:       a.metrics.ObserveAMMCall,
		Logger:         a.log.Named("amm"),
	})
	if err := guarded.Ping(ctx); err != nil {
		return fmt.Errorf("amm unreachable: %w", err)
	}
	a.port = guarded
	return nil
}

func (a *app) engine(publisher notify.Publisher) *engine.Engine {
	return engine.New(a.port, a.store, engine.Options{
		Solver: solver.Options{
			Tolerance:     a.cfg.SolverTolerance,
			MaxIterations: a.cfg.SolverMaxIterations,
		},
		Notifier: publisher,
		Metrics:  a.metrics,
		Logger:   a.log.Named("engine"),
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres %s: %w", redactDSN(cfg.PGDSN), err)
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ping postgres %s: %w", redactDSN(cfg.PGDSN), err)
		}
		logger.Debug("postgres store ready", zap.String("dsn", redactDSN(cfg.PGDSN)))
		return store, nil
	default:
		store, err := memory.New(memory.Options{SnapshotPath: cfg.SnapshotPath})
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		logger.Debug("memory store ready", zap.String("snapshot", cfg.SnapshotPath))
		return store, nil
	}
}
