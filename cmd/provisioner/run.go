package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityPilot/internal/monitor"
	"liquidityPilot/internal/notify"
	"liquidityPilot/internal/recommender"
	"liquidityPilot/internal/trigger"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the rebalance trigger and pool snapshot jobs",
		RunE:  runProvisioner,
	}

	cmd.Flags().Duration("interval", 5*time.Second, "rebalance cycle interval")
	cmd.Flags().Duration("snapshot-interval", 5*time.Second, "pool stats snapshot interval")
	cmd.Flags().Int("concurrency", 1, "configs processed in parallel per cycle")
	cmd.Flags().Float64("tolerance", 0.05, "split solver tolerance")
	cmd.Flags().Int("max-iterations", 10, "split solver iteration cap")
	cmd.Flags().Duration("amm-timeout", 10*time.Second, "per-call AMM deadline")
	cmd.Flags().Int("max-retries", 3, "AMM call retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial AMM retry backoff")
	cmd.Flags().String("recommender-url", "", "agent service base URL")
	cmd.Flags().String("agent-name", "Eliza", "agent addressed by auto-tune")
	cmd.Flags().String("pair-symbol", "USDC", "counter token symbol used in recommender prompts")
	cmd.Flags().String("recommender-policy", "proceed", "on recommender failure: proceed or abort")
	cmd.Flags().Bool("auto-tune", false, "ask the recommender for trigger parameters before provisioning")
	cmd.Flags().String("nats-url", "", "NATS URL for notifications")
	cmd.Flags().String("nats-subject", "provisioner", "notification subject prefix")
	cmd.Flags().String("nats-stream", "PROVISIONER", "JetStream stream name")
	cmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics listen address")
	return cmd
}

func runProvisioner(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	logger := a.log

	policy, err := trigger.ParsePolicy(cfg.RecommenderPolicy)
	if err != nil {
		return err
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.NATSURL != "" {
		nc, js, err := notify.ConnectNATS(cfg.NATSURL, logger.Named("nats"))
		if err != nil {
			return err
		}
		defer nc.Drain()
		if err := notify.EnsureStream(ctx, js, cfg.NATSStream, cfg.NATSSubject); err != nil {
			return err
		}
		publisher = notify.NewJetStreamPublisher(js, cfg.NATSSubject, logger.Named("notify"))
	}

	var rec recommender.Recommender
	if cfg.RecommenderURL != "" {
		rec = recommender.NewAgentClient(recommender.AgentOptions{
			BaseURL:    cfg.RecommenderURL,
			AgentName:  cfg.AgentName,
			PairSymbol: cfg.PairSymbol,
			Timeout:    cfg.RecommenderTimeout,
			Logger:     logger.Named("recommender"),
		})
	}

	eng := a.engine(publisher)
	trig := trigger.New(a.store, a.port, eng, trigger.Options{
		Concurrency: cfg.Concurrency,
		AutoTune:    cfg.AutoTune,
		Policy:      policy,
		Recommender: rec,
		Metrics:     a.metrics,
		Logger:      logger.Named("trigger"),
	})
	mon := monitor.New(a.port, a.store, a.metrics, logger.Named("monitor"))

	scheduler := trigger.NewScheduler(logger)
	if err := scheduler.Every("rebalance", cfg.CycleInterval, func(ctx context.Context) error {
		_, err := trig.RunCycle(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := scheduler.Every("pool-snapshot", cfg.SnapshotInterval, func(ctx context.Context) error {
		_, err := mon.Snapshot(ctx)
		return err
	}); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Info("provisioner start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("store", cfg.Store),
		zap.Duration("interval", cfg.CycleInterval),
		zap.Duration("snapshot_interval", cfg.SnapshotInterval),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("auto_tune", cfg.AutoTune),
		zap.String("recommender_policy", string(policy)),
		zap.Bool("notifications", cfg.NATSURL != ""),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Run(gctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
