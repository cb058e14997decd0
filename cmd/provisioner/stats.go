package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityPilot/internal/monitor"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Pool stats snapshots",
	}

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest stored snapshot of a pool",
		RunE:  runStatsLatest,
	}
	latestCmd.Flags().String("pool", "", "pool address")
	_ = latestCmd.MarkFlagRequired("pool")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot every pool with an active config once",
		RunE:  runStatsSnapshot,
	}

	cmd.AddCommand(latestCmd, snapshotCmd)
	return cmd
}

func runStatsLatest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	pool, _ := cmd.Flags().GetString("pool")
	stats, err := a.store.LatestPoolStats(ctx, pool)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stats)
}

func runStatsSnapshot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := monitor.New(a.port, a.store, a.metrics, a.log.Named("monitor")).Snapshot(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
