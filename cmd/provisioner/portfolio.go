package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/notify"
	"liquidityPilot/internal/storage"
)

func newPortfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show per-pool positions with estimated APR",
		RunE:  runPortfolio,
	}
	cmd.Flags().String("owner", "", "owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runPortfolio(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, _ := cmd.Flags().GetString("owner")
	items, err := a.engine(notify.Nop{}).Portfolio(ctx, owner)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), items)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List an owner's liquidity events, newest first",
		RunE:  runHistory,
	}
	cmd.Flags().String("owner", "", "owner id")
	cmd.Flags().Int("limit", 50, "maximum events, 0 for all")
	cmd.Flags().String("out", "", "append events to this JSONL file instead of printing")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, _ := cmd.Flags().GetString("owner")
	limit, _ := cmd.Flags().GetInt("limit")
	out, _ := cmd.Flags().GetString("out")

	events, err := a.engine(notify.Nop{}).History(ctx, owner, limit)
	if err != nil {
		return err
	}
	if out == "" {
		return printJSON(cmd.OutOrStdout(), events)
	}
	if err := storage.NewJsonlStorage(out).PutEventBatch(events); err != nil {
		return err
	}
	a.log.Info("history exported", zap.String("owner", owner), zap.Int("events", len(events)), zap.String("out", out))
	return nil
}
