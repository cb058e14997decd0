package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/notify"
)

func newProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision one config at the current price",
		RunE:  runProvision,
	}
	cmd.Flags().String("owner", "", "owner id")
	cmd.Flags().String("pool", "", "pool address")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}

func runProvision(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, _ := cmd.Flags().GetString("owner")
	pool, _ := cmd.Flags().GetString("pool")
	outcome, err := a.engine(notify.Nop{}).ProvisionOnce(ctx, owner, pool)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), outcome)
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Solve a swap/deposit split without committing it",
		RunE:  runPreview,
	}
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("side", "A", "principal token side (A or B)")
	cmd.Flags().Float64("amount", 0, "principal amount")
	cmd.Flags().Float64("min-price", 0, "lower range bound (token B per token A)")
	cmd.Flags().Float64("max-price", 0, "upper range bound (token B per token A)")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runPreview(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rawSide, _ := cmd.Flags().GetString("side")
	side, err := model.ParseSide(rawSide)
	if err != nil {
		return err
	}
	pool, _ := cmd.Flags().GetString("pool")
	amount, _ := cmd.Flags().GetFloat64("amount")
	minPrice, _ := cmd.Flags().GetFloat64("min-price")
	maxPrice, _ := cmd.Flags().GetFloat64("max-price")

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine(notify.Nop{}).Preview(ctx, model.ProvisionRequest{
		PoolID:        pool,
		PrincipalSide: side,
		InputAmount:   amount,
		Range:         model.PriceRange{Min: minPrice, Max: maxPrice},
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
