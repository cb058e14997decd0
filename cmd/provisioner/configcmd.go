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

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage automation configs",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an automation config",
		RunE:  runConfigCreate,
	}
	addKeyFlags(createCmd)
	createCmd.Flags().String("side", "A", "principal token side (A or B)")
	createCmd.Flags().Float64("step", 0, "price move in percent that triggers a provisioning")
	createCmd.Flags().Float64("amount", 0, "principal amount per provisioning")
	createCmd.Flags().Float64("min-price", 0, "lower range bound (token B per token A)")
	createCmd.Flags().Float64("max-price", 0, "upper range bound (token B per token A)")
	_ = createCmd.MarkFlagRequired("step")
	_ = createCmd.MarkFlagRequired("amount")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show an automation config",
		RunE:  runConfigShow,
	}
	addKeyFlags(showCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused automation config",
		RunE:  runConfigResume,
	}
	addKeyFlags(resumeCmd)

	cmd.AddCommand(createCmd, showCmd, resumeCmd)
	return cmd
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("owner", "", "owner id")
	cmd.Flags().String("pool", "", "pool address")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("pool")
}

func runConfigCreate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rawSide, _ := cmd.Flags().GetString("side")
	side, err := model.ParseSide(rawSide)
	if err != nil {
		return err
	}
	owner, _ := cmd.Flags().GetString("owner")
	pool, _ := cmd.Flags().GetString("pool")
	step, _ := cmd.Flags().GetFloat64("step")
	amount, _ := cmd.Flags().GetFloat64("amount")
	minPrice, _ := cmd.Flags().GetFloat64("min-price")
	maxPrice, _ := cmd.Flags().GetFloat64("max-price")

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.engine(notify.Nop{}).CreateConfig(ctx, model.UserLiquidityConfig{
		OwnerID:             owner,
		PoolID:              pool,
		PrincipalSide:       side,
		TriggerPricePercent: step,
		PerTriggerAmount:    amount,
		Range:               model.PriceRange{Min: minPrice, Max: maxPrice},
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), created)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, _ := cmd.Flags().GetString("owner")
	pool, _ := cmd.Flags().GetString("pool")
	cfg, err := a.engine(notify.Nop{}).GetConfig(ctx, owner, pool)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), cfg)
}

func runConfigResume(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, _ := cmd.Flags().GetString("owner")
	pool, _ := cmd.Flags().GetString("pool")
	cfg, err := a.engine(notify.Nop{}).ResumeConfig(ctx, owner, pool)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), cfg)
}
