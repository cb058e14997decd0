package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"liquidityPilot/internal/notify"
)

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Inspect and fund ledger balances",
	}

	topUpCmd := &cobra.Command{
		Use:   "topup",
		Short: "Credit a token balance",
		RunE:  runBalanceTopUp,
	}
	topUpCmd.Flags().String("owner", "", "owner id")
	topUpCmd.Flags().String("token", "", "token address")
	topUpCmd.Flags().String("amount", "", "amount in token units")
	_ = topUpCmd.MarkFlagRequired("owner")
	_ = topUpCmd.MarkFlagRequired("token")
	_ = topUpCmd.MarkFlagRequired("amount")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "List an owner's balances",
		RunE:  runBalanceShow,
	}
	showCmd.Flags().String("owner", "", "owner id")
	_ = showCmd.MarkFlagRequired("owner")

	cmd.AddCommand(topUpCmd, showCmd)
	return cmd
}

func runBalanceTopUp(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner, _ := cmd.Flags().GetString("owner")
	token, _ := cmd.Flags().GetString("token")
	rawAmount, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	balance, err := a.engine(notify.Nop{}).TopUp(ctx, owner, token, amount)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), balance)
}

func runBalanceShow(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, _ := cmd.Flags().GetString("owner")
	balances, err := a.engine(notify.Nop{}).Balances(ctx, owner)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), balances)
}
