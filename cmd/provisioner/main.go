package main

import (
	"encoding/json"
	"io"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "provisioner",
		Short:        "Single-sided concentrated liquidity provisioner",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("store", "memory", "storage backend (memory, postgres)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("snapshot", "", "JSON snapshot file for the memory store")
	flags.String("rpc", "", "EVM JSON-RPC URL")
	flags.String("quoter", "", "QuoterV2 contract address")
	flags.String("pool-api", "", "pool stats API base URL")

	root.AddCommand(
		newRunCmd(),
		newProvisionCmd(),
		newPreviewCmd(),
		newConfigCmd(),
		newBalanceCmd(),
		newPortfolioCmd(),
		newHistoryCmd(),
		newStatsCmd(),
		newMigrateCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// redactDSN hides the password of a URL-style DSN for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
