package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	QuoterAddress  string
	PoolAPIURL     string
	PoolAPITimeout time.Duration

	Store        string
	PGDSN        string
	SnapshotPath string

	CycleInterval    time.Duration
	SnapshotInterval time.Duration
	Concurrency      int

	SolverTolerance     float64
	SolverMaxIterations int

	AMMTimeout   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	RecommenderURL     string
	AgentName          string
	PairSymbol         string
	RecommenderPolicy  string
	RecommenderTimeout time.Duration
	AutoTune           bool

	NATSURL       string
	NATSSubject   string
	NATSStream    string
	MetricsAddr   string
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the PROVISIONER_ prefix with dashes as underscores.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROVISIONER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("pool-api-timeout", 10*time.Second)
	v.SetDefault("store", StoreMemory)
	v.SetDefault("interval", 5*time.Second)
	v.SetDefault("snapshot-interval", 5*time.Second)
	v.SetDefault("concurrency", 1)
	v.SetDefault("tolerance", 0.05)
	v.SetDefault("max-iterations", 10)
	v.SetDefault("amm-timeout", 10*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("agent-name", "Eliza")
	v.SetDefault("pair-symbol", "USDC")
	v.SetDefault("recommender-policy", "proceed")
	v.SetDefault("recommender-timeout", 30*time.Second)
	v.SetDefault("nats-subject", "provisioner")
	v.SetDefault("nats-stream", "PROVISIONER")
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("provisioner")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		QuoterAddress:       v.GetString("quoter"),
		PoolAPIURL:          v.GetString("pool-api"),
		PoolAPITimeout:      v.GetDuration("pool-api-timeout"),
		Store:               strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		PGDSN:               v.GetString("pg-dsn"),
		SnapshotPath:        v.GetString("snapshot"),
		CycleInterval:       v.GetDuration("interval"),
		SnapshotInterval:    v.GetDuration("snapshot-interval"),
		Concurrency:         v.GetInt("concurrency"),
		SolverTolerance:     v.GetFloat64("tolerance"),
		SolverMaxIterations: v.GetInt("max-iterations"),
		AMMTimeout:          v.GetDuration("amm-timeout"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		RecommenderURL:      v.GetString("recommender-url"),
		AgentName:           v.GetString("agent-name"),
		PairSymbol:          v.GetString("pair-symbol"),
		RecommenderPolicy:   v.GetString("recommender-policy"),
		RecommenderTimeout:  v.GetDuration("recommender-timeout"),
		AutoTune:            v.GetBool("auto-tune"),
		NATSURL:             v.GetString("nats-url"),
		NATSSubject:         v.GetString("nats-subject"),
		NATSStream:          v.GetString("nats-stream"),
		MetricsAddr:         v.GetString("metrics-addr"),
		LogLevel:            v.GetString("log-level"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (memory or postgres)", c.Store)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.SolverTolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}
	if c.SolverMaxIterations < 1 {
		return fmt.Errorf("max-iterations must be at least 1")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.AutoTune && c.RecommenderURL == "" {
		return fmt.Errorf("recommender-url is required when auto-tune is enabled")
	}
	return nil
}

// RequireChain reports missing settings needed to reach the pool contracts.
func (c Config) RequireChain() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.QuoterAddress == "" {
		return fmt.Errorf("quoter address is required")
	}
	return nil
}
