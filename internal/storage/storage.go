package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

var (
	ErrConfigNotFound      = errors.New("config not found")
	ErrConfigAlreadyExists = errors.New("config already exists")
	// ErrVersionConflict is returned when a config changed since it was read.
	ErrVersionConflict = errors.New("config version conflict")
	ErrStatsNotFound   = errors.New("pool stats not found")
	// ErrInsufficientFunds is returned when a debit would leave a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ConfigStore persists one automation config per (owner, pool).
type ConfigStore interface {
	CreateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error)
	GetConfig(ctx context.Context, key model.ConfigKey) (model.UserLiquidityConfig, error)
	// UpdateConfig writes cfg if the stored version still equals cfg.Version and
	// returns the row with its version incremented.
	UpdateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error)
	ListActiveConfigs(ctx context.Context) ([]model.UserLiquidityConfig, error)
}

// EventStore reads the append-only liquidity ledger.
type EventStore interface {
	ListEvents(ctx context.Context, ownerID string, limit int) ([]model.LiquidityEvent, error)
}

// BalanceStore holds per-owner token balances.
type BalanceStore interface {
	GetBalance(ctx context.Context, ownerID, tokenID string) (decimal.Decimal, error)
	ListBalances(ctx context.Context, ownerID string) ([]model.Balance, error)
	AdjustBalance(ctx context.Context, delta model.BalanceDelta) (model.Balance, error)
}

// Committer applies every write of one provisioning atomically. applied is false
// when the event ID was already committed, in which case nothing changes.
type Committer interface {
	CommitProvision(ctx context.Context, commit model.ProvisionCommit) (model.UserLiquidityConfig, bool, error)
}

// PoolStatsStore keeps pool stat snapshots.
type PoolStatsStore interface {
	SavePoolStats(ctx context.Context, stats model.PoolStats) error
	LatestPoolStats(ctx context.Context, poolID string) (model.PoolStats, error)
}

// Store is the full persistence surface of the engine.
type Store interface {
	ConfigStore
	EventStore
	BalanceStore
	Committer
	PoolStatsStore
	Close()
}
