package postgres

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_configs (
	owner_id TEXT NOT NULL,
	pool_id TEXT NOT NULL,
	principal_side TEXT NOT NULL,
	trigger_price_percent DOUBLE PRECISION NOT NULL,
	per_trigger_amount DOUBLE PRECISION NOT NULL,
	min_price DOUBLE PRECISION NOT NULL,
	max_price DOUBLE PRECISION NOT NULL,
	triggered_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	pause_reason TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, pool_id)
);

CREATE INDEX IF NOT EXISTS idx_user_configs_status ON user_configs(status);

CREATE TABLE IF NOT EXISTS liquidity_events (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	pool_id TEXT NOT NULL,
	principal_side TEXT NOT NULL,
	price NUMERIC NOT NULL,
	amount_a NUMERIC NOT NULL,
	amount_b NUMERIC NOT NULL,
	swapped_amount NUMERIC NOT NULL,
	swap_output NUMERIC NOT NULL,
	min_price DOUBLE PRECISION NOT NULL,
	max_price DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_liquidity_events_owner ON liquidity_events(owner_id, seq DESC);

CREATE TABLE IF NOT EXISTS balances (
	owner_id TEXT NOT NULL,
	token_id TEXT NOT NULL,
	amount NUMERIC NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, token_id)
);

CREATE TABLE IF NOT EXISTS pool_stats (
	seq BIGSERIAL PRIMARY KEY,
	pool_id TEXT NOT NULL,
	tvl_usd DOUBLE PRECISION NOT NULL,
	daily_volume_usd DOUBLE PRECISION NOT NULL,
	daily_fees_usd DOUBLE PRECISION NOT NULL,
	fee_rate DOUBLE PRECISION NOT NULL,
	liquidity DOUBLE PRECISION NOT NULL,
	quote_price_usd DOUBLE PRECISION NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pool_stats_pool ON pool_stats(pool_id, captured_at DESC);
`

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
