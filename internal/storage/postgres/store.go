package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/storage"
)

// Store provides Postgres persistence for configs, the event ledger, balances
// and pool stat snapshots.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const configColumns = `owner_id, pool_id, principal_side, trigger_price_percent, per_trigger_amount,
	min_price, max_price, triggered_price, status, pause_reason, version, created_at, updated_at`

func scanConfig(row pgx.Row) (model.UserLiquidityConfig, error) {
	var (
		cfg    model.UserLiquidityConfig
		side   string
		status string
	)
	err := row.Scan(
		&cfg.OwnerID,
		&cfg.PoolID,
		&side,
		&cfg.TriggerPricePercent,
		&cfg.PerTriggerAmount,
		&cfg.Range.Min,
		&cfg.Range.Max,
		&cfg.TriggeredPrice,
		&status,
		&cfg.PauseReason,
		&cfg.Version,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	cfg.PrincipalSide = model.Side(side)
	cfg.Status = model.ConfigStatus(status)
	return cfg, err
}

func (s *Store) CreateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error) {
	if cfg.Status == "" {
		cfg.Status = model.StatusActive
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO user_configs (`+configColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, now(), now())
		ON CONFLICT (owner_id, pool_id) DO NOTHING
		RETURNING `+configColumns,
		cfg.OwnerID,
		cfg.PoolID,
		string(cfg.PrincipalSide),
		cfg.TriggerPricePercent,
		cfg.PerTriggerAmount,
		cfg.Range.Min,
		cfg.Range.Max,
		cfg.TriggeredPrice,
		string(cfg.Status),
		cfg.PauseReason,
	)
	created, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserLiquidityConfig{}, fmt.Errorf("%s: %w", cfg.Key(), storage.ErrConfigAlreadyExists)
		}
		return model.UserLiquidityConfig{}, fmt.Errorf("insert config: %w", err)
	}
	return created, nil
}

func (s *Store) GetConfig(ctx context.Context, key model.ConfigKey) (model.UserLiquidityConfig, error) {
	return getConfig(ctx, s.pool, key)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getConfig(ctx context.Context, q querier, key model.ConfigKey) (model.UserLiquidityConfig, error) {
	row := q.QueryRow(ctx, `SELECT `+configColumns+` FROM user_configs WHERE owner_id=$1 AND pool_id=$2`, key.OwnerID, key.PoolID)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserLiquidityConfig{}, fmt.Errorf("%s: %w", key, storage.ErrConfigNotFound)
		}
		return model.UserLiquidityConfig{}, fmt.Errorf("select config: %w", err)
	}
	return cfg, nil
}

func (s *Store) UpdateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error) {
	return updateConfig(ctx, s.pool, cfg, cfg.Version)
}

func updateConfig(ctx context.Context, q querier, cfg model.UserLiquidityConfig, expectedVersion int64) (model.UserLiquidityConfig, error) {
	row := q.QueryRow(ctx, `
		UPDATE user_configs SET
			principal_side = $3,
			trigger_price_percent = $4,
			per_trigger_amount = $5,
			min_price = $6,
			max_price = $7,
			triggered_price = $8,
			status = $9,
			pause_reason = $10,
			version = version + 1,
			updated_at = now()
		WHERE owner_id = $1 AND pool_id = $2 AND version = $11
		RETURNING `+configColumns,
		cfg.OwnerID,
		cfg.PoolID,
		string(cfg.PrincipalSide),
		cfg.TriggerPricePercent,
		cfg.PerTriggerAmount,
		cfg.Range.Min,
		cfg.Range.Max,
		cfg.TriggeredPrice,
		string(cfg.Status),
		cfg.PauseReason,
		expectedVersion,
	)
	updated, err := scanConfig(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.UserLiquidityConfig{}, fmt.Errorf("update config: %w", err)
	}
	if _, err := getConfig(ctx, q, cfg.Key()); err != nil {
		return model.UserLiquidityConfig{}, err
	}
	return model.UserLiquidityConfig{}, fmt.Errorf("%s expected version %d: %w", cfg.Key(), expectedVersion, storage.ErrVersionConflict)
}

func (s *Store) ListActiveConfigs(ctx context.Context) ([]model.UserLiquidityConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+configColumns+` FROM user_configs WHERE status=$1 ORDER BY owner_id, pool_id`, string(model.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("select active configs: %w", err)
	}
	defer rows.Close()

	var out []model.UserLiquidityConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *Store) ListEvents(ctx context.Context, ownerID string, limit int) ([]model.LiquidityEvent, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, pool_id, principal_side, price::text, amount_a::text, amount_b::text,
			swapped_amount::text, swap_output::text, min_price, max_price, created_at
		FROM liquidity_events
		WHERE owner_id = $1
		ORDER BY seq DESC
		LIMIT NULLIF($2::int, 0)
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var out []model.LiquidityEvent
	for rows.Next() {
		var (
			event                                    model.LiquidityEvent
			side                                     string
			price, amountA, amountB, swapped, output string
		)
		if err := rows.Scan(&event.ID, &event.OwnerID, &event.PoolID, &side, &price, &amountA, &amountB,
			&swapped, &output, &event.Range.Min, &event.Range.Max, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.PrincipalSide = model.Side(side)
		if err := parseDecimals(
			decimalField{price, &event.Price},
			decimalField{amountA, &event.AmountA},
			decimalField{amountB, &event.AmountB},
			decimalField{swapped, &event.SwappedAmount},
			decimalField{output, &event.SwapOutput},
		); err != nil {
			return nil, fmt.Errorf("event %s: %w", event.ID, err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *Store) GetBalance(ctx context.Context, ownerID, tokenID string) (decimal.Decimal, error) {
	var amount string
	err := s.pool.QueryRow(ctx, `SELECT amount::text FROM balances WHERE owner_id=$1 AND token_id=$2`, ownerID, tokenID).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("select balance: %w", err)
	}
	return decimal.NewFromString(amount)
}

func (s *Store) ListBalances(ctx context.Context, ownerID string) ([]model.Balance, error) {
	rows, err := s.pool.Query(ctx, `SELECT owner_id, token_id, amount::text, updated_at FROM balances WHERE owner_id=$1 ORDER BY token_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	defer rows.Close()

	var out []model.Balance
	for rows.Next() {
		var (
			bal    model.Balance
			amount string
		)
		if err := rows.Scan(&bal.OwnerID, &bal.TokenID, &amount, &bal.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if bal.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse balance: %w", err)
		}
		out = append(out, bal)
	}
	return out, rows.Err()
}

func (s *Store) AdjustBalance(ctx context.Context, delta model.BalanceDelta) (model.Balance, error) {
	var out model.Balance
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		balances, err := applyDeltas(ctx, tx, []model.BalanceDelta{delta})
		if err != nil {
			return err
		}
		out = balances[0]
		return nil
	})
	return out, err
}

// CommitProvision inserts the event, applies balance deltas under row locks and
// bumps the config in one transaction. A known event ID commits nothing.
func (s *Store) CommitProvision(ctx context.Context, commit model.ProvisionCommit) (model.UserLiquidityConfig, bool, error) {
	var (
		cfg     model.UserLiquidityConfig
		applied bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		event := commit.Event
		createdAt := event.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO liquidity_events (
				id, owner_id, pool_id, principal_side, price, amount_a, amount_b,
				swapped_amount, swap_output, min_price, max_price, created_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING
		`,
			event.ID,
			event.OwnerID,
			event.PoolID,
			string(event.PrincipalSide),
			event.Price.String(),
			event.AmountA.String(),
			event.AmountB.String(),
			event.SwappedAmount.String(),
			event.SwapOutput.String(),
			event.Range.Min,
			event.Range.Max,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			cfg, err = getConfig(ctx, tx, commit.Config.Key())
			return err
		}

		if _, err := applyDeltas(ctx, tx, commit.Deltas); err != nil {
			return err
		}
		cfg, err = updateConfig(ctx, tx, commit.Config, commit.ExpectedVersion)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return model.UserLiquidityConfig{}, false, err
	}
	return cfg, applied, nil
}

// applyDeltas locks the touched owners' balance rows in a stable order, then
// upserts each delta and rejects any that would go negative.
func applyDeltas(ctx context.Context, tx pgx.Tx, deltas []model.BalanceDelta) ([]model.Balance, error) {
	owners := make(map[string]struct{}, len(deltas))
	for _, d := range deltas {
		owners[d.OwnerID] = struct{}{}
	}
	ordered := make([]string, 0, len(owners))
	for owner := range owners {
		ordered = append(ordered, owner)
	}
	sort.Strings(ordered)
	for _, owner := range ordered {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM balances WHERE owner_id=$1 ORDER BY token_id FOR UPDATE`, owner); err != nil {
			return nil, fmt.Errorf("lock balances: %w", err)
		}
	}

	out := make([]model.Balance, 0, len(deltas))
	for _, d := range deltas {
		var (
			bal    = model.Balance{OwnerID: d.OwnerID, TokenID: d.TokenID}
			amount string
		)
		err := tx.QueryRow(ctx, `
			INSERT INTO balances (owner_id, token_id, amount, updated_at)
			VALUES ($1, $2, $3::numeric, now())
			ON CONFLICT (owner_id, token_id)
			DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
			RETURNING amount::text, updated_at
		`, d.OwnerID, d.TokenID, d.Delta.String()).Scan(&amount, &bal.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("apply balance delta: %w", err)
		}
		if bal.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse balance: %w", err)
		}
		if bal.Amount.IsNegative() {
			return nil, fmt.Errorf("%s %s would be %s: %w", d.OwnerID, d.TokenID, bal.Amount, storage.ErrInsufficientFunds)
		}
		out = append(out, bal)
	}
	return out, nil
}

func (s *Store) SavePoolStats(ctx context.Context, stats model.PoolStats) error {
	capturedAt := stats.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_stats (
			pool_id, tvl_usd, daily_volume_usd, daily_fees_usd, fee_rate, liquidity, quote_price_usd, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		stats.PoolID,
		stats.TVLUSD,
		stats.DailyVolumeUSD,
		stats.DailyFeesUSD,
		stats.FeeRate,
		stats.Liquidity,
		stats.QuotePriceUSD,
		capturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pool stats: %w", err)
	}
	return nil
}

func (s *Store) LatestPoolStats(ctx context.Context, poolID string) (model.PoolStats, error) {
	var stats model.PoolStats
	err := s.pool.QueryRow(ctx, `
		SELECT pool_id, tvl_usd, daily_volume_usd, daily_fees_usd, fee_rate, liquidity, quote_price_usd, captured_at
		FROM pool_stats
		WHERE pool_id = $1
		ORDER BY captured_at DESC, seq DESC
		LIMIT 1
	`, poolID).Scan(
		&stats.PoolID,
		&stats.TVLUSD,
		&stats.DailyVolumeUSD,
		&stats.DailyFeesUSD,
		&stats.FeeRate,
		&stats.Liquidity,
		&stats.QuotePriceUSD,
		&stats.CapturedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolStats{}, fmt.Errorf("%s: %w", poolID, storage.ErrStatsNotFound)
		}
		return model.PoolStats{}, fmt.Errorf("select pool stats: %w", err)
	}
	return stats, nil
}

type decimalField struct {
	raw string
	dst *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		value, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse decimal %q: %w", f.raw, err)
		}
		*f.dst = value
	}
	return nil
}
