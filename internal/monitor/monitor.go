package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"liquidityPilot/internal/amm"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/storage"
)

// Store is the persistence the snapshot job needs.
type Store interface {
	ListActiveConfigs(ctx context.Context) ([]model.UserLiquidityConfig, error)
	storage.PoolStatsStore
}

// Monitor records pool stat snapshots for every pool with an active config.
type Monitor struct {
	port    amm.QueryPort
	store   Store
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(port amm.QueryPort, store Store, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{port: port, store: store, metrics: m, log: logger, now: time.Now}
}

// SnapshotReport summarizes one snapshot pass.
type SnapshotReport struct {
	Pools  int `json:"pools"`
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

// Snapshot reads and stores the stats of each watched pool once. A pool that
// cannot be read is skipped and counted as failed.
func (m *Monitor) Snapshot(ctx context.Context) (SnapshotReport, error) {
	configs, err := m.store.ListActiveConfigs(ctx)
	if err != nil {
		return SnapshotReport{}, fmt.Errorf("list active configs: %w", err)
	}
	pools := watchedPools(configs)

	report := SnapshotReport{Pools: len(pools)}
	for _, poolID := range pools {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := m.snapshotPool(ctx, poolID)
		m.count(err)
		if err != nil {
			report.Failed++
			m.log.Warn("pool snapshot failed", zap.String("pool", poolID), zap.Error(err))
			continue
		}
		report.Saved++
	}
	m.log.Debug("pool snapshots done", zap.Int("pools", report.Pools), zap.Int("saved", report.Saved), zap.Int("failed", report.Failed))
	return report, nil
}

// Latest returns the most recent snapshot of poolID.
func (m *Monitor) Latest(ctx context.Context, poolID string) (model.PoolStats, error) {
	return m.store.LatestPoolStats(ctx, poolID)
}

func (m *Monitor) snapshotPool(ctx context.Context, poolID string) error {
	stats, err := m.port.PoolStats(ctx, poolID)
	if err != nil {
		return fmt.Errorf("pool stats: %w", err)
	}
	stats.PoolID = poolID
	if stats.CapturedAt.IsZero() {
		stats.CapturedAt = m.now().UTC()
	}
	if err := m.store.SavePoolStats(ctx, stats); err != nil {
		return fmt.Errorf("save pool stats: %w", err)
	}
	return nil
}

func (m *Monitor) count(err error) {
	if m.metrics != nil {
		m.metrics.PoolSnapshots.WithLabelValues(metrics.Outcome(err)).Inc()
	}
}

func watchedPools(configs []model.UserLiquidityConfig) []string {
	seen := make(map[string]struct{}, len(configs))
	pools := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if _, ok := seen[cfg.PoolID]; ok {
			continue
		}
		seen[cfg.PoolID] = struct{}{}
		pools = append(pools, cfg.PoolID)
	}
	sort.Strings(pools)
	return pools
}
