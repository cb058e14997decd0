package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/reconcile"
	"liquidityPilot/internal/storage"
)

const maxStatsPerPool = 720

// Options configures a memory store.
type Options struct {
	// SnapshotPath persists the whole store as JSON after every write when set.
	SnapshotPath string
	Now          func() time.Time
}

type balanceKey struct {
	owner string
	token string
}

// Store keeps every repository in process memory. A single mutex serializes
// writes, which also serializes balance updates per owner.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time

	configs  map[model.ConfigKey]model.UserLiquidityConfig
	events   []model.LiquidityEvent
	eventIDs map[string]struct{}
	balances map[balanceKey]model.Balance
	stats    map[string][]model.PoolStats
}

var _ storage.Store = (*Store)(nil)

type snapshot struct {
	Configs   []model.UserLiquidityConfig `json:"configs"`
	Events    []model.LiquidityEvent      `json:"events"`
	Balances  []model.Balance             `json:"balances"`
	PoolStats []model.PoolStats           `json:"pool_stats"`
	UpdatedAt string                      `json:"updated_at"`
}

// New returns a store, loading SnapshotPath when the file exists.
func New(opts Options) (*Store, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		path:     opts.SnapshotPath,
		now:      now,
		configs:  make(map[model.ConfigKey]model.UserLiquidityConfig),
		eventIDs: make(map[string]struct{}),
		balances: make(map[balanceKey]model.Balance),
		stats:    make(map[string][]model.PoolStats),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {}

func (s *Store) CreateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cfg.Key()
	if _, ok := s.configs[key]; ok {
		return model.UserLiquidityConfig{}, fmt.Errorf("%s: %w", key, storage.ErrConfigAlreadyExists)
	}
	now := s.now().UTC()
	cfg.Version = 1
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.Status == "" {
		cfg.Status = model.StatusActive
	}

	err := s.mutate(func() {
		s.configs[key] = cfg
	})
	if err != nil {
		return model.UserLiquidityConfig{}, err
	}
	return cfg, nil
}

func (s *Store) GetConfig(ctx context.Context, key model.ConfigKey) (model.UserLiquidityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[key]
	if !ok {
		return model.UserLiquidityConfig{}, fmt.Errorf("%s: %w", key, storage.ErrConfigNotFound)
	}
	return cfg, nil
}

func (s *Store) UpdateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.nextConfig(cfg, cfg.Version)
	if err != nil {
		return model.UserLiquidityConfig{}, err
	}
	if err := s.mutate(func() { s.configs[next.Key()] = next }); err != nil {
		return model.UserLiquidityConfig{}, err
	}
	return next, nil
}

func (s *Store) ListActiveConfigs(ctx context.Context) ([]model.UserLiquidityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.UserLiquidityConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		if cfg.Status == model.StatusActive {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerID != out[j].OwnerID {
			return out[i].OwnerID < out[j].OwnerID
		}
		return out[i].PoolID < out[j].PoolID
	})
	return out, nil
}

// ListEvents returns the owner's events newest first; limit <= 0 means all.
func (s *Store) ListEvents(ctx context.Context, ownerID string, limit int) ([]model.LiquidityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.LiquidityEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].OwnerID != ownerID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetBalance(ctx context.Context, ownerID, tokenID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey{owner: ownerID, token: tokenID}].Amount, nil
}

func (s *Store) ListBalances(ctx context.Context, ownerID string) ([]model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Balance
	for key, bal := range s.balances {
		if key.owner == ownerID {
			out = append(out, bal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func (s *Store) AdjustBalance(ctx context.Context, delta model.BalanceDelta) (model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.applyDeltas([]model.BalanceDelta{delta})
	if err != nil {
		return model.Balance{}, err
	}
	if err := s.mutate(func() { s.storeBalances(next) }); err != nil {
		return model.Balance{}, err
	}
	return next[0], nil
}

func (s *Store) CommitProvision(ctx context.Context, commit model.ProvisionCommit) (model.UserLiquidityConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := commit.Config.Key()
	if _, ok := s.eventIDs[commit.Event.ID]; ok {
		cfg, ok := s.configs[key]
		if !ok {
			return model.UserLiquidityConfig{}, false, fmt.Errorf("%s: %w", key, storage.ErrConfigNotFound)
		}
		return cfg, false, nil
	}

	cfg, err := s.nextConfig(commit.Config, commit.ExpectedVersion)
	if err != nil {
		return model.UserLiquidityConfig{}, false, err
	}
	balances, err := s.applyDeltas(commit.Deltas)
	if err != nil {
		return model.UserLiquidityConfig{}, false, err
	}

	event := commit.Event
	if event.CreatedAt.IsZero() {
		event.CreatedAt = cfg.UpdatedAt
	}
	err = s.mutate(func() {
		s.events = append(s.events, event)
		s.eventIDs[event.ID] = struct{}{}
		s.storeBalances(balances)
		s.configs[key] = cfg
	})
	if err != nil {
		return model.UserLiquidityConfig{}, false, err
	}
	return cfg, true, nil
}

func (s *Store) SavePoolStats(ctx context.Context, stats model.PoolStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stats.CapturedAt.IsZero() {
		stats.CapturedAt = s.now().UTC()
	}
	return s.mutate(func() {
		history := append(s.stats[stats.PoolID], stats)
		if len(history) > maxStatsPerPool {
			history = history[len(history)-maxStatsPerPool:]
		}
		s.stats[stats.PoolID] = history
	})
}

func (s *Store) LatestPoolStats(ctx context.Context, poolID string) (model.PoolStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.stats[poolID]
	if len(history) == 0 {
		return model.PoolStats{}, fmt.Errorf("%s: %w", poolID, storage.ErrStatsNotFound)
	}
	return history[len(history)-1], nil
}

func (s *Store) nextConfig(cfg model.UserLiquidityConfig, expectedVersion int64) (model.UserLiquidityConfig, error) {
	key := cfg.Key()
	current, ok := s.configs[key]
	if !ok {
		return model.UserLiquidityConfig{}, fmt.Errorf("%s: %w", key, storage.ErrConfigNotFound)
	}
	if current.Version != expectedVersion {
		return model.UserLiquidityConfig{}, fmt.Errorf("%s at version %d, expected %d: %w", key, current.Version, expectedVersion, storage.ErrVersionConflict)
	}
	cfg.Version = current.Version + 1
	cfg.CreatedAt = current.CreatedAt
	cfg.UpdatedAt = s.now().UTC()
	return cfg, nil
}

// applyDeltas computes new balances against the current snapshot without storing them.
func (s *Store) applyDeltas(deltas []model.BalanceDelta) ([]model.Balance, error) {
	now := s.now().UTC()
	owners := make([]string, 0, 1)
	byOwner := make(map[string][]model.BalanceDelta)
	for _, d := range deltas {
		if _, ok := byOwner[d.OwnerID]; !ok {
			owners = append(owners, d.OwnerID)
		}
		byOwner[d.OwnerID] = append(byOwner[d.OwnerID], d)
	}

	out := make([]model.Balance, 0, len(deltas))
	for _, owner := range owners {
		amounts := make(map[string]decimal.Decimal)
		for _, d := range byOwner[owner] {
			amounts[d.TokenID] = s.balances[balanceKey{owner: owner, token: d.TokenID}].Amount
		}
		for _, token := range reconcile.Apply(amounts, byOwner[owner]) {
			amount := amounts[token]
			if amount.IsNegative() {
				return nil, fmt.Errorf("%s %s would be %s: %w", owner, token, amount, storage.ErrInsufficientFunds)
			}
			out = append(out, model.Balance{OwnerID: owner, TokenID: token, Amount: amount, UpdatedAt: now})
		}
	}
	return out, nil
}

func (s *Store) storeBalances(balances []model.Balance) {
	for _, bal := range balances {
		s.balances[balanceKey{owner: bal.OwnerID, token: bal.TokenID}] = bal
	}
}

// mutate applies fn and persists the snapshot, undoing fn when the write fails.
func (s *Store) mutate(fn func()) error {
	if s.path == "" {
		fn()
		return nil
	}
	prev := s.snapshot()
	fn()
	if err := s.save(); err != nil {
		s.restore(prev)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		Configs: make([]model.UserLiquidityConfig, 0, len(s.configs)),
		Events:  append([]model.LiquidityEvent(nil), s.events...),
	}
	for _, cfg := range s.configs {
		snap.Configs = append(snap.Configs, cfg)
	}
	for _, bal := range s.balances {
		snap.Balances = append(snap.Balances, bal)
	}
	for _, history := range s.stats {
		snap.PoolStats = append(snap.PoolStats, history...)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.configs = make(map[model.ConfigKey]model.UserLiquidityConfig, len(snap.Configs))
	for _, cfg := range snap.Configs {
		s.configs[cfg.Key()] = cfg
	}
	s.events = snap.Events
	s.eventIDs = make(map[string]struct{}, len(snap.Events))
	for _, event := range snap.Events {
		s.eventIDs[event.ID] = struct{}{}
	}
	s.balances = make(map[balanceKey]model.Balance, len(snap.Balances))
	for _, bal := range snap.Balances {
		s.balances[balanceKey{owner: bal.OwnerID, token: bal.TokenID}] = bal
	}
	s.stats = make(map[string][]model.PoolStats)
	for _, stats := range snap.PoolStats {
		s.stats[stats.PoolID] = append(s.stats[stats.PoolID], stats)
	}
}

func (s *Store) load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	sort.SliceStable(snap.PoolStats, func(i, j int) bool {
		return snap.PoolStats[i].CapturedAt.Before(snap.PoolStats[j].CapturedAt)
	})
	s.restore(snap)
	return nil
}

func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	snap := s.snapshot()
	snap.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
