package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/amm"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/notify"
	"liquidityPilot/internal/position"
	"liquidityPilot/internal/reconcile"
	"liquidityPilot/internal/solver"
	"liquidityPilot/internal/storage"
)

var (
	ErrOutOfRange          = errors.New("price out of range")
	ErrConfigPaused        = errors.New("config is paused")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidConfig       = errors.New("invalid config")
)

// Options wires optional collaborators.
type Options struct {
	Solver   solver.Options
	Notifier notify.Publisher
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// Engine runs provisioning actions against the AMM port and the store. Actions
// on the same (owner, pool) are serialized; the store's config versions guard
// against writers outside this process.
type Engine struct {
	port     amm.QueryPort
	store    storage.Store
	tracker  *position.Tracker
	locks    *keyLock
	solver   solver.Options
	notifier notify.Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// Outcome describes one provisioning.
type Outcome struct {
	Config  model.UserLiquidityConfig `json:"config"`
	Event   model.LiquidityEvent      `json:"event"`
	Result  model.ProvisionResult     `json:"result"`
	Price   float64                   `json:"price"`
	Applied bool                      `json:"applied"`
}

func New(port amm.QueryPort, store storage.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	solverOpts := opts.Solver
	if solverOpts.Logger == nil {
		solverOpts.Logger = logger.Named("solver")
	}
	return &Engine{
		port:     port,
		store:    store,
		tracker:  position.NewTracker(port, store, logger.Named("position")),
		locks:    newKeyLock(),
		solver:   solverOpts,
		notifier: notifier,
		metrics:  opts.Metrics,
		log:      logger,
		now:      now,
	}
}

// CreateConfig validates and stores a new active config.
func (e *Engine) CreateConfig(ctx context.Context, cfg model.UserLiquidityConfig) (model.UserLiquidityConfig, error) {
	if err := validateConfig(cfg); err != nil {
		return model.UserLiquidityConfig{}, err
	}
	cfg.Status = model.StatusActive
	cfg.PauseReason = ""
	cfg.TriggeredPrice = 0

	unlock := e.locks.Lock(cfg.Key())
	defer unlock()

	created, err := e.store.CreateConfig(ctx, cfg)
	if err != nil {
		return model.UserLiquidityConfig{}, err
	}
	e.log.Info("config created", zap.String("owner", created.OwnerID), zap.String("pool", created.PoolID))
	return created, nil
}

func (e *Engine) GetConfig(ctx context.Context, ownerID, poolID string) (model.UserLiquidityConfig, error) {
	return e.store.GetConfig(ctx, model.ConfigKey{OwnerID: ownerID, PoolID: poolID})
}

// ResumeConfig reactivates a paused config. It is the only way out of paused.
func (e *Engine) ResumeConfig(ctx context.Context, ownerID, poolID string) (model.UserLiquidityConfig, error) {
	key := model.ConfigKey{OwnerID: ownerID, PoolID: poolID}
	unlock := e.locks.Lock(key)
	defer unlock()

	cfg, err := e.store.GetConfig(ctx, key)
	if err != nil {
		return model.UserLiquidityConfig{}, err
	}
	if cfg.Status == model.StatusActive {
		return cfg, nil
	}
	cfg.Status = model.StatusActive
	cfg.PauseReason = ""
	updated, err := e.store.UpdateConfig(ctx, cfg)
	if err != nil {
		return model.UserLiquidityConfig{}, fmt.Errorf("resume %s: %w", key, err)
	}
	e.log.Info("config resumed", zap.String("owner", ownerID), zap.String("pool", poolID))
	return updated, nil
}

// Pause marks cfg paused with reason. Already paused configs are returned unchanged.
func (e *Engine) Pause(ctx context.Context, cfg model.UserLiquidityConfig, reason string, price float64) (model.UserLiquidityConfig, error) {
	unlock := e.locks.Lock(cfg.Key())
	defer unlock()

	current, err := e.store.GetConfig(ctx, cfg.Key())
	if err != nil {
		return model.UserLiquidityConfig{}, err
	}
	if current.Status == model.StatusPaused {
		return current, nil
	}
	current.Status = model.StatusPaused
	current.PauseReason = reason
	updated, err := e.store.UpdateConfig(ctx, current)
	if err != nil {
		return model.UserLiquidityConfig{}, fmt.Errorf("pause %s: %w", cfg.Key(), err)
	}

	e.log.Info("config paused",
		zap.String("owner", cfg.OwnerID),
		zap.String("pool", cfg.PoolID),
		zap.String("reason", reason),
		zap.Float64("price", price),
	)
	e.publish(ctx, notify.Notification{
		Kind:    notify.KindPaused,
		OwnerID: cfg.OwnerID,
		PoolID:  cfg.PoolID,
		Price:   price,
		Reason:  reason,
		At:      e.now().UTC(),
	})
	return updated, nil
}

// ApplyRecommendation stores recommended trigger parameters on an unchanged config.
// The recommended band is ignored; ranges only change by user action.
func (e *Engine) ApplyRecommendation(ctx context.Context, cfg model.UserLiquidityConfig, rec model.Recommendation) (model.UserLiquidityConfig, error) {
	if rec.StepPercent <= 0 || rec.StepPercent >= 100 || rec.PerTriggerAmount <= 0 {
		return model.UserLiquidityConfig{}, fmt.Errorf("%w: recommendation step=%v amount=%v", ErrInvalidConfig, rec.StepPercent, rec.PerTriggerAmount)
	}
	unlock := e.locks.Lock(cfg.Key())
	defer unlock()

	next := cfg
	next.TriggerPricePercent = rec.StepPercent
	next.PerTriggerAmount = rec.PerTriggerAmount
	updated, err := e.store.UpdateConfig(ctx, next)
	if err != nil {
		return model.UserLiquidityConfig{}, fmt.Errorf("apply recommendation %s: %w", cfg.Key(), err)
	}
	return updated, nil
}

// PrincipalBalance returns the owner's balance and symbol of the config's principal token.
func (e *Engine) PrincipalBalance(ctx context.Context, cfg model.UserLiquidityConfig) (decimal.Decimal, string, error) {
	info, err := e.port.PoolInfo(ctx, cfg.PoolID)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("pool info: %w", err)
	}
	token := info.Token(cfg.PrincipalSide)
	balance, err := e.store.GetBalance(ctx, cfg.OwnerID, token.Address)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("balance: %w", err)
	}
	return balance, token.Symbol, nil
}

// ProvisionOnce provisions an active config at the current price. Unlike the
// trigger it never pauses: an out-of-range price is reported as ErrOutOfRange.
func (e *Engine) ProvisionOnce(ctx context.Context, ownerID, poolID string) (Outcome, error) {
	key := model.ConfigKey{OwnerID: ownerID, PoolID: poolID}
	unlock := e.locks.Lock(key)
	defer unlock()

	cfg, err := e.store.GetConfig(ctx, key)
	if err != nil {
		return Outcome{}, err
	}
	if cfg.Status == model.StatusPaused {
		return Outcome{}, fmt.Errorf("%s: %w", key, ErrConfigPaused)
	}
	price, err := e.port.CurrentPrice(ctx, poolID)
	if err != nil {
		return Outcome{}, fmt.Errorf("current price: %w", err)
	}
	if !cfg.Range.Contains(price) {
		return Outcome{}, fmt.Errorf("%w: price %v outside [%v, %v]", ErrOutOfRange, price, cfg.Range.Min, cfg.Range.Max)
	}
	return e.provisionLocked(ctx, cfg, price)
}

// Provision provisions cfg at a price already observed by the caller. It fails
// with storage.ErrVersionConflict when cfg is stale.
func (e *Engine) Provision(ctx context.Context, cfg model.UserLiquidityConfig, price float64) (Outcome, error) {
	unlock := e.locks.Lock(cfg.Key())
	defer unlock()

	current, err := e.store.GetConfig(ctx, cfg.Key())
	if err != nil {
		return Outcome{}, err
	}
	if current.Version != cfg.Version {
		return Outcome{}, fmt.Errorf("%s changed since read: %w", cfg.Key(), storage.ErrVersionConflict)
	}
	if current.Status == model.StatusPaused {
		return Outcome{}, fmt.Errorf("%s: %w", cfg.Key(), ErrConfigPaused)
	}
	return e.provisionLocked(ctx, current, price)
}

func (e *Engine) provisionLocked(ctx context.Context, cfg model.UserLiquidityConfig, price float64) (Outcome, error) {
	log := e.log.With(zap.String("owner", cfg.OwnerID), zap.String("pool", cfg.PoolID))

	info, err := e.port.PoolInfo(ctx, cfg.PoolID)
	if err != nil {
		return Outcome{}, fmt.Errorf("pool info: %w", err)
	}
	principalToken := info.Token(cfg.PrincipalSide).Address
	balance, err := e.store.GetBalance(ctx, cfg.OwnerID, principalToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("balance: %w", err)
	}
	required := decimal.NewFromFloat(cfg.PerTriggerAmount)
	if balance.LessThan(required) {
		e.countProvision("insufficient_balance")
		return Outcome{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, required)
	}

	result, err := solver.Solve(ctx, e.port, model.ProvisionRequest{
		OwnerID:       cfg.OwnerID,
		PoolID:        cfg.PoolID,
		PrincipalSide: cfg.PrincipalSide,
		InputAmount:   cfg.PerTriggerAmount,
		Range:         cfg.Range,
	}, e.solver)
	if err != nil {
		e.countProvision("solver_failed")
		return Outcome{}, fmt.Errorf("solve split: %w", err)
	}
	if e.metrics != nil {
		e.metrics.SolverIters.Observe(float64(result.Iterations))
	}

	event := position.NewEvent(cfg, price, result, e.now())
	next := cfg
	next.TriggeredPrice = price
	updated, applied, err := e.store.CommitProvision(ctx, model.ProvisionCommit{
		Event:           event,
		Deltas:          reconcile.Deltas(cfg.OwnerID, result, cfg.PrincipalSide, info.TokenA.Address, info.TokenB.Address),
		Config:          next,
		ExpectedVersion: cfg.Version,
	})
	if err != nil {
		e.countProvision("commit_failed")
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return Outcome{}, fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
		}
		return Outcome{}, fmt.Errorf("commit provision: %w", err)
	}
	if !applied {
		e.countProvision("duplicate")
		log.Warn("provision already committed", zap.String("event_id", event.ID))
		return Outcome{Config: updated, Event: event, Result: result, Price: price}, nil
	}

	e.countProvision("applied")
	log.Info("liquidity provisioned",
		zap.String("event_id", event.ID),
		zap.Float64("price", price),
		zap.Float64("swap_in", result.Swap.InputAmount),
		zap.Float64("swap_out", result.Swap.OutputAmount),
		zap.Float64("deposit_a", result.Deposit.AmountA),
		zap.Float64("deposit_b", result.Deposit.AmountB),
		zap.Int("iterations", result.Iterations),
	)
	e.publish(ctx, notify.Notification{
		ID:      event.ID,
		Kind:    notify.KindProvisioned,
		OwnerID: cfg.OwnerID,
		PoolID:  cfg.PoolID,
		Price:   price,
		At:      event.CreatedAt,
	})
	return Outcome{Config: updated, Event: event, Result: result, Price: price, Applied: true}, nil
}

// Preview solves the split for req without touching balances or configs.
func (e *Engine) Preview(ctx context.Context, req model.ProvisionRequest) (model.ProvisionResult, error) {
	return solver.Solve(ctx, e.port, req, e.solver)
}

// TopUp credits amount of token to the owner's ledger balance.
func (e *Engine) TopUp(ctx context.Context, ownerID, tokenID string, amount decimal.Decimal) (model.Balance, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(tokenID) == "" {
		return model.Balance{}, fmt.Errorf("%w: owner and token are required", ErrInvalidConfig)
	}
	if !amount.IsPositive() {
		return model.Balance{}, fmt.Errorf("%w: %s", solver.ErrInvalidAmount, amount)
	}
	return e.store.AdjustBalance(ctx, model.BalanceDelta{OwnerID: ownerID, TokenID: tokenID, Delta: amount})
}

func (e *Engine) Balances(ctx context.Context, ownerID string) ([]model.Balance, error) {
	return e.store.ListBalances(ctx, ownerID)
}

func (e *Engine) Portfolio(ctx context.Context, ownerID string) ([]model.PortfolioItem, error) {
	return e.tracker.Portfolio(ctx, ownerID)
}

func (e *Engine) History(ctx context.Context, ownerID string, limit int) ([]model.LiquidityEvent, error) {
	return e.tracker.History(ctx, ownerID, limit)
}

func (e *Engine) publish(ctx context.Context, n notify.Notification) {
	err := e.notifier.Publish(ctx, n)
	if e.metrics != nil {
		e.metrics.Notifications.WithLabelValues(string(n.Kind), metrics.Outcome(err)).Inc()
	}
	if err != nil {
		e.log.Warn("notification failed", zap.String("kind", string(n.Kind)), zap.String("owner", n.OwnerID), zap.Error(err))
	}
}

func (e *Engine) countProvision(result string) {
	if e.metrics != nil {
		e.metrics.Provisions.WithLabelValues(result).Inc()
	}
}

func validateConfig(cfg model.UserLiquidityConfig) error {
	if strings.TrimSpace(cfg.OwnerID) == "" || strings.TrimSpace(cfg.PoolID) == "" {
		return fmt.Errorf("%w: owner and pool are required", ErrInvalidConfig)
	}
	if !cfg.PrincipalSide.Valid() {
		return fmt.Errorf("%w: principal side %q", ErrInvalidConfig, cfg.PrincipalSide)
	}
	if cfg.TriggerPricePercent <= 0 || cfg.TriggerPricePercent >= 100 || math.IsNaN(cfg.TriggerPricePercent) {
		return fmt.Errorf("%w: trigger percent %v", ErrInvalidConfig, cfg.TriggerPricePercent)
	}
	if cfg.PerTriggerAmount <= 0 || math.IsNaN(cfg.PerTriggerAmount) || math.IsInf(cfg.PerTriggerAmount, 0) {
		return fmt.Errorf("%w: %v", solver.ErrInvalidAmount, cfg.PerTriggerAmount)
	}
	return cfg.Range.Validate()
}
