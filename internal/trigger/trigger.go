package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"liquidityPilot/internal/engine"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/recommender"
)

// Policy selects what happens to a provisioning when the recommender fails.
type Policy string

const (
	// PolicyProceed keeps the current parameters and provisions anyway.
	PolicyProceed Policy = "proceed"
	// PolicyAbort skips the config for this cycle.
	PolicyAbort Policy = "abort"
)

// ParsePolicy accepts "proceed" or "abort"; empty means proceed.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyProceed:
		return PolicyProceed, nil
	case PolicyAbort:
		return PolicyAbort, nil
	}
	return "", fmt.Errorf("unknown recommender policy %q", raw)
}

// Provisioner performs the state-changing actions of a cycle.
type Provisioner interface {
	Provision(ctx context.Context, cfg model.UserLiquidityConfig, price float64) (engine.Outcome, error)
	Pause(ctx context.Context, cfg model.UserLiquidityConfig, reason string, price float64) (model.UserLiquidityConfig, error)
	ApplyRecommendation(ctx context.Context, cfg model.UserLiquidityConfig, rec model.Recommendation) (model.UserLiquidityConfig, error)
	PrincipalBalance(ctx context.Context, cfg model.UserLiquidityConfig) (decimal.Decimal, string, error)
}

// ConfigSource lists the configs a cycle evaluates.
type ConfigSource interface {
	ListActiveConfigs(ctx context.Context) ([]model.UserLiquidityConfig, error)
}

// PriceReader reads the current pool price.
type PriceReader interface {
	CurrentPrice(ctx context.Context, poolID string) (float64, error)
}

type Options struct {
	Concurrency int
	AutoTune    bool
	Policy      Policy
	Recommender recommender.Recommender
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Trigger evaluates every active config once per cycle.
type Trigger struct {
	configs     ConfigSource
	prices      PriceReader
	provisioner Provisioner
	recommender recommender.Recommender
	autoTune    bool
	policy      Policy
	concurrency int
	metrics     *metrics.Metrics
	log         *zap.Logger

	running sync.Mutex
}

func New(configs ConfigSource, prices PriceReader, provisioner Provisioner, opts Options) *Trigger {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyProceed
	}
	return &Trigger{
		configs:     configs,
		prices:      prices,
		provisioner: provisioner,
		recommender: opts.Recommender,
		autoTune:    opts.AutoTune && opts.Recommender != nil,
		policy:      policy,
		concurrency: concurrency,
		metrics:     opts.Metrics,
		log:         logger,
	}
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	CycleID     string        `json:"cycle_id"`
	Skipped     bool          `json:"skipped"`
	Configs     int           `json:"configs"`
	Held        int           `json:"held"`
	Provisioned int           `json:"provisioned"`
	Paused      int           `json:"paused"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
}

func (r *CycleReport) record(d Decision, err error) {
	if err != nil {
		r.Failed++
		return
	}
	switch d {
	case DecisionHold:
		r.Held++
	case DecisionProvision:
		r.Provisioned++
	case DecisionPause:
		r.Paused++
	}
}

// RunCycle evaluates all active configs. Only one cycle runs at a time; a call
// made while another is in flight returns a skipped report. Per-config errors are
// logged and counted but never fail the cycle.
func (t *Trigger) RunCycle(ctx context.Context) (CycleReport, error) {
	if !t.running.TryLock() {
		t.countCycle("skipped")
		return CycleReport{Skipped: true}, nil
	}
	defer t.running.Unlock()

	start := time.Now()
	report := CycleReport{CycleID: uuid.NewString()}
	log := t.log.With(zap.String("cycle_id", report.CycleID))

	configs, err := t.configs.ListActiveConfigs(ctx)
	if err != nil {
		t.countCycle("error")
		return report, fmt.Errorf("list active configs: %w", err)
	}
	report.Configs = len(configs)
	if t.metrics != nil {
		t.metrics.ActiveConfigs.Set(float64(len(configs)))
	}

	prices := newPriceCache(t.prices)
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(t.concurrency)
	for _, cfg := range configs {
		if ctx.Err() != nil {
			break
		}
		cfg := cfg
		g.Go(func() error {
			decision, err := t.process(ctx, cfg, prices, log)
			mu.Lock()
			report.record(decision, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	if t.metrics != nil {
		t.metrics.CycleDuration.Observe(report.Duration.Seconds())
	}
	if err := ctx.Err(); err != nil {
		t.countCycle("canceled")
		return report, err
	}
	t.countCycle("ok")
	log.Info("cycle finished",
		zap.Int("configs", report.Configs),
		zap.Int("provisioned", report.Provisioned),
		zap.Int("paused", report.Paused),
		zap.Int("held", report.Held),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (t *Trigger) process(ctx context.Context, cfg model.UserLiquidityConfig, prices *priceCache, cycleLog *zap.Logger) (Decision, error) {
	log := cycleLog.With(zap.String("owner", cfg.OwnerID), zap.String("pool", cfg.PoolID))

	price, err := prices.get(ctx, cfg.PoolID)
	if err != nil {
		t.fail(log, "price", err)
		return "", err
	}

	decision := Decide(cfg, price)
	t.countDecision(decision)
	switch decision {
	case DecisionHold:
		log.Debug("holding", zap.Float64("price", price), zap.Float64("triggered_price", cfg.TriggeredPrice))
		return decision, nil

	case DecisionPause:
		if _, err := t.provisioner.Pause(ctx, cfg, model.PauseReasonOutOfRange, price); err != nil {
			t.fail(log, "pause", err)
			return decision, err
		}
		return decision, nil
	}

	if cfg.TriggeredPrice != 0 && t.autoTune {
		tuned, err := t.tune(ctx, cfg, log)
		if err != nil {
			if t.policy == PolicyAbort {
				t.fail(log, "recommend", err)
				return decision, err
			}
			log.Warn("auto-tune skipped", zap.Error(err))
		} else {
			cfg = tuned
		}
	}

	if _, err := t.provisioner.Provision(ctx, cfg, price); err != nil {
		t.fail(log, "provision", err)
		return decision, err
	}
	return decision, nil
}

func (t *Trigger) tune(ctx context.Context, cfg model.UserLiquidityConfig, log *zap.Logger) (model.UserLiquidityConfig, error) {
	balance, symbol, err := t.provisioner.PrincipalBalance(ctx, cfg)
	if err != nil {
		return cfg, err
	}
	amount := balance.InexactFloat64()
	rec, err := t.recommender.Recommend(ctx, amount, symbol)
	t.countRecommendation(err)
	if err != nil {
		return cfg, err
	}
	tuned, err := t.provisioner.ApplyRecommendation(ctx, cfg, rec)
	if err != nil {
		return cfg, err
	}
	log.Info("auto-tuned config",
		zap.Float64("step_percent", tuned.TriggerPricePercent),
		zap.Float64("per_trigger_amount", tuned.PerTriggerAmount),
	)
	return tuned, nil
}

func (t *Trigger) fail(log *zap.Logger, stage string, err error) {
	if t.metrics != nil {
		t.metrics.ConfigErrors.WithLabelValues(stage).Inc()
	}
	if errors.Is(err, context.Canceled) {
		log.Debug("config skipped", zap.String("stage", stage), zap.Error(err))
		return
	}
	log.Error("config failed", zap.String("stage", stage), zap.Error(err))
}

func (t *Trigger) countCycle(outcome string) {
	if t.metrics != nil {
		t.metrics.Cycles.WithLabelValues(outcome).Inc()
	}
}

func (t *Trigger) countDecision(d Decision) {
	if t.metrics != nil {
		t.metrics.Decisions.WithLabelValues(string(d)).Inc()
	}
}

func (t *Trigger) countRecommendation(err error) {
	if t.metrics != nil {
		t.metrics.Recommendations.WithLabelValues(metrics.Outcome(err)).Inc()
	}
}

// priceCache reads each pool price at most once per cycle.
type priceCache struct {
	reader PriceReader
	group  singleflight.Group
	mu     sync.Mutex
	prices map[string]float64
}

func newPriceCache(reader PriceReader) *priceCache {
	return &priceCache{reader: reader, prices: make(map[string]float64)}
}

func (c *priceCache) get(ctx context.Context, poolID string) (float64, error) {
	c.mu.Lock()
	price, ok := c.prices[poolID]
	c.mu.Unlock()
	if ok {
		return price, nil
	}

	v, err, _ := c.group.Do(poolID, func() (interface{}, error) {
		price, err := c.reader.CurrentPrice(ctx, poolID)
		if err != nil {
			return 0.0, fmt.Errorf("current price: %w", err)
		}
		c.mu.Lock()
		c.prices[poolID] = price
		c.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}
