package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/engine"
	"liquidityPilot/internal/model"
)

func TestDecideBoundaries(t *testing.T) {
	cfg := model.UserLiquidityConfig{
		TriggerPricePercent: 5,
		TriggeredPrice:      100,
		Range:               model.PriceRange{Min: 50, Max: 150},
	}
	cases := []struct {
		price float64
		want  Decision
	}{
		{price: 100, want: DecisionHold},
		{price: 104.9, want: DecisionHold},
		{price: 105, want: DecisionProvision},
		{price: 95.1, want: DecisionHold},
		{price: 95, want: DecisionProvision},
		{price: 150, want: DecisionProvision},
		{price: 150.01, want: DecisionPause},
		{price: 49.99, want: DecisionPause},
	}
	for _, tc := range cases {
		if got := Decide(cfg, tc.price); got != tc.want {
			t.Fatalf("price %v: expected %s, got %s", tc.price, tc.want, got)
		}
	}

	cfg.TriggeredPrice = 0
	if got := Decide(cfg, 100); got != DecisionProvision {
		t.Fatalf("first run: expected provision, got %s", got)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyProceed {
		t.Fatalf("expected proceed default, got %q %v", p, err)
	}
	if p, err := ParsePolicy("ABORT"); err != nil || p != PolicyAbort {
		t.Fatalf("expected abort, got %q %v", p, err)
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

type staticConfigs []model.UserLiquidityConfig

func (s staticConfigs) ListActiveConfigs(context.Context) ([]model.UserLiquidityConfig, error) {
	return s, nil
}

type priceMap map[string]float64

func (p priceMap) CurrentPrice(_ context.Context, poolID string) (float64, error) {
	price, ok := p[poolID]
	if !ok {
		return 0, errors.New("no price")
	}
	return price, nil
}

type fakeProvisioner struct {
	mu          sync.Mutex
	provisioned []model.UserLiquidityConfig
	paused      []model.UserLiquidityConfig
	applied     []model.Recommendation
	block       chan struct{}
	entered     chan struct{}
	failPool    string
}

func (f *fakeProvisioner) Provision(_ context.Context, cfg model.UserLiquidityConfig, price float64) (engine.Outcome, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	if cfg.PoolID == f.failPool {
		return engine.Outcome{}, engine.ErrInsufficientBalance
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provisioned = append(f.provisioned, cfg)
	return engine.Outcome{Config: cfg, Price: price, Applied: true}, nil
}

func (f *fakeProvisioner) Pause(_ context.Context, cfg model.UserLiquidityConfig, reason string, _ float64) (model.UserLiquidityConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg.Status = model.StatusPaused
	cfg.PauseReason = reason
	f.paused = append(f.paused, cfg)
	return cfg, nil
}

func (f *fakeProvisioner) ApplyRecommendation(_ context.Context, cfg model.UserLiquidityConfig, rec model.Recommendation) (model.UserLiquidityConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, rec)
	cfg.TriggerPricePercent = rec.StepPercent
	cfg.PerTriggerAmount = rec.PerTriggerAmount
	cfg.Version++
	return cfg, nil
}

func (f *fakeProvisioner) PrincipalBalance(context.Context, model.UserLiquidityConfig) (decimal.Decimal, string, error) {
	return decimal.NewFromInt(500), "AAA", nil
}

type fakeRecommender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRecommender) Recommend(context.Context, float64, string) (model.Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return model.Recommendation{}, r.err
	}
	return model.Recommendation{StepPercent: 2, PerTriggerAmount: 25}, nil
}

func config(pool string, triggered float64) model.UserLiquidityConfig {
	return model.UserLiquidityConfig{
		OwnerID:             "alice",
		PoolID:              pool,
		PrincipalSide:       model.SideA,
		TriggerPricePercent: 5,
		PerTriggerAmount:    100,
		TriggeredPrice:      triggered,
		Range:               model.PriceRange{Min: 50, Max: 150},
		Status:              model.StatusActive,
		Version:             1,
	}
}

func TestRunCyclePausesWithoutProvisioning(t *testing.T) {
	prov := &fakeProvisioner{}
	trig := New(staticConfigs{config("p1", 100)}, priceMap{"p1": 200}, prov, Options{})

	report, err := trig.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Paused != 1 || report.Provisioned != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(prov.provisioned) != 0 {
		t.Fatalf("paused config must not be provisioned")
	}
	if len(prov.paused) != 1 || prov.paused[0].PauseReason != model.PauseReasonOutOfRange {
		t.Fatalf("expected one out-of-range pause, got %+v", prov.paused)
	}
}

func TestRunCycleErrorsDoNotStopSiblings(t *testing.T) {
	prov := &fakeProvisioner{failPool: "p2"}
	configs := staticConfigs{config("p1", 0), config("p2", 0), config("p3", 100), config("missing", 0)}
	prices := priceMap{"p1": 100, "p2": 100, "p3": 101}
	trig := New(configs, prices, prov, Options{Concurrency: 2})

	report, err := trig.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Configs != 4 || report.Provisioned != 1 || report.Held != 1 || report.Failed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.CycleID == "" {
		t.Fatalf("expected a cycle id")
	}
}

func TestRunCycleIsSingleFlight(t *testing.T) {
	prov := &fakeProvisioner{block: make(chan struct{}), entered: make(chan struct{})}
	trig := New(staticConfigs{config("p1", 0)}, priceMap{"p1": 100}, prov, Options{})

	done := make(chan CycleReport)
	go func() {
		report, _ := trig.RunCycle(context.Background())
		done <- report
	}()

	select {
	case <-prov.entered:
	case <-time.After(time.Second):
		t.Fatalf("first cycle never reached provisioning")
	}

	skipped, err := trig.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if !skipped.Skipped {
		t.Fatalf("expected overlapping cycle to be skipped")
	}

	close(prov.block)
	first := <-done
	if first.Skipped || first.Provisioned != 1 {
		t.Fatalf("unexpected first report: %+v", first)
	}
}

func TestAutoTuneSkippedOnFirstProvisioning(t *testing.T) {
	prov := &fakeProvisioner{}
	rec := &fakeRecommender{}
	trig := New(staticConfigs{config("p1", 0)}, priceMap{"p1": 100}, prov, Options{AutoTune: true, Recommender: rec})

	if _, err := trig.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if rec.calls != 0 {
		t.Fatalf("expected no recommender call on first provisioning, got %d", rec.calls)
	}
	if len(prov.provisioned) != 1 {
		t.Fatalf("expected one provisioning")
	}
}

func TestAutoTuneAppliesRecommendation(t *testing.T) {
	prov := &fakeProvisioner{}
	rec := &fakeRecommender{}
	trig := New(staticConfigs{config("p1", 100)}, priceMap{"p1": 106}, prov, Options{AutoTune: true, Recommender: rec})

	if _, err := trig.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(prov.applied) != 1 || len(prov.provisioned) != 1 {
		t.Fatalf("expected one recommendation and one provisioning, got %d/%d", len(prov.applied), len(prov.provisioned))
	}
	got := prov.provisioned[0]
	if got.TriggerPricePercent != 2 || got.PerTriggerAmount != 25 || got.Version != 2 {
		t.Fatalf("provisioning did not use the tuned config: %+v", got)
	}
}

func TestRecommenderFailurePolicies(t *testing.T) {
	failing := errors.New("agent down")

	prov := &fakeProvisioner{}
	trig := New(staticConfigs{config("p1", 100)}, priceMap{"p1": 106}, prov, Options{
		AutoTune:    true,
		Recommender: &fakeRecommender{err: failing},
		Policy:      PolicyProceed,
	})
	report, err := trig.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Provisioned != 1 || len(prov.provisioned) != 1 || prov.provisioned[0].TriggerPricePercent != 5 {
		t.Fatalf("proceed policy should provision with existing params: %+v", report)
	}

	prov = &fakeProvisioner{}
	trig = New(staticConfigs{config("p1", 100)}, priceMap{"p1": 106}, prov, Options{
		AutoTune:    true,
		Recommender: &fakeRecommender{err: failing},
		Policy:      PolicyAbort,
	})
	report, err = trig.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Failed != 1 || len(prov.provisioned) != 0 {
		t.Fatalf("abort policy should skip provisioning: %+v", report)
	}
}

func TestRunCycleStopsOnCanceledContext(t *testing.T) {
	prov := &fakeProvisioner{}
	trig := New(staticConfigs{config("p1", 0), config("p2", 0)}, priceMap{"p1": 100, "p2": 100}, prov, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := trig.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Provisioned != 0 || len(prov.provisioned) != 0 {
		t.Fatalf("canceled cycle must not provision: %+v", report)
	}
}
