package position

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/calc"
	"liquidityPilot/internal/model"
)

type fakeEvents struct {
	events []model.LiquidityEvent
}

func (f fakeEvents) ListEvents(_ context.Context, ownerID string, limit int) ([]model.LiquidityEvent, error) {
	var out []model.LiquidityEvent
	for _, e := range f.events {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakePort struct {
	price    map[string]float64
	stats    map[string]model.PoolStats
	statsErr error
}

func (f fakePort) CurrentPrice(_ context.Context, poolID string) (float64, error) {
	return f.price[poolID], nil
}

func (f fakePort) SwapQuote(context.Context, string, float64, model.Side) (model.SwapQuote, error) {
	return model.SwapQuote{}, nil
}

func (f fakePort) LiquidityQuote(context.Context, string, model.PriceRange, float64, model.Side) (model.LiquidityQuote, error) {
	return model.LiquidityQuote{}, nil
}

func (f fakePort) PoolStats(_ context.Context, poolID string) (model.PoolStats, error) {
	if f.statsErr != nil {
		return model.PoolStats{}, f.statsErr
	}
	return f.stats[poolID], nil
}

func (f fakePort) PoolInfo(context.Context, string) (model.PoolInfo, error) {
	return model.PoolInfo{}, nil
}

func event(owner, pool, a, b string, r model.PriceRange) model.LiquidityEvent {
	return model.LiquidityEvent{
		OwnerID: owner,
		PoolID:  pool,
		AmountA: decimal.RequireFromString(a),
		AmountB: decimal.RequireFromString(b),
		Range:   r,
	}
}

func TestNewEvent(t *testing.T) {
	cfg := model.UserLiquidityConfig{OwnerID: "alice", PoolID: "pool", PrincipalSide: model.SideA, Range: model.PriceRange{Min: 1, Max: 2}}
	result := model.ProvisionResult{
		Swap:    model.SwapLeg{InputAmount: 10, OutputAmount: 15},
		Deposit: model.DepositLeg{AmountA: 90, AmountB: 14.9},
	}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))

	ev := NewEvent(cfg, 1.5, result, now)
	if ev.ID == "" || ev.OwnerID != "alice" || ev.Range != cfg.Range {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.AmountB.Equal(decimal.RequireFromString("14.9")) || !ev.SwappedAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected amounts: %+v", ev)
	}
	if ev.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp")
	}
	if other := NewEvent(cfg, 1.5, result, now); other.ID == ev.ID {
		t.Fatalf("event ids must be unique")
	}
}

func TestPortfolioAggregatesPerPool(t *testing.T) {
	latest := model.PriceRange{Min: 0.09, Max: 0.11}
	older := model.PriceRange{Min: 0.08, Max: 0.12}
	events := fakeEvents{events: []model.LiquidityEvent{
		event("alice", "p1", "20", "2", latest),
		event("alice", "p2", "5", "0.5", older),
		event("alice", "p1", "25", "3", older),
		event("bob", "p1", "100", "10", older),
	}}
	port := fakePort{
		price: map[string]float64{"p1": 0.1, "p2": 0.1},
		stats: map[string]model.PoolStats{
			"p1": {Liquidity: 1e6, DailyVolumeUSD: 5e5, FeeRate: 0.003, QuotePriceUSD: 2},
			"p2": {Liquidity: 1e6, DailyVolumeUSD: 5e5, FeeRate: 0.003, QuotePriceUSD: 2},
		},
	}

	items, err := NewTracker(port, events, nil).Portfolio(context.Background(), "alice")
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(items) != 2 || items[0].PoolID != "p1" || items[1].PoolID != "p2" {
		t.Fatalf("unexpected items: %+v", items)
	}

	p1 := items[0]
	if p1.AmountA != 45 || p1.AmountB != 5 || p1.Events != 2 {
		t.Fatalf("unexpected p1 sums: %+v", p1)
	}
	wantL := calc.ComputeLiquidityUnits(45, 5, latest.Max, latest.Min, 0.1)
	if math.Abs(p1.LiquidityUnits-wantL) > 1e-9 {
		t.Fatalf("expected latest band liquidity %v, got %v", wantL, p1.LiquidityUnits)
	}
	wantValue := 45*0.1*2 + 5*2.0
	if math.Abs(p1.UserValueUSD-wantValue) > 1e-9 {
		t.Fatalf("expected value %v, got %v", wantValue, p1.UserValueUSD)
	}
	want := calc.ComputeUserAprAndFee(wantL, 1e6, 5e5, 0.003, wantValue)
	if math.Abs(p1.UserAPR-want.UserAPR) > 1e-12 || p1.UserAPR <= 0 {
		t.Fatalf("expected apr %v, got %v", want.UserAPR, p1.UserAPR)
	}
}

func TestPortfolioStatsFailureReportsZeroAPR(t *testing.T) {
	events := fakeEvents{events: []model.LiquidityEvent{event("alice", "p1", "20", "2", model.PriceRange{Min: 0.08, Max: 0.12})}}
	port := fakePort{price: map[string]float64{"p1": 0.1}, statsErr: errors.New("api down")}

	items, err := NewTracker(port, events, nil).Portfolio(context.Background(), "alice")
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(items) != 1 || items[0].UserAPR != 0 || items[0].AmountA != 20 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestHistoryHonoursLimit(t *testing.T) {
	events := fakeEvents{events: []model.LiquidityEvent{
		event("alice", "p1", "1", "0", model.PriceRange{}),
		event("alice", "p1", "2", "0", model.PriceRange{}),
	}}
	got, err := NewTracker(fakePort{}, events, nil).History(context.Background(), "alice", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("history: %v %v", got, err)
	}
}
