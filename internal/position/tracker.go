package position

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/amm"
	"liquidityPilot/internal/calc"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/storage"
)

// NewEvent records one successful provisioning at the given price.
func NewEvent(cfg model.UserLiquidityConfig, price float64, result model.ProvisionResult, now time.Time) model.LiquidityEvent {
	return model.LiquidityEvent{
		ID:            uuid.NewString(),
		OwnerID:       cfg.OwnerID,
		PoolID:        cfg.PoolID,
		PrincipalSide: cfg.PrincipalSide,
		Price:         decimal.NewFromFloat(price),
		AmountA:       decimal.NewFromFloat(result.Deposit.AmountA),
		AmountB:       decimal.NewFromFloat(result.Deposit.AmountB),
		SwappedAmount: decimal.NewFromFloat(result.Swap.InputAmount),
		SwapOutput:    decimal.NewFromFloat(result.Swap.OutputAmount),
		Range:         cfg.Range,
		CreatedAt:     now.UTC(),
	}
}

// Tracker aggregates an owner's ledger into per-pool positions.
type Tracker struct {
	port   amm.QueryPort
	events storage.EventStore
	log    *zap.Logger
}

func NewTracker(port amm.QueryPort, events storage.EventStore, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{port: port, events: events, log: logger}
}

type poolPosition struct {
	poolID  string
	amountA decimal.Decimal
	amountB decimal.Decimal
	band    model.PriceRange
	events  int
}

// Portfolio sums the owner's deposits per pool and values them at the current
// price. The band of the most recent event is used since ranges can change
// between provisionings. A pool whose market data cannot be read is reported
// with zero APR.
func (t *Tracker) Portfolio(ctx context.Context, ownerID string) ([]model.PortfolioItem, error) {
	events, err := t.events.ListEvents(ctx, ownerID, 0)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	// Events arrive newest first, so the first one seen per pool carries the band.
	positions := make(map[string]*poolPosition)
	for _, event := range events {
		pos, ok := positions[event.PoolID]
		if !ok {
			pos = &poolPosition{poolID: event.PoolID, band: event.Range}
			positions[event.PoolID] = pos
		}
		pos.amountA = pos.amountA.Add(event.AmountA)
		pos.amountB = pos.amountB.Add(event.AmountB)
		pos.events++
	}

	items := make([]model.PortfolioItem, 0, len(positions))
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, t.value(ctx, pos))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PoolID < items[j].PoolID })
	return items, nil
}

func (t *Tracker) value(ctx context.Context, pos *poolPosition) model.PortfolioItem {
	item := model.PortfolioItem{
		PoolID:  pos.poolID,
		AmountA: pos.amountA.InexactFloat64(),
		AmountB: pos.amountB.InexactFloat64(),
		Events:  pos.events,
	}
	log := t.log.With(zap.String("pool", pos.poolID))

	price, err := t.port.CurrentPrice(ctx, pos.poolID)
	if err != nil {
		log.Error("portfolio price unavailable", zap.Error(err))
		return item
	}
	item.LiquidityUnits = calc.ComputeLiquidityUnits(item.AmountA, item.AmountB, pos.band.Max, pos.band.Min, price)

	stats, err := t.port.PoolStats(ctx, pos.poolID)
	if err != nil {
		log.Error("portfolio pool stats unavailable", zap.Error(err))
		return item
	}
	item.UserValueUSD = item.AmountA*price*stats.QuotePriceUSD + item.AmountB*stats.QuotePriceUSD

	aprFee := calc.ComputeUserAprAndFee(item.LiquidityUnits, stats.Liquidity, stats.DailyVolumeUSD, stats.FeeRate, item.UserValueUSD)
	item.UserAPR = aprFee.UserAPR
	item.ExpectedDailyFeeUSD = aprFee.ExpectedDailyFeeUSD
	return item
}

// History returns the owner's events newest first.
func (t *Tracker) History(ctx context.Context, ownerID string, limit int) ([]model.LiquidityEvent, error) {
	events, err := t.events.ListEvents(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
