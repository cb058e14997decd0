package amm

import (
	"context"
	"errors"

	"liquidityPilot/internal/model"
)

// ErrQuoteUnavailable covers reverted or partially filled quotes and calls that
// exceeded their deadline.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// QueryPort is the read-only view of a concentrated-liquidity AMM.
// Amounts are human units; prices are token B per token A. LiquidityQuote
// reports a zero principal amount when the band takes none of the principal
// token at the current price.
type QueryPort interface {
	CurrentPrice(ctx context.Context, poolID string) (float64, error)
	SwapQuote(ctx context.Context, poolID string, amountIn float64, from model.Side) (model.SwapQuote, error)
	LiquidityQuote(ctx context.Context, poolID string, priceRange model.PriceRange, principal float64, side model.Side) (model.LiquidityQuote, error)
	PoolStats(ctx context.Context, poolID string) (model.PoolStats, error)
	PoolInfo(ctx context.Context, poolID string) (model.PoolInfo, error)
}

// Pinger is implemented by ports that can verify their backend at startup.
type Pinger interface {
	Ping(ctx context.Context) error
}
