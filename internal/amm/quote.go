package amm

import (
	"fmt"
	"math"

	"liquidityPilot/internal/calc"
	"liquidityPilot/internal/model"
)

// QuoteLiquidity sizes a position that consumes the full principal amount on the
// given side and reports the counter amount it needs at the current price. At or
// beyond the band edge where the position holds only the counter token the
// quote is empty.
func QuoteLiquidity(price float64, priceRange model.PriceRange, principal float64, side model.Side) (model.LiquidityQuote, error) {
	if err := priceRange.Validate(); err != nil {
		return model.LiquidityQuote{}, err
	}
	if price <= 0 || math.IsNaN(price) {
		return model.LiquidityQuote{}, fmt.Errorf("%w: invalid price %v", ErrQuoteUnavailable, price)
	}
	if principal <= 0 {
		return model.LiquidityQuote{}, nil
	}

	sqrtL := math.Sqrt(priceRange.Min)
	sqrtU := math.Sqrt(priceRange.Max)
	sqrtP := math.Sqrt(math.Min(math.Max(price, priceRange.Min), priceRange.Max))

	var liquidity float64
	switch side {
	case model.SideA:
		denom := 1/sqrtP - 1/sqrtU
		if denom <= 0 {
			return model.LiquidityQuote{}, nil
		}
		liquidity = principal / denom
	case model.SideB:
		denom := sqrtP - sqrtL
		if denom <= 0 {
			return model.LiquidityQuote{}, nil
		}
		liquidity = principal / denom
	default:
		return model.LiquidityQuote{}, fmt.Errorf("unknown side %q", side)
	}

	amountA, amountB := calc.AmountsForLiquidity(liquidity, priceRange.Min, priceRange.Max, price)
	// Pin the principal leg to the exact input.
	if side == model.SideA {
		amountA = principal
	} else {
		amountB = principal
	}
	return model.LiquidityQuote{
		AmountA:   amountA,
		AmountB:   amountB,
		Liquidity: liquidity,
	}, nil
}
