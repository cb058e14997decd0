package calc

import "math"

// ComputeLiquidityUnits returns the concentrated-liquidity units backed by the
// given token amounts inside [priceLower, priceUpper] at currentPrice.
// Prices are token B per token A. The result is 0 for an empty band, any
// non-positive price, or a current price outside the band.
func ComputeLiquidityUnits(amountA, amountB, priceUpper, priceLower, currentPrice float64) float64 {
	if priceLower <= 0 || currentPrice <= 0 || priceLower >= priceUpper {
		return 0
	}
	if currentPrice < priceLower || currentPrice > priceUpper {
		return 0
	}

	sqrtP := math.Sqrt(currentPrice)
	sqrtL := math.Sqrt(priceLower)
	sqrtU := math.Sqrt(priceUpper)

	// At either edge only one token backs the position.
	if currentPrice == priceLower {
		return liquidityFromA(amountA, sqrtL, sqrtU)
	}
	if currentPrice == priceUpper {
		return liquidityFromB(amountB, sqrtL, sqrtU)
	}

	la := liquidityFromA(amountA, sqrtP, sqrtU)
	lb := liquidityFromB(amountB, sqrtL, sqrtP)
	return math.Min(la, lb)
}

// AmountsForLiquidity returns the token A and token B amounts that back
// liquidity inside the band at the current price.
func AmountsForLiquidity(liquidity, priceLower, priceUpper, currentPrice float64) (float64, float64) {
	if liquidity <= 0 || priceLower <= 0 || priceLower >= priceUpper || currentPrice <= 0 {
		return 0, 0
	}
	sqrtL := math.Sqrt(priceLower)
	sqrtU := math.Sqrt(priceUpper)

	switch {
	case currentPrice <= priceLower:
		return liquidity * (1/sqrtL - 1/sqrtU), 0
	case currentPrice >= priceUpper:
		return 0, liquidity * (sqrtU - sqrtL)
	default:
		sqrtP := math.Sqrt(currentPrice)
		return liquidity * (1/sqrtP - 1/sqrtU), liquidity * (sqrtP - sqrtL)
	}
}

func liquidityFromA(amountA, sqrtLow, sqrtHigh float64) float64 {
	denom := 1/sqrtLow - 1/sqrtHigh
	if amountA <= 0 || denom <= 0 {
		return 0
	}
	return amountA / denom
}

func liquidityFromB(amountB, sqrtLow, sqrtHigh float64) float64 {
	denom := sqrtHigh - sqrtLow
	if amountB <= 0 || denom <= 0 {
		return 0
	}
	return amountB / denom
}
