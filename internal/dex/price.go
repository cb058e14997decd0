package dex

import (
	"math"
	"math/big"
)

var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// PriceFromSqrtX96 converts slot0's sqrtPriceX96 to a human price of token1 per token0.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	raw, _ := new(big.Float).Mul(ratio, ratio).Float64()
	return raw * math.Pow10(int(decimals0)-int(decimals1))
}

// ToRaw scales a human amount to token base units, truncating dust.
func ToRaw(amount float64, decimals uint8) *big.Int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return new(big.Int)
	}
	scaled := new(big.Float).Mul(big.NewFloat(amount), new(big.Float).SetInt(pow10(decimals)))
	raw, _ := scaled.Int(nil)
	return raw
}

// FromRaw scales token base units to a human amount.
func FromRaw(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetInt(pow10(decimals))).Float64()
	return value
}

// HumanLiquidity scales raw pool liquidity by the geometric mean of both token decimals.
func HumanLiquidity(raw *big.Int, decimals0, decimals1 uint8) float64 {
	if raw == nil {
		return 0
	}
	value, _ := new(big.Float).SetInt(raw).Float64()
	return value / math.Pow(10, (float64(decimals0)+float64(decimals1))/2)
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
