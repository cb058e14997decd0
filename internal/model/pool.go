package model

import "time"

// PoolInfo identifies a pool and both of its tokens.
type PoolInfo struct {
	PoolID string    `json:"pool_id"`
	TokenA TokenMeta `json:"token_a"`
	TokenB TokenMeta `json:"token_b"`
	Fee    uint32    `json:"fee"`
}

// Token returns the metadata of the given side.
func (p PoolInfo) Token(side Side) TokenMeta {
	if side == SideA {
		return p.TokenA
	}
	return p.TokenB
}

// PoolStats is a point-in-time view of pool depth and activity.
// Liquidity is active liquidity in human units; QuotePriceUSD is the USD price of token B.
type PoolStats struct {
	PoolID         string    `json:"pool_id"`
	TVLUSD         float64   `json:"tvl_usd"`
	DailyVolumeUSD float64   `json:"daily_volume_usd"`
	DailyFeesUSD   float64   `json:"daily_fees_usd"`
	FeeRate        float64   `json:"fee_rate"`
	Liquidity      float64   `json:"liquidity"`
	QuotePriceUSD  float64   `json:"quote_price_usd"`
	CapturedAt     time.Time `json:"captured_at"`
}

// SwapQuote is an AMM estimate for swapping an exact input amount.
type SwapQuote struct {
	InputAmount    float64 `json:"input_amount"`
	OutputAmount   float64 `json:"output_amount"`
	Fee            float64 `json:"fee"`
	ExecutionPrice float64 `json:"execution_price"`
	PriceImpact    float64 `json:"price_impact"`
}

// LiquidityQuote is the token pair needed to add liquidity from a principal amount.
type LiquidityQuote struct {
	AmountA   float64 `json:"amount_a"`
	AmountB   float64 `json:"amount_b"`
	FeeA      float64 `json:"fee_a"`
	FeeB      float64 `json:"fee_b"`
	Liquidity float64 `json:"liquidity"`
}

// Amount returns the quoted amount of the given side.
func (q LiquidityQuote) Amount(side Side) float64 {
	if side == SideA {
		return q.AmountA
	}
	return q.AmountB
}
