package model

// PortfolioItem is the aggregated position of an owner in one pool.
type PortfolioItem struct {
	PoolID              string  `json:"pool_id"`
	UserAPR             float64 `json:"user_apr"`
	ExpectedDailyFeeUSD float64 `json:"expected_daily_fee_usd"`
	UserValueUSD        float64 `json:"user_value_usd"`
	AmountA             float64 `json:"amount_a"`
	AmountB             float64 `json:"amount_b"`
	LiquidityUnits      float64 `json:"liquidity_units"`
	Events              int     `json:"events"`
}

// Recommendation is an externally suggested parameter set.
type Recommendation struct {
	StepPercent      float64 `json:"step_percent"`
	PerTriggerAmount float64 `json:"per_trigger_amount"`
	MinPrice         float64 `json:"min_price"`
	MaxPrice         float64 `json:"max_price"`
}
