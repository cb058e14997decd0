package calc

// AprFee is a user's expected fee income from a position.
type AprFee struct {
	UserAPR             float64 `json:"user_apr"`
	ExpectedDailyFeeUSD float64 `json:"expected_daily_fee_usd"`
}

const daysPerYear = 365

// ComputeUserAprAndFee prorates daily pool fees by the user's liquidity share.
// It returns the zero value when deltaL, totalPoolL or userValueUSD is not positive.
func ComputeUserAprAndFee(deltaL, totalPoolL, dailyVolumeUSD, feeRate, userValueUSD float64) AprFee {
	if deltaL <= 0 || totalPoolL <= 0 || userValueUSD <= 0 {
		return AprFee{}
	}
	share := deltaL / totalPoolL
	dailyFee := dailyVolumeUSD * feeRate * share
	return AprFee{
		UserAPR:             dailyFee / userValueUSD * daysPerYear,
		ExpectedDailyFeeUSD: dailyFee,
	}
}
