package model

// ProvisionRequest is the immutable input to the split solver.
type ProvisionRequest struct {
	OwnerID       string     `json:"owner_id"`
	PoolID        string     `json:"pool_id"`
	PrincipalSide Side       `json:"principal_side"`
	InputAmount   float64    `json:"input_amount"`
	Range         PriceRange `json:"range"`
}

// SwapLeg converts part of the principal into the counter token.
type SwapLeg struct {
	InputAmount    float64 `json:"input_amount"`
	InputFee       float64 `json:"input_fee"`
	OutputAmount   float64 `json:"output_amount"`
	ExecutionPrice float64 `json:"execution_price"`
	PriceImpact    float64 `json:"price_impact"`
}

// DepositLeg adds liquidity with the remaining principal plus the swapped counter token.
type DepositLeg struct {
	AmountA   float64 `json:"amount_a"`
	AmountB   float64 `json:"amount_b"`
	FeeA      float64 `json:"fee_a"`
	FeeB      float64 `json:"fee_b"`
	Liquidity float64 `json:"liquidity"`
}

// Amount returns the deposited amount of the given side.
func (d DepositLeg) Amount(side Side) float64 {
	if side == SideA {
		return d.AmountA
	}
	return d.AmountB
}

// ProvisionResult is produced once per solve and never mutated afterwards.
type ProvisionResult struct {
	Swap       SwapLeg    `json:"swap"`
	Deposit    DepositLeg `json:"deposit"`
	Iterations int        `json:"iterations"`
}

// PrincipalAmount is the principal token consumed by swap input plus deposit.
func (r ProvisionResult) PrincipalAmount(principal Side) float64 {
	return r.Swap.InputAmount + r.Deposit.Amount(principal)
}

// CounterAmount is swap output minus the counter token the deposit consumes.
func (r ProvisionResult) CounterAmount(principal Side) float64 {
	return r.Swap.OutputAmount - r.Deposit.Amount(principal.Counter())
}
