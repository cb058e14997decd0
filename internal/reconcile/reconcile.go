package reconcile

import (
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// Deltas returns the ledger changes of one provisioning: the principal token
// pays for the swap input and its own deposit leg, while the counter token keeps
// whatever the swap produced beyond the deposit's need.
func Deltas(ownerID string, result model.ProvisionResult, principal model.Side, tokenA, tokenB string) []model.BalanceDelta {
	principalToken, counterToken := tokenA, tokenB
	if principal == model.SideB {
		principalToken, counterToken = tokenB, tokenA
	}

	spent := decimal.NewFromFloat(result.Swap.InputAmount).
		Add(decimal.NewFromFloat(result.Deposit.Amount(principal)))
	leftover := decimal.NewFromFloat(result.Swap.OutputAmount).
		Sub(decimal.NewFromFloat(result.Deposit.Amount(principal.Counter())))

	return []model.BalanceDelta{
		{OwnerID: ownerID, TokenID: principalToken, Delta: spent.Neg()},
		{OwnerID: ownerID, TokenID: counterToken, Delta: leftover},
	}
}

// Apply adds deltas to a balance map keyed by token and returns the tokens it
// touched in first-seen order.
func Apply(balances map[string]decimal.Decimal, deltas []model.BalanceDelta) []string {
	touched := make([]string, 0, len(deltas))
	seen := make(map[string]struct{}, len(deltas))
	for _, d := range deltas {
		balances[d.TokenID] = balances[d.TokenID].Add(d.Delta)
		if _, ok := seen[d.TokenID]; !ok {
			seen[d.TokenID] = struct{}{}
			touched = append(touched, d.TokenID)
		}
	}
	return touched
}
