package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is an owner's off-chain ledger balance of one token.
type Balance struct {
	OwnerID   string          `json:"owner_id"`
	TokenID   string          `json:"token_id"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalanceDelta is a signed change to apply to a balance.
type BalanceDelta struct {
	OwnerID string          `json:"owner_id"`
	TokenID string          `json:"token_id"`
	Delta   decimal.Decimal `json:"delta"`
}

// ProvisionCommit groups every write of one provisioning action so storage can
// apply them in a single transaction.
type ProvisionCommit struct {
	Event           LiquidityEvent
	Deltas          []BalanceDelta
	Config          UserLiquidityConfig
	ExpectedVersion int64
}
