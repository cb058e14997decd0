package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidityEvent is the append-only ledger record of one successful provisioning.
// ID doubles as the idempotency key for balance reconciliation.
type LiquidityEvent struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	PoolID        string          `json:"pool_id"`
	PrincipalSide Side            `json:"principal_side"`
	Price         decimal.Decimal `json:"price"`
	AmountA       decimal.Decimal `json:"amount_a"`
	AmountB       decimal.Decimal `json:"amount_b"`
	SwappedAmount decimal.Decimal `json:"swapped_amount"`
	SwapOutput    decimal.Decimal `json:"swap_output"`
	Range         PriceRange      `json:"range"`
	CreatedAt     time.Time       `json:"created_at"`
}
