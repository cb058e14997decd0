package model

import "time"

// ConfigStatus is the trigger state of a user configuration.
type ConfigStatus string

const (
	StatusActive ConfigStatus = "active"
	StatusPaused ConfigStatus = "paused"
)

// PauseReasonOutOfRange is recorded when price leaves the configured band.
const PauseReasonOutOfRange = "price_out_of_range"

// UserLiquidityConfig holds the automation settings of one owner on one pool.
type UserLiquidityConfig struct {
	OwnerID             string       `json:"owner_id"`
	PoolID              string       `json:"pool_id"`
	PrincipalSide       Side         `json:"principal_side"`
	TriggerPricePercent float64      `json:"trigger_price_percent"`
	PerTriggerAmount    float64      `json:"per_trigger_amount"`
	Range               PriceRange   `json:"range"`
	TriggeredPrice      float64      `json:"triggered_price"`
	Status              ConfigStatus `json:"status"`
	PauseReason         string       `json:"pause_reason,omitempty"`
	Version             int64        `json:"version"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// ConfigKey identifies a configuration.
type ConfigKey struct {
	OwnerID string
	PoolID  string
}

func (c UserLiquidityConfig) Key() ConfigKey {
	return ConfigKey{OwnerID: c.OwnerID, PoolID: c.PoolID}
}

func (k ConfigKey) String() string {
	return k.OwnerID + "/" + k.PoolID
}
