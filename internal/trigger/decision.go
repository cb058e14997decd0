package trigger

import "liquidityPilot/internal/model"

// Decision is the action the trigger takes for one config at one price.
type Decision string

const (
	DecisionHold      Decision = "hold"
	DecisionProvision Decision = "provision"
	DecisionPause     Decision = "pause"
)

// boundaryEpsilon is the relative slack applied to the trigger bands.
const boundaryEpsilon = 1e-9

// Decide maps a config and the current price to a decision. Prices outside the
// configured range pause the config; otherwise a provisioning happens on the
// first run and whenever the price moved by at least the step since the last one.
func Decide(cfg model.UserLiquidityConfig, price float64) Decision {
	if !cfg.Range.Contains(price) {
		return DecisionPause
	}
	if cfg.TriggeredPrice == 0 {
		return DecisionProvision
	}
	step := cfg.TriggerPricePercent / 100
	up := cfg.TriggeredPrice * (1 + step)
	down := cfg.TriggeredPrice * (1 - step)
	if price >= up*(1-boundaryEpsilon) || price <= down*(1+boundaryEpsilon) {
		return DecisionProvision
	}
	return DecisionHold
}
