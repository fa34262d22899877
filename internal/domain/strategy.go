package domain

import "fmt"

// Strategy type constants.
const (
	StrategyTypeBreakout = "BREAKOUT"
	StrategyTypeMomentum = "MOMENTUM"
)

// BreakoutSigmas lists the deviation multipliers enumerated by the driver.
var BreakoutSigmas = []float64{1.0, 1.5, 2.0, 2.5, 3.0}

// StrategyConfig describes one signal-generator configuration.
type StrategyConfig struct {
	StrategyType    string // "BREAKOUT" | "MOMENTUM"
	PrepareInterval Interval
	HoldingInterval Interval

	// BREAKOUT parameters
	Sigma *float64 // deviation multiplier

	// MOMENTUM parameters
	MinPanelSize *int     // minimum symbols per timestamp (default 10)
	LowerDecile  *float64 // short cutoff quantile (default 0.1)
	UpperDecile  *float64 // long cutoff quantile (default 0.9)
}

// StrategyID returns the identifier used on trades and performance
// records, e.g. "BREAKOUT_2.0" or "MOMENTUM".
func (c StrategyConfig) StrategyID() string {
	if c.StrategyType == StrategyTypeBreakout && c.Sigma != nil {
		return fmt.Sprintf("%s_%.1f", StrategyTypeBreakout, *c.Sigma)
	}
	return c.StrategyType
}
