package domain

import "time"

// FeeConfig holds the cost model applied to every simulated trade.
// Passed into the P&L engine explicitly so scenarios can vary it.
type FeeConfig struct {
	// TradingFee is charged multiplicatively on both entry and exit legs.
	TradingFee float64

	// FundingFee is the periodic funding rate charged once per
	// FundingPeriod held. Zero disables funding decay.
	FundingFee float64

	// FundingPeriod is the interval at which FundingFee accrues.
	FundingPeriod time.Duration
}

// DefaultFees models Bybit USDT perpetual taker fees with the base
// funding rate.
var DefaultFees = FeeConfig{
	TradingFee:    0.0006,
	FundingFee:    0.0001,
	FundingPeriod: 8 * time.Hour,
}

// WithoutFunding returns a copy of the config with funding decay disabled.
func (f FeeConfig) WithoutFunding() FeeConfig {
	f.FundingFee = 0
	return f
}
