package signal

import (
	"fmt"

	"perp-strategy-lab/internal/domain"
)

// warmupRows is the number of leading formation rows discarded before
// signals are emitted: the full-series deviation estimate is meaningless
// for the earliest candles.
const warmupRows = 11

// BreakoutGenerator signals when a candle's change exceeds a multiple of
// the formation series' standard deviation.
type BreakoutGenerator struct {
	sigma float64
}

// NewBreakoutGenerator creates a breakout-by-deviation generator.
func NewBreakoutGenerator(sigma float64) *BreakoutGenerator {
	return &BreakoutGenerator{sigma: sigma}
}

// Compile-time interface check.
var _ Generator = (*BreakoutGenerator)(nil)

// ID returns the strategy identifier, e.g. "BREAKOUT_2.0".
func (g *BreakoutGenerator) ID() string {
	return fmt.Sprintf("%s_%.1f", domain.StrategyTypeBreakout, g.sigma)
}

// Generate emits Long where change >= sigma*stddev and Short where
// change <= -sigma*stddev. The deviation is the population stddev of the
// whole formation series; a zero deviation yields an empty set.
func (g *BreakoutGenerator) Generate(candles []domain.Candle) []domain.Signal {
	if len(candles) <= warmupRows {
		return nil
	}

	changes := make([]float64, len(candles))
	for i, c := range candles {
		changes[i] = c.Change()
	}

	threshold := g.sigma * populationStddev(changes)
	if threshold == 0 {
		return nil
	}

	var signals []domain.Signal
	for i := warmupRows; i < len(candles); i++ {
		var side domain.Side
		switch {
		case changes[i] >= threshold:
			side = domain.SideLong
		case changes[i] <= -threshold:
			side = domain.SideShort
		default:
			continue
		}
		signals = append(signals, domain.Signal{
			Symbol: candles[i].Symbol,
			Time:   candles[i].StartTime,
			Side:   side,
		})
	}
	return signals
}
