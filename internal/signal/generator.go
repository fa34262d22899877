package signal

import (
	"errors"

	"perp-strategy-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingSigma        = errors.New("BREAKOUT requires Sigma")
)

// Generator derives directional trading signals from formation candles.
type Generator interface {
	// Generate produces the signal set for a formation table. Breakout
	// generators expect a single-symbol series; momentum generators a
	// panel across symbols. An input that cannot produce signals (zero
	// deviation, too few symbols) yields an empty set, not an error.
	Generate(candles []domain.Candle) []domain.Signal

	// ID returns the strategy identifier (includes parameters).
	ID() string
}

// FromConfig creates a Generator from domain.StrategyConfig.
// Validates required parameters per strategy type.
func FromConfig(cfg domain.StrategyConfig) (Generator, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeBreakout:
		if cfg.Sigma == nil {
			return nil, ErrMissingSigma
		}
		return NewBreakoutGenerator(*cfg.Sigma), nil
	case domain.StrategyTypeMomentum:
		gen := NewMomentumGenerator()
		if cfg.MinPanelSize != nil {
			gen.minPanelSize = *cfg.MinPanelSize
		}
		if cfg.LowerDecile != nil {
			gen.lowerDecile = *cfg.LowerDecile
		}
		if cfg.UpperDecile != nil {
			gen.upperDecile = *cfg.UpperDecile
		}
		return gen, nil
	default:
		return nil, ErrUnknownStrategyType
	}
}
