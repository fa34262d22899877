package signal

import (
	"sort"

	"perp-strategy-lab/internal/domain"
)

// Momentum defaults.
const (
	defaultMinPanelSize = 10
	defaultLowerDecile  = 0.1
	defaultUpperDecile  = 0.9
)

// MomentumGenerator selects the extreme-decile performers across many
// symbols at each timestamp of a panel.
type MomentumGenerator struct {
	minPanelSize int
	lowerDecile  float64
	upperDecile  float64
}

// NewMomentumGenerator creates a cross-sectional momentum generator with
// default panel size and decile cutoffs.
func NewMomentumGenerator() *MomentumGenerator {
	return &MomentumGenerator{
		minPanelSize: defaultMinPanelSize,
		lowerDecile:  defaultLowerDecile,
		upperDecile:  defaultUpperDecile,
	}
}

// Compile-time interface check.
var _ Generator = (*MomentumGenerator)(nil)

// ID returns the strategy identifier.
func (g *MomentumGenerator) ID() string {
	return domain.StrategyTypeMomentum
}

// Generate ranks symbols by change at each timestamp. Symbols at or below
// the lower-decile cutoff go Short, at or above the upper-decile cutoff
// go Long; everything in between is absent from the output. Timestamps
// with fewer than minPanelSize symbols are excluded entirely. Output is
// ordered by timestamp, Shorts before Longs, symbols ascending within a
// side.
func (g *MomentumGenerator) Generate(candles []domain.Candle) []domain.Signal {
	byTime := make(map[int64][]domain.Candle)
	for _, c := range candles {
		byTime[c.StartTime] = append(byTime[c.StartTime], c)
	}

	times := make([]int64, 0, len(byTime))
	for t, group := range byTime {
		if len(group) >= g.minPanelSize {
			times = append(times, t)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	var signals []domain.Signal
	for _, t := range times {
		group := byTime[t]
		sort.Slice(group, func(i, j int) bool { return group[i].Symbol < group[j].Symbol })

		changes := make([]float64, len(group))
		for i, c := range group {
			changes[i] = c.Change()
		}
		sorted := make([]float64, len(changes))
		copy(sorted, changes)
		sort.Float64s(sorted)

		worst := quantile(sorted, g.lowerDecile)
		best := quantile(sorted, g.upperDecile)

		for i, c := range group {
			if changes[i] <= worst {
				signals = append(signals, domain.Signal{Symbol: c.Symbol, Time: t, Side: domain.SideShort})
			}
		}
		for i, c := range group {
			if changes[i] >= best {
				signals = append(signals, domain.Signal{Symbol: c.Symbol, Time: t, Side: domain.SideLong})
			}
		}
	}
	return signals
}
