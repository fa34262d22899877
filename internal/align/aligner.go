// Package align matches signals to holding-period candles and resolves
// conflicting simultaneous signals into at most one position.
package align

import (
	"sort"

	"perp-strategy-lab/internal/domain"
)

// Candidate is a signal matched to its entry holding candle. It carries
// everything the P&L engine needs; ExitTime is the start of the candle
// chronologically after Entry.
type Candidate struct {
	Signal   domain.Signal
	Entry    domain.Candle
	ExitTime int64
}

// Align maps each signal of one symbol to the first holding candle whose
// start_time >= signal time + prepare interval. The walk is forward-only
// over both ordered sequences, so there is no look-ahead bias; gaps in
// the holding data just add slack. A signal with no matching candle, or
// whose match is the last holding candle (no successor to exit into), is
// dropped. Multiple signals may land on the same entry candle.
func Align(signals []domain.Signal, holding []domain.Candle, prepare domain.Interval) []Candidate {
	if len(holding) < 2 {
		return nil
	}

	var out []Candidate
	j := 0
	for _, s := range signals {
		earliest := s.Time + prepare.Millis()
		for j < len(holding) && holding[j].StartTime < earliest {
			j++
		}
		if j >= len(holding)-1 {
			// No entry candle, or the entry would be the final candle.
			// Signals are time-ordered, so nothing later can match either.
			break
		}
		out = append(out, Candidate{
			Signal:   s,
			Entry:    holding[j],
			ExitTime: holding[j+1].StartTime,
		})
	}
	return out
}

// SortCandidates orders merged candidates the way the resolver consumes
// them: entry time, then signal time, Shorts before Longs, then symbol.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Entry.StartTime != b.Entry.StartTime {
			return a.Entry.StartTime < b.Entry.StartTime
		}
		if a.Signal.Time != b.Signal.Time {
			return a.Signal.Time < b.Signal.Time
		}
		if a.Signal.Side != b.Signal.Side {
			return a.Signal.Side == domain.SideShort
		}
		return a.Signal.Symbol < b.Signal.Symbol
	})
}
