// Package portfolio merges per-symbol trades into equal-weighted
// portfolio positions.
package portfolio

import (
	"sort"

	"perp-strategy-lab/internal/domain"
)

// Aggregate groups a combination's trades by entry time and emits one
// synthetic equal-weighted position per distinct entry time: the mean of
// the children's returns, the worst of their drawdowns, and the earliest
// of their exits. This approximates an equal-notional basket rebalanced
// at every signal timestamp. Output is ordered by entry time.
func Aggregate(trades []*domain.Trade) []domain.PortfolioTrade {
	if len(trades) == 0 {
		return nil
	}

	groups := make(map[int64][]*domain.Trade)
	for _, t := range trades {
		groups[t.EntryTime] = append(groups[t.EntryTime], t)
	}

	out := make([]domain.PortfolioTrade, 0, len(groups))
	for entryTime, group := range groups {
		pt := domain.PortfolioTrade{
			EntryTime:   entryTime,
			ExitTime:    group[0].ExitTime,
			MaxDrawdown: group[0].MaxDrawdown,
		}
		sum := 0.0
		for _, t := range group {
			sum += t.Return
			if t.ExitTime < pt.ExitTime {
				pt.ExitTime = t.ExitTime
			}
			if t.MaxDrawdown < pt.MaxDrawdown {
				pt.MaxDrawdown = t.MaxDrawdown
			}
		}
		pt.Return = sum / float64(len(group))
		out = append(out, pt)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EntryTime < out[j].EntryTime
	})
	return out
}
