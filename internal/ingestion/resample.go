package ingestion

import (
	"sort"

	"perp-strategy-lab/internal/domain"
)

// Resample aggregates base-interval candles of one symbol into a coarser
// interval on wall-clock-aligned buckets: open of the first candle, max
// high, min low, close of the last candle, volume and turnover summed.
// Buckets with no candles are omitted. Input order does not matter.
func Resample(candles []domain.Candle, target domain.Interval) []domain.Candle {
	if len(candles) == 0 {
		return nil
	}

	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sortCandlesByStart(sorted)

	targetMs := target.Millis()
	var out []domain.Candle
	for _, c := range sorted {
		bucket := c.StartTime - c.StartTime%targetMs

		if len(out) == 0 || out[len(out)-1].StartTime != bucket {
			out = append(out, domain.Candle{
				Symbol:    c.Symbol,
				Interval:  target,
				StartTime: bucket,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
				Turnover:  c.Turnover,
			})
			continue
		}

		last := &out[len(out)-1]
		if c.High > last.High {
			last.High = c.High
		}
		if c.Low < last.Low {
			last.Low = c.Low
		}
		last.Close = c.Close
		last.Volume += c.Volume
		last.Turnover += c.Turnover
	}
	return out
}

func sortCandlesByStart(candles []domain.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].StartTime < candles[j].StartTime
	})
}
