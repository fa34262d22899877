package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-strategy-lab/internal/domain"
)

func holdingSeries(symbol string, interval domain.Interval, starts ...int64) []domain.Candle {
	candles := make([]domain.Candle, len(starts))
	for i, s := range starts {
		candles[i] = domain.Candle{
			Symbol:    symbol,
			Interval:  interval,
			StartTime: s,
			Open:      100,
			High:      105,
			Low:       95,
			Close:     102,
		}
	}
	return candles
}

func TestAlign_FirstCandleAtOrAfter(t *testing.T) {
	h := domain.Interval1h.Millis()
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0, h, 2*h, 3*h)

	// Signal at t=0 with 5m prepare: earliest entry is t=5m, so the
	// first eligible holding candle starts at 1h.
	signals := []domain.Signal{{Symbol: "BTCUSDT", Time: 0, Side: domain.SideLong}}

	out := Align(signals, holding, domain.Interval5m)
	require.Len(t, out, 1)
	assert.Equal(t, h, out[0].Entry.StartTime)
	assert.Equal(t, 2*h, out[0].ExitTime)
}

func TestAlign_ExactBoundaryMatches(t *testing.T) {
	h := domain.Interval1h.Millis()
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0, h, 2*h)

	// earliest == candle start counts as a match ("at or after").
	signals := []domain.Signal{{Symbol: "BTCUSDT", Time: h - domain.Interval5m.Millis(), Side: domain.SideLong}}

	out := Align(signals, holding, domain.Interval5m)
	require.Len(t, out, 1)
	assert.Equal(t, h, out[0].Entry.StartTime)
}

func TestAlign_NoLookAhead(t *testing.T) {
	h := domain.Interval1h.Millis()
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0, h, 2*h, 3*h)

	signals := []domain.Signal{
		{Symbol: "BTCUSDT", Time: 0, Side: domain.SideLong},
		{Symbol: "BTCUSDT", Time: h, Side: domain.SideShort},
	}

	out := Align(signals, holding, domain.Interval5m)
	for _, c := range out {
		assert.GreaterOrEqual(t, c.Entry.StartTime, c.Signal.Time+domain.Interval5m.Millis(),
			"entry must never precede earliest holding time")
		assert.Greater(t, c.ExitTime, c.Entry.StartTime)
	}
}

func TestAlign_GapAddsSlack(t *testing.T) {
	h := domain.Interval1h.Millis()
	// Gap between the first and second candles.
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0, 5*h, 6*h)

	signals := []domain.Signal{{Symbol: "BTCUSDT", Time: 0, Side: domain.SideLong}}

	out := Align(signals, holding, domain.Interval5m)
	require.Len(t, out, 1)
	assert.Equal(t, 5*h, out[0].Entry.StartTime)
}

func TestAlign_LastCandleNeverOpens(t *testing.T) {
	h := domain.Interval1h.Millis()
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0, h)

	// The only eligible candle is the final one: no successor to exit
	// into, so the signal is dropped.
	signals := []domain.Signal{{Symbol: "BTCUSDT", Time: 0, Side: domain.SideLong}}

	assert.Empty(t, Align(signals, holding, domain.Interval5m))
}

func TestAlign_NoMatchDropped(t *testing.T) {
	h := domain.Interval1h.Millis()
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0, h, 2*h)

	// Signal far beyond the holding data.
	signals := []domain.Signal{{Symbol: "BTCUSDT", Time: 10 * h, Side: domain.SideLong}}

	assert.Empty(t, Align(signals, holding, domain.Interval5m))
}

func TestAlign_MultipleSignalsSameEntryCandle(t *testing.T) {
	d := domain.Interval1d.Millis()
	holding := holdingSeries("BTCUSDT", domain.Interval1d, 0, d, 2*d)

	// Two 5m signals inside the same day both map to the next daily candle.
	signals := []domain.Signal{
		{Symbol: "BTCUSDT", Time: 0, Side: domain.SideLong},
		{Symbol: "BTCUSDT", Time: domain.Interval5m.Millis(), Side: domain.SideShort},
	}

	out := Align(signals, holding, domain.Interval5m)
	require.Len(t, out, 2)
	assert.Equal(t, out[0].Entry.StartTime, out[1].Entry.StartTime)
}

func TestAlign_TooFewHoldingCandles(t *testing.T) {
	holding := holdingSeries("BTCUSDT", domain.Interval1h, 0)
	signals := []domain.Signal{{Symbol: "BTCUSDT", Time: 0, Side: domain.SideLong}}

	assert.Empty(t, Align(signals, holding, domain.Interval5m))
}
