package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-strategy-lab/internal/domain"
)

func trade(symbol string, entry, exit int64, ret, drawdown float64) *domain.Trade {
	return &domain.Trade{
		TradeID:     symbol + "-" + string(rune('a'+entry%26)),
		Symbol:      symbol,
		StrategyID:  "MOMENTUM",
		EntryTime:   entry,
		ExitTime:    exit,
		Return:      ret,
		MaxDrawdown: drawdown,
		Side:        domain.SideLong,
	}
}

func TestAggregate_OneRowPerEntryTime(t *testing.T) {
	trades := []*domain.Trade{
		trade("BTCUSDT", 1000, 2000, 0.10, -0.05),
		trade("ETHUSDT", 1000, 2500, 0.20, -0.20),
		trade("SOLUSDT", 3000, 4000, -0.10, -0.30),
	}

	out := Aggregate(trades)
	require.Len(t, out, 2, "one output row per distinct entry_time")
	assert.Equal(t, int64(1000), out[0].EntryTime)
	assert.Equal(t, int64(3000), out[1].EntryTime)
}

func TestAggregate_EqualWeightedMean(t *testing.T) {
	trades := []*domain.Trade{
		trade("BTCUSDT", 1000, 2000, 0.10, -0.05),
		trade("ETHUSDT", 1000, 2500, 0.20, -0.20),
		trade("SOLUSDT", 1000, 1800, -0.06, -0.12),
	}

	out := Aggregate(trades)
	require.Len(t, out, 1)
	assert.InDelta(t, (0.10+0.20-0.06)/3, out[0].Return, 1e-9)
	assert.Equal(t, int64(1800), out[0].ExitTime, "earliest child exit wins")
	assert.Equal(t, -0.20, out[0].MaxDrawdown, "worst child drawdown wins")
}

func TestAggregate_SingleChildPassthrough(t *testing.T) {
	trades := []*domain.Trade{trade("BTCUSDT", 1000, 2000, 0.10, -0.05)}

	out := Aggregate(trades)
	require.Len(t, out, 1)
	assert.Equal(t, 0.10, out[0].Return)
	assert.Equal(t, int64(2000), out[0].ExitTime)
	assert.Equal(t, -0.05, out[0].MaxDrawdown)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestAggregate_OrderedByEntryTime(t *testing.T) {
	trades := []*domain.Trade{
		trade("BTCUSDT", 5000, 6000, 0.1, -0.1),
		trade("ETHUSDT", 1000, 2000, 0.1, -0.1),
		trade("SOLUSDT", 3000, 4000, 0.1, -0.1),
	}

	out := Aggregate(trades)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].EntryTime, out[i].EntryTime)
	}
}
