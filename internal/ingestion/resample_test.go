package ingestion

import (
	"testing"

	"perp-strategy-lab/internal/domain"
)

const minuteMs = int64(60 * 1000)

func baseCandle(start int64, open, high, low, close float64) domain.Candle {
	return domain.Candle{
		Symbol: "BTCUSDT", Interval: domain.Interval5m, StartTime: start,
		Open: open, High: high, Low: low, Close: close,
		Volume: 1, Turnover: 100,
	}
}

func TestResample_AggregatesBuckets(t *testing.T) {
	// Three 5m candles forming one 15m bucket, plus one in the next.
	candles := []domain.Candle{
		baseCandle(0, 100, 102, 99, 101),
		baseCandle(5*minuteMs, 101, 105, 100, 104),
		baseCandle(10*minuteMs, 104, 104, 95, 96),
		baseCandle(15*minuteMs, 96, 97, 94, 95),
	}

	out := Resample(candles, domain.Interval15m)
	if len(out) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(out))
	}

	first := out[0]
	if first.StartTime != 0 {
		t.Errorf("start_time: got %d", first.StartTime)
	}
	if first.Interval != domain.Interval15m {
		t.Errorf("interval: got %v", first.Interval)
	}
	if first.Open != 100 {
		t.Errorf("open: got %v", first.Open)
	}
	if first.High != 105 {
		t.Errorf("high: got %v", first.High)
	}
	if first.Low != 95 {
		t.Errorf("low: got %v", first.Low)
	}
	if first.Close != 96 {
		t.Errorf("close: got %v", first.Close)
	}
	if first.Volume != 3 {
		t.Errorf("volume: got %v", first.Volume)
	}
	if first.Turnover != 300 {
		t.Errorf("turnover: got %v", first.Turnover)
	}

	second := out[1]
	if second.StartTime != 15*minuteMs {
		t.Errorf("second start_time: got %d", second.StartTime)
	}
	if second.Open != 96 || second.Close != 95 {
		t.Errorf("second prices: open %v close %v", second.Open, second.Close)
	}
}

func TestResample_SkipsEmptyBuckets(t *testing.T) {
	// A gap of several buckets between the two candles.
	candles := []domain.Candle{
		baseCandle(0, 100, 101, 99, 100),
		baseCandle(60*minuteMs, 100, 101, 99, 100),
	}

	out := Resample(candles, domain.Interval15m)
	if len(out) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(out))
	}
	if out[0].StartTime != 0 || out[1].StartTime != 60*minuteMs {
		t.Errorf("start_times: %d, %d", out[0].StartTime, out[1].StartTime)
	}
}

func TestResample_UnorderedInput(t *testing.T) {
	candles := []domain.Candle{
		baseCandle(10*minuteMs, 104, 104, 95, 96),
		baseCandle(0, 100, 102, 99, 101),
		baseCandle(5*minuteMs, 101, 105, 100, 104),
	}

	out := Resample(candles, domain.Interval15m)
	if len(out) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(out))
	}
	if out[0].Open != 100 || out[0].Close != 96 {
		t.Errorf("prices: open %v close %v", out[0].Open, out[0].Close)
	}
}

func TestResample_Empty(t *testing.T) {
	if out := Resample(nil, domain.Interval15m); out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}
