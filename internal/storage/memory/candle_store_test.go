package memory

import (
	"context"
	"errors"
	"testing"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

func candle(symbol string, interval domain.Interval, start int64, close float64) domain.Candle {
	return domain.Candle{
		Symbol:    symbol,
		Interval:  interval,
		StartTime: start,
		Open:      100,
		High:      110,
		Low:       90,
		Close:     close,
	}
}

func TestCandleStore_InsertAndGetSeries(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		candle("BTCUSDT", domain.Interval5m, 2000, 101),
		candle("BTCUSDT", domain.Interval5m, 1000, 102),
		candle("ETHUSDT", domain.Interval5m, 1000, 103),
	}
	if err := store.InsertBulk(ctx, candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetSeries(ctx, "BTCUSDT", domain.Interval5m)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].StartTime != 1000 || got[1].StartTime != 2000 {
		t.Errorf("series not ordered by start_time: %v, %v", got[0].StartTime, got[1].StartTime)
	}
}

func TestCandleStore_DuplicateKey(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	c := candle("BTCUSDT", domain.Interval5m, 1000, 101)
	if err := store.InsertBulk(ctx, []domain.Candle{c}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []domain.Candle{c})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCandleStore_IntraBatchDuplicate(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	c := candle("BTCUSDT", domain.Interval5m, 1000, 101)
	err := store.InsertBulk(ctx, []domain.Candle{c, c})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Batch must not be partially applied.
	_, err = store.GetSeries(ctx, "BTCUSDT", domain.Interval5m)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after failed batch, got %v", err)
	}
}

func TestCandleStore_GetSeriesNotFound(t *testing.T) {
	store := NewCandleStore()

	_, err := store.GetSeries(context.Background(), "NOPEUSDT", domain.Interval5m)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCandleStore_GetPanelOrdering(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		candle("ETHUSDT", domain.Interval1h, 1000, 1),
		candle("BTCUSDT", domain.Interval1h, 2000, 2),
		candle("BTCUSDT", domain.Interval1h, 1000, 3),
		candle("BTCUSDT", domain.Interval5m, 1000, 4), // other interval, excluded
	}
	if err := store.InsertBulk(ctx, candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	panel, err := store.GetPanel(ctx, domain.Interval1h)
	if err != nil {
		t.Fatalf("GetPanel failed: %v", err)
	}
	if len(panel) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(panel))
	}
	if panel[0].Symbol != "BTCUSDT" || panel[1].Symbol != "ETHUSDT" {
		t.Errorf("panel not ordered by (start_time, symbol): %v %v", panel[0].Symbol, panel[1].Symbol)
	}
}

func TestCandleStore_Symbols(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		candle("ETHUSDT", domain.Interval1h, 1000, 1),
		candle("BTCUSDT", domain.Interval1h, 1000, 2),
	}
	if err := store.InsertBulk(ctx, candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	symbols, err := store.Symbols(ctx, domain.Interval1h)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Errorf("unexpected symbols: %v", symbols)
	}
}
