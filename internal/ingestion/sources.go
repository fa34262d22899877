// Package ingestion fetches exchange candles and benchmark series into
// the candle and benchmark stores.
package ingestion

import (
	"context"

	"perp-strategy-lab/internal/domain"
)

// SymbolSource lists the tradable symbols to ingest.
type SymbolSource interface {
	// Symbols returns the USDT-quoted perpetual symbols.
	Symbols(ctx context.Context) ([]string, error)
}

// KlineSource fetches historical candles for one symbol.
type KlineSource interface {
	// Kline returns all finished candles of a symbol at an interval
	// with start times in [from, until), ordered by start_time ASC.
	Kline(ctx context.Context, symbol string, interval domain.Interval, from, until int64) ([]domain.Candle, error)
}
