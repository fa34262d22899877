package storage

import (
	"context"

	"perp-strategy-lab/internal/domain"
)

// CandleStore provides access to candle storage.
type CandleStore interface {
	// InsertBulk adds multiple candles. Returns ErrDuplicateKey if any
	// (symbol, interval, start_time) already exists.
	InsertBulk(ctx context.Context, candles []domain.Candle) error

	// GetSeries retrieves all candles for one symbol at one interval,
	// ordered by start_time ASC. Returns ErrNotFound if the series is empty.
	GetSeries(ctx context.Context, symbol string, interval domain.Interval) ([]domain.Candle, error)

	// GetPanel retrieves all candles of all symbols at one interval,
	// ordered by start_time ASC, then symbol ASC.
	GetPanel(ctx context.Context, interval domain.Interval) ([]domain.Candle, error)

	// Symbols lists the distinct symbols that have candles at the interval.
	Symbols(ctx context.Context, interval domain.Interval) ([]string, error)
}

// TradeStore provides access to simulated trade storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByCombination retrieves all trades for one (symbol, strategy,
	// prepare, holding) combination, ordered by entry_time ASC.
	GetByCombination(ctx context.Context, symbol, strategyID string, prepare, holding domain.Interval) ([]*domain.Trade, error)

	// GetByStrategy retrieves all trades across symbols for one
	// (strategy, prepare, holding) combination, ordered by entry_time ASC.
	GetByStrategy(ctx context.Context, strategyID string, prepare, holding domain.Interval) ([]*domain.Trade, error)
}

// PerformanceStore provides access to the results collection. The
// collection is append-only: re-runs append rather than overwrite.
type PerformanceStore interface {
	// Append adds a performance record to the results collection.
	Append(ctx context.Context, r *domain.PerformanceRecord) error

	// GetAll retrieves all records in insertion order.
	GetAll(ctx context.Context) ([]*domain.PerformanceRecord, error)
}

// BenchmarkStore provides read access to benchmark series.
type BenchmarkStore interface {
	// InsertBulk adds multiple points. Returns ErrDuplicateKey if any
	// (name, time) already exists.
	InsertBulk(ctx context.Context, points []domain.BenchmarkPoint) error

	// GetByName retrieves a full series ordered by time ASC.
	// Returns ErrNotFound if the series is empty.
	GetByName(ctx context.Context, name string) ([]domain.BenchmarkPoint, error)

	// GetByTimeRange retrieves points of a series within [start, end]
	// (inclusive, seconds), ordered by time ASC.
	GetByTimeRange(ctx context.Context, name string, start, end int64) ([]domain.BenchmarkPoint, error)
}
