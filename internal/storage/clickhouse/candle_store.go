package clickhouse

import (
	"context"
	"fmt"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse. MergeTree
// does not enforce uniqueness at insert time, so duplicates are detected
// with explicit checks before the batch is sent.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. Returns ErrDuplicateKey if any
// (symbol, interval, start_time) already exists, in the batch or in the
// table; nothing is inserted in that case.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol   string
		interval domain.Interval
		start    int64
	}
	seen := make(map[key]struct{}, len(candles))
	series := make(map[string]map[domain.Interval][]int64)
	for _, c := range candles {
		k := key{c.Symbol, c.Interval, c.StartTime}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		if series[c.Symbol] == nil {
			series[c.Symbol] = make(map[domain.Interval][]int64)
		}
		series[c.Symbol][c.Interval] = append(series[c.Symbol][c.Interval], c.StartTime)
	}

	// Check for duplicates against existing DB rows, one query per series
	for symbol, intervals := range series {
		for interval, starts := range intervals {
			exists, err := s.anyExists(ctx, symbol, interval, starts)
			if err != nil {
				return fmt.Errorf("check exists: %w", err)
			}
			if exists {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval_min, start_time, open, high, low, close, volume, turnover
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, uint32(c.Interval), uint64(c.StartTime),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Turnover,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetSeries retrieves all candles for one symbol at one interval,
// ordered by start_time ASC. Returns ErrNotFound if the series is empty.
func (s *CandleStore) GetSeries(ctx context.Context, symbol string, interval domain.Interval) ([]domain.Candle, error) {
	query := `
		SELECT symbol, interval_min, start_time, open, high, low, close, volume, turnover
		FROM candles
		WHERE symbol = ? AND interval_min = ?
		ORDER BY start_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint32(interval))
	if err != nil {
		return nil, fmt.Errorf("query candle series: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, storage.ErrNotFound
	}
	return candles, nil
}

// GetPanel retrieves all candles of all symbols at one interval,
// ordered by start_time ASC, then symbol ASC.
func (s *CandleStore) GetPanel(ctx context.Context, interval domain.Interval) ([]domain.Candle, error) {
	query := `
		SELECT symbol, interval_min, start_time, open, high, low, close, volume, turnover
		FROM candles
		WHERE interval_min = ?
		ORDER BY start_time ASC, symbol ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(interval))
	if err != nil {
		return nil, fmt.Errorf("query candle panel: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Symbols lists the distinct symbols that have candles at the interval.
func (s *CandleStore) Symbols(ctx context.Context, interval domain.Interval) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM candles
		WHERE interval_min = ?
		ORDER BY symbol ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(interval))
	if err != nil {
		return nil, fmt.Errorf("query candle symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

// anyExists checks if any of the start times already exist for a series.
func (s *CandleStore) anyExists(ctx context.Context, symbol string, interval domain.Interval, starts []int64) (bool, error) {
	min, max := starts[0], starts[0]
	for _, t := range starts[1:] {
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}

	query := `
		SELECT start_time FROM candles
		WHERE symbol = ? AND interval_min = ? AND start_time >= ? AND start_time <= ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint32(interval), uint64(min), uint64(max))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	existing := make(map[int64]struct{})
	for rows.Next() {
		var start uint64
		if err := rows.Scan(&start); err != nil {
			return false, err
		}
		existing[int64(start)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, t := range starts {
		if _, ok := existing[t]; ok {
			return true, nil
		}
	}
	return false, nil
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var interval uint32
		var start uint64

		err := rows.Scan(
			&c.Symbol, &interval, &start,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Turnover,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.Interval = domain.Interval(interval)
		c.StartTime = int64(start)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
