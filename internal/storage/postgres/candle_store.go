package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *Pool
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(pool *Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

const candleColumns = `symbol, interval_min, start_time, open, high, low, close, volume, turnover`

// InsertBulk adds multiple candles atomically. Returns ErrDuplicateKey
// if any (symbol, interval, start_time) already exists.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO candles (` + candleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, c := range candles {
		_, err := tx.Exec(ctx, query,
			c.Symbol, int(c.Interval), c.StartTime,
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Turnover,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert candle in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetSeries retrieves all candles for one symbol at one interval,
// ordered by start_time ASC. Returns ErrNotFound if the series is empty.
func (s *CandleStore) GetSeries(ctx context.Context, symbol string, interval domain.Interval) ([]domain.Candle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM candles
		WHERE symbol = $1 AND interval_min = $2
		ORDER BY start_time ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, int(interval))
	if err != nil {
		return nil, fmt.Errorf("get candle series: %w", err)
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
		SELECT ` + candleColumns + `
		FROM candles
		WHERE interval_min = $1
		ORDER BY start_time ASC, symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, int(interval))
	if err != nil {
		return nil, fmt.Errorf("get candle panel: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Symbols lists the distinct symbols that have candles at the interval.
func (s *CandleStore) Symbols(ctx context.Context, interval domain.Interval) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM candles
		WHERE interval_min = $1
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, int(interval))
	if err != nil {
		return nil, fmt.Errorf("get candle symbols: %w", err)
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

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows pgx.Rows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var interval int

		err := rows.Scan(
			&c.Symbol, &interval, &c.StartTime,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Turnover,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.Interval = domain.Interval(interval)

		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
