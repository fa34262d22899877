package postgres

import (
	"context"
	"fmt"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// PerformanceStore implements storage.PerformanceStore using PostgreSQL.
// The table is append-only; re-runs add rows instead of overwriting.
type PerformanceStore struct {
	pool *Pool
}

// NewPerformanceStore creates a new PerformanceStore.
func NewPerformanceStore(pool *Pool) *PerformanceStore {
	return &PerformanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PerformanceStore = (*PerformanceStore)(nil)

// Append adds a performance record to the results collection.
func (s *PerformanceStore) Append(ctx context.Context, r *domain.PerformanceRecord) error {
	query := `
		INSERT INTO performance_records (
			symbol, strategy_id, prepare_interval, holding_interval,
			first_entry_time, last_exit_time,
			max_drawdown, cumulative_return, standard_deviation,
			tbill_sharpe, sp500_sharpe, crypto_sharpe
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Symbol, r.StrategyID, int(r.PrepareInterval), int(r.HoldingInterval),
		r.FirstEntryTime, r.LastExitTime,
		r.MaxDrawdown, r.CumulativeReturn, r.StandardDeviation,
		r.TBillSharpe, r.SP500Sharpe, r.CryptoSharpe,
	)
	if err != nil {
		return fmt.Errorf("append performance record: %w", err)
	}
	return nil
}

// GetAll retrieves all records in insertion order.
func (s *PerformanceStore) GetAll(ctx context.Context) ([]*domain.PerformanceRecord, error) {
	query := `
		SELECT
			symbol, strategy_id, prepare_interval, holding_interval,
			first_entry_time, last_exit_time,
			max_drawdown, cumulative_return, standard_deviation,
			tbill_sharpe, sp500_sharpe, crypto_sharpe
		FROM performance_records
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all performance records: %w", err)
	}
	defer rows.Close()

	var records []*domain.PerformanceRecord
	for rows.Next() {
		var r domain.PerformanceRecord
		var prepare, holding int

		err := rows.Scan(
			&r.Symbol, &r.StrategyID, &prepare, &holding,
			&r.FirstEntryTime, &r.LastExitTime,
			&r.MaxDrawdown, &r.CumulativeReturn, &r.StandardDeviation,
			&r.TBillSharpe, &r.SP500Sharpe, &r.CryptoSharpe,
		)
		if err != nil {
			return nil, fmt.Errorf("scan performance record row: %w", err)
		}
		r.PrepareInterval = domain.Interval(prepare)
		r.HoldingInterval = domain.Interval(holding)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance record rows: %w", err)
	}

	return records, nil
}
