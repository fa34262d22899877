package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// BenchmarkStore implements storage.BenchmarkStore using PostgreSQL.
type BenchmarkStore struct {
	pool *Pool
}

// NewBenchmarkStore creates a new BenchmarkStore.
func NewBenchmarkStore(pool *Pool) *BenchmarkStore {
	return &BenchmarkStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// InsertBulk adds multiple points atomically. Returns ErrDuplicateKey if
// any (name, time) already exists.
func (s *BenchmarkStore) InsertBulk(ctx context.Context, points []domain.BenchmarkPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO benchmarks (name, time, open, close)
		VALUES ($1, $2, $3, $4)
	`

	for _, p := range points {
		if _, err := tx.Exec(ctx, query, p.Name, p.Time, p.Open, p.Close); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert benchmark point in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByName retrieves a full series ordered by time ASC.
// Returns ErrNotFound if the series is empty.
func (s *BenchmarkStore) GetByName(ctx context.Context, name string) ([]domain.BenchmarkPoint, error) {
	query := `
		SELECT name, time, open, close
		FROM benchmarks
		WHERE name = $1
		ORDER BY time ASC
	`

	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("get benchmark series: %w", err)
	}
	defer rows.Close()

	points, err := scanBenchmarkPoints(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points, nil
}

// GetByTimeRange retrieves points of a series within [start, end]
// (inclusive, seconds), ordered by time ASC.
func (s *BenchmarkStore) GetByTimeRange(ctx context.Context, name string, start, end int64) ([]domain.BenchmarkPoint, error) {
	query := `
		SELECT name, time, open, close
		FROM benchmarks
		WHERE name = $1 AND time >= $2 AND time <= $3
		ORDER BY time ASC
	`

	rows, err := s.pool.Query(ctx, query, name, start, end)
	if err != nil {
		return nil, fmt.Errorf("get benchmark points by time range: %w", err)
	}
	defer rows.Close()

	return scanBenchmarkPoints(rows)
}

// scanBenchmarkPoints scans multiple rows into a slice of BenchmarkPoint.
func scanBenchmarkPoints(rows pgx.Rows) ([]domain.BenchmarkPoint, error) {
	var points []domain.BenchmarkPoint

	for rows.Next() {
		var p domain.BenchmarkPoint
		if err := rows.Scan(&p.Name, &p.Time, &p.Open, &p.Close); err != nil {
			return nil, fmt.Errorf("scan benchmark point row: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benchmark point rows: %w", err)
	}

	return points, nil
}
