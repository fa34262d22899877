package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `trade_id, symbol, strategy_id, prepare_interval, holding_interval,
		entry_time, entry_price, exit_time, exit_price, side, max_drawdown, trade_return`

const insertTradeQuery = `
	INSERT INTO trades (` + tradeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByCombination retrieves all trades for one (symbol, strategy,
// prepare, holding) combination, ordered by entry_time ASC.
func (s *TradeStore) GetByCombination(ctx context.Context, symbol, strategyID string, prepare, holding domain.Interval) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE symbol = $1 AND strategy_id = $2 AND prepare_interval = $3 AND holding_interval = $4
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, strategyID, int(prepare), int(holding))
	if err != nil {
		return nil, fmt.Errorf("get trades by combination: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByStrategy retrieves all trades across symbols for one
// (strategy, prepare, holding) combination, ordered by entry_time ASC.
func (s *TradeStore) GetByStrategy(ctx context.Context, strategyID string, prepare, holding domain.Interval) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE strategy_id = $1 AND prepare_interval = $2 AND holding_interval = $3
		ORDER BY entry_time ASC, symbol ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID, int(prepare), int(holding))
	if err != nil {
		return nil, fmt.Errorf("get trades by strategy: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.TradeID, t.Symbol, t.StrategyID, int(t.PrepareInterval), int(t.HoldingInterval),
		t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice, string(t.Side), t.MaxDrawdown, t.Return,
	}
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var prepare, holding int
		var side string

		err := rows.Scan(
			&t.TradeID, &t.Symbol, &t.StrategyID, &prepare, &holding,
			&t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice, &side, &t.MaxDrawdown, &t.Return,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.PrepareInterval = domain.Interval(prepare)
		t.HoldingInterval = domain.Interval(holding)
		t.Side = domain.Side(side)

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
