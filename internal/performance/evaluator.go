package performance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

var (
	// ErrNoTrades signals that a combination produced no trades and has
	// nothing to score. Callers skip the combination.
	ErrNoTrades = errors.New("no trades to evaluate")

	// ErrZeroStddev signals that every return of a combination is equal,
	// making the benchmark-relative ratios undefined. Callers skip the
	// combination.
	ErrZeroStddev = errors.New("zero standard deviation of returns")
)

// Row is the minimal trade view the evaluator scores. Both per-symbol
// trades and equal-weighted portfolio rows reduce to it.
type Row struct {
	EntryTime   int64 // ms epoch
	ExitTime    int64 // ms epoch
	Return      float64
	MaxDrawdown float64
}

// RowsFromTrades converts stored trades, preserving order.
func RowsFromTrades(trades []*domain.Trade) []Row {
	rows := make([]Row, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, Row{
			EntryTime:   t.EntryTime,
			ExitTime:    t.ExitTime,
			Return:      t.Return,
			MaxDrawdown: t.MaxDrawdown,
		})
	}
	return rows
}

// RowsFromPortfolio converts aggregated portfolio rows, preserving order.
func RowsFromPortfolio(trades []domain.PortfolioTrade) []Row {
	rows := make([]Row, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, Row{
			EntryTime:   t.EntryTime,
			ExitTime:    t.ExitTime,
			Return:      t.Return,
			MaxDrawdown: t.MaxDrawdown,
		})
	}
	return rows
}

// Evaluator scores a finished combination's trade list against the
// three benchmark series and produces a performance record.
type Evaluator struct {
	benchmarks storage.BenchmarkStore
}

func NewEvaluator(benchmarks storage.BenchmarkStore) *Evaluator {
	return &Evaluator{benchmarks: benchmarks}
}

// Evaluate scores rows, which must be ordered by entry_time ASC. It
// returns ErrNoTrades on an empty list and ErrZeroStddev when every
// return is identical; both are skip conditions, not failures.
func (e *Evaluator) Evaluate(ctx context.Context, symbol, strategyID string, prepare, holding domain.Interval, rows []Row) (*domain.PerformanceRecord, error) {
	if len(rows) == 0 {
		return nil, ErrNoTrades
	}

	cumulative := 1.0
	maxDrawdown := rows[0].MaxDrawdown
	returns := make([]float64, len(rows))
	for i, r := range rows {
		cumulative *= 1 + r.Return
		returns[i] = r.Return
		if r.MaxDrawdown < maxDrawdown {
			maxDrawdown = r.MaxDrawdown
		}
	}
	cumulative -= 1

	stddev := populationStddev(returns)
	if stddev == 0 {
		return nil, ErrZeroStddev
	}

	firstEntry := rows[0].EntryTime
	lastExit := rows[len(rows)-1].ExitTime

	tbill, err := e.benchmarkReturn(ctx, domain.BenchmarkTBill, domain.BenchmarkKindPercentage, firstEntry, lastExit)
	if err != nil {
		return nil, err
	}
	sp500, err := e.benchmarkReturn(ctx, domain.BenchmarkSP500, domain.BenchmarkKindPrice, firstEntry, lastExit)
	if err != nil {
		return nil, err
	}
	crypto, err := e.benchmarkReturn(ctx, domain.BenchmarkCrypto, domain.BenchmarkKindPrice, firstEntry, lastExit)
	if err != nil {
		return nil, err
	}

	return &domain.PerformanceRecord{
		Symbol:            symbol,
		StrategyID:        strategyID,
		PrepareInterval:   prepare,
		HoldingInterval:   holding,
		FirstEntryTime:    firstEntry,
		LastExitTime:      lastExit,
		MaxDrawdown:       maxDrawdown,
		CumulativeReturn:  cumulative,
		StandardDeviation: stddev,
		TBillSharpe:       (cumulative - tbill) / stddev,
		SP500Sharpe:       (cumulative - sp500) / stddev,
		CryptoSharpe:      (cumulative - crypto) / stddev,
	}, nil
}

// benchmarkReturn fetches the series restricted to the trade window
// (converted from ms to seconds) and reduces it per its kind. A series
// with no overlap contributes a benchmark return of 0.
func (e *Evaluator) benchmarkReturn(ctx context.Context, name string, kind domain.BenchmarkKind, firstEntryMs, lastExitMs int64) (float64, error) {
	points, err := e.benchmarks.GetByTimeRange(ctx, name, firstEntryMs/1000, lastExitMs/1000)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get benchmark %s: %w", name, err)
	}
	switch kind {
	case domain.BenchmarkKindPercentage:
		return percentageBenchmarkReturn(points), nil
	default:
		return priceBenchmarkReturn(points), nil
	}
}

// populationStddev divides by N, not N-1.
func populationStddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
