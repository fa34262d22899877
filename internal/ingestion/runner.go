package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// Runner orchestrates candle ingestion: fetch every symbol at the base
// interval, resample into the coarser intervals, and store all of it.
type Runner struct {
	symbols SymbolSource
	klines  KlineSource
	candles storage.CandleStore
	until   func() int64
	logger  *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	SymbolSource SymbolSource
	KlineSource  KlineSource
	CandleStore  storage.CandleStore

	// Until bounds fetched history (exclusive, ms). Defaults to the
	// start of the current UTC day, matching the daily research cadence.
	Until func() int64

	Logger *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	until := opts.Until
	if until == nil {
		until = startOfCurrentDay
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		symbols: opts.SymbolSource,
		klines:  opts.KlineSource,
		candles: opts.CandleStore,
		until:   until,
		logger:  logger,
	}
}

// RunResult contains counts from an ingestion run.
type RunResult struct {
	SymbolsProcessed int
	SymbolsSkipped   int
	CandlesStored    int
	Errors           []string
}

// Run ingests all symbols. Symbols whose data is already stored are
// skipped; fetch or parse failures skip the symbol and are reported in
// the result instead of aborting the whole run.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	symbols, err := r.symbols.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	r.logger.Printf("[ingestion] fetching %d symbols", len(symbols))

	result := &RunResult{}
	until := r.until()

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stored, err := r.ingestSymbol(ctx, symbol, until)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				result.SymbolsSkipped++
				r.logger.Printf("[ingestion] skip %s: already ingested", symbol)
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", symbol, err))
			continue
		}

		result.SymbolsProcessed++
		result.CandlesStored += stored
		r.logger.Printf("[ingestion] %s: stored %d candles", symbol, stored)
	}

	r.logger.Printf("[ingestion] done: %d symbols, %d skipped, %d candles, %d errors",
		result.SymbolsProcessed, result.SymbolsSkipped, result.CandlesStored, len(result.Errors))
	return result, nil
}

// ingestSymbol fetches the base-interval series of one symbol, stores
// it, and stores every resampled coarser interval.
func (r *Runner) ingestSymbol(ctx context.Context, symbol string, until int64) (int, error) {
	base, err := r.klines.Kline(ctx, symbol, domain.BaseInterval, HistoryStart, until)
	if err != nil {
		return 0, fmt.Errorf("fetch kline: %w", err)
	}
	if len(base) == 0 {
		return 0, nil
	}

	stored := 0
	if err := r.candles.InsertBulk(ctx, base); err != nil {
		return 0, err
	}
	stored += len(base)

	for _, interval := range domain.Intervals {
		if interval == domain.BaseInterval {
			continue
		}
		resampled := Resample(base, interval)
		if len(resampled) == 0 {
			continue
		}
		if err := r.candles.InsertBulk(ctx, resampled); err != nil {
			return stored, fmt.Errorf("store %s series: %w", interval, err)
		}
		stored += len(resampled)
	}
	return stored, nil
}

// LoadBenchmarks reads benchmark CSV files into the benchmark store.
// Files maps benchmark name to file path. Series already stored are
// skipped.
func LoadBenchmarks(ctx context.Context, store storage.BenchmarkStore, files map[string]string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	for name, path := range files {
		points, err := LoadBenchmarkCSV(path, name)
		if err != nil {
			return err
		}
		if err := store.InsertBulk(ctx, points); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				logger.Printf("[ingestion] skip benchmark %s: already loaded", name)
				continue
			}
			return fmt.Errorf("store benchmark %s: %w", name, err)
		}
		logger.Printf("[ingestion] benchmark %s: loaded %d points", name, len(points))
	}
	return nil
}

func startOfCurrentDay() int64 {
	const dayMs = int64(24 * 60 * 60 * 1000)
	now := time.Now().UnixMilli()
	return now - now%dayMs
}
