package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/performance"
	"perp-strategy-lab/internal/portfolio"
	"perp-strategy-lab/internal/storage"
)

// Orchestrator coordinates the full backtest sweep.
// Flow: enumerate combinations → simulate (worker pool) → score → append records.
type Orchestrator struct {
	candles     storage.CandleStore
	trades      storage.TradeStore
	records     storage.PerformanceStore
	benchmarks  storage.BenchmarkStore
	fees        domain.FeeConfig
	workers     int
	verbose     bool
	onCombiDone func()
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	CandleStore      storage.CandleStore
	TradeStore       storage.TradeStore
	PerformanceStore storage.PerformanceStore
	BenchmarkStore   storage.BenchmarkStore

	Fees domain.FeeConfig

	// Workers bounds the number of combinations simulated concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	Verbose bool

	// OnCombinationDone is called once per finished combination, from
	// the collector goroutine. Optional; used for progress display.
	OnCombinationDone func()
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Orchestrator{
		candles:     opts.CandleStore,
		trades:      opts.TradeStore,
		records:     opts.PerformanceStore,
		benchmarks:  opts.BenchmarkStore,
		fees:        opts.Fees,
		workers:     workers,
		verbose:     opts.Verbose,
		onCombiDone: opts.OnCombinationDone,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	CombinationsProcessed int
	CombinationsSkipped   int
	TradesCreated         int
	RecordsCreated        int
	Errors                []string
}

// Combinations enumerates the full parameter grid: every
// (prepare, holding) interval pair runs one momentum configuration and
// one breakout configuration per sigma.
func Combinations() []domain.StrategyConfig {
	var configs []domain.StrategyConfig
	for _, prepare := range domain.Intervals {
		for _, holding := range domain.Intervals {
			configs = append(configs, domain.StrategyConfig{
				StrategyType:    domain.StrategyTypeMomentum,
				PrepareInterval: prepare,
				HoldingInterval: holding,
			})
			for _, sigma := range domain.BreakoutSigmas {
				s := sigma
				configs = append(configs, domain.StrategyConfig{
					StrategyType:    domain.StrategyTypeBreakout,
					PrepareInterval: prepare,
					HoldingInterval: holding,
					Sigma:           &s,
				})
			}
		}
	}
	return configs
}

type combinationResult struct {
	cfg     domain.StrategyConfig
	trades  int
	records []*domain.PerformanceRecord
	skipped bool
	err     error
}

// Run executes every combination of the parameter grid. Combinations
// that cannot be scored (no trades, zero deviation) are skipped;
// storage failures abort the run.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	configs := Combinations()
	o.log("Running %d combinations on %d workers", len(configs), o.workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunner(o.candles, o.trades, o.fees)
	evaluator := performance.NewEvaluator(o.benchmarks)

	jobs := make(chan domain.StrategyConfig)
	results := make(chan combinationResult)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cfg := range jobs {
				select {
				case results <- o.runCombination(ctx, runner, evaluator, cfg):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, cfg := range configs {
			select {
			case jobs <- cfg:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single collector: the only goroutine appending to the results
	// collection, so records land in a deterministic serialized order.
	result := &RunResult{}
	for res := range results {
		result.CombinationsProcessed++
		result.TradesCreated += res.trades
		if res.err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s %s/%s: %v", res.cfg.StrategyID(), res.cfg.PrepareInterval, res.cfg.HoldingInterval, res.err))
			continue
		}
		if res.skipped {
			result.CombinationsSkipped++
		}
		for _, rec := range res.records {
			if err := o.records.Append(ctx, rec); err != nil {
				cancel()
				// Drain so workers can exit; their outcomes are lost,
				// so account for them before bailing out.
				abandoned := 0
				for range results {
					abandoned++
				}
				if abandoned > 0 {
					log.Printf("[backtest] Aborting sweep: %d in-flight combination results abandoned", abandoned)
				}
				return nil, fmt.Errorf("append performance record: %w", err)
			}
			result.RecordsCreated++
		}
		if o.onCombiDone != nil {
			o.onCombiDone()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.log("Sweep completed: %d combinations, %d skipped, %d trades, %d records, %d errors",
		result.CombinationsProcessed, result.CombinationsSkipped,
		result.TradesCreated, result.RecordsCreated, len(result.Errors))
	return result, nil
}

// runCombination simulates one combination and scores it per symbol plus
// the equal-weighted portfolio. Unscorable slices are skipped silently.
func (o *Orchestrator) runCombination(ctx context.Context, runner *Runner, evaluator *performance.Evaluator, cfg domain.StrategyConfig) combinationResult {
	res := combinationResult{cfg: cfg}

	created, err := runner.Run(ctx, cfg)
	if err != nil {
		res.err = err
		return res
	}
	res.trades = len(created)

	strategyID := cfg.StrategyID()
	trades, err := o.trades.GetByStrategy(ctx, strategyID, cfg.PrepareInterval, cfg.HoldingInterval)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			res.skipped = true
			o.log("skip %s %s/%s: no trades", strategyID, cfg.PrepareInterval, cfg.HoldingInterval)
			return res
		}
		res.err = fmt.Errorf("load trades: %w", err)
		return res
	}
	if len(trades) == 0 {
		res.skipped = true
		o.log("skip %s %s/%s: no trades", strategyID, cfg.PrepareInterval, cfg.HoldingInterval)
		return res
	}

	bySymbol := make(map[string][]*domain.Trade)
	var symbols []string
	for _, t := range trades {
		if _, ok := bySymbol[t.Symbol]; !ok {
			symbols = append(symbols, t.Symbol)
		}
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		rec, err := evaluator.Evaluate(ctx, sym, strategyID, cfg.PrepareInterval, cfg.HoldingInterval,
			performance.RowsFromTrades(bySymbol[sym]))
		if err != nil {
			if errors.Is(err, performance.ErrNoTrades) || errors.Is(err, performance.ErrZeroStddev) {
				o.log("skip %s %s/%s %s: %v", strategyID, cfg.PrepareInterval, cfg.HoldingInterval, sym, err)
				continue
			}
			res.err = fmt.Errorf("evaluate %s: %w", sym, err)
			return res
		}
		res.records = append(res.records, rec)
	}

	portfolioRows := performance.RowsFromPortfolio(portfolio.Aggregate(trades))
	rec, err := evaluator.Evaluate(ctx, domain.PortfolioSymbol, strategyID, cfg.PrepareInterval, cfg.HoldingInterval, portfolioRows)
	if err != nil {
		if errors.Is(err, performance.ErrNoTrades) || errors.Is(err, performance.ErrZeroStddev) {
			o.log("skip %s %s/%s portfolio: %v", strategyID, cfg.PrepareInterval, cfg.HoldingInterval, err)
			return res
		}
		res.err = fmt.Errorf("evaluate portfolio: %w", err)
		return res
	}
	res.records = append(res.records, rec)
	return res
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[backtest] "+format, args...)
	}
}
