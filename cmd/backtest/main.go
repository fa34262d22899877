package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"perp-strategy-lab/internal/backtest"
	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/observability"
	"perp-strategy-lab/internal/reporting"
	"perp-strategy-lab/internal/storage"
	chstore "perp-strategy-lab/internal/storage/clickhouse"
	"perp-strategy-lab/internal/storage/memory"
	pgstore "perp-strategy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (trades, results, benchmarks)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (candles; falls back to PostgreSQL)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	workers := flag.Int("workers", 0, "Concurrent combinations (0 = number of CPUs)")
	noFunding := flag.Bool("no-funding", false, "Disable funding rate decay")
	verbose := flag.Bool("verbose", false, "Log per-combination progress")
	noProgress := flag.Bool("no-progress", false, "Disable the progress bar")
	resultsCSV := flag.String("results-csv", "", "Append this run's records to a results CSV file")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var candleStore storage.CandleStore = memory.NewCandleStore()
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var performanceStore storage.PerformanceStore = memory.NewPerformanceStore()
	var benchmarkStore storage.BenchmarkStore = memory.NewBenchmarkStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		candleStore = pgstore.NewCandleStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
		performanceStore = pgstore.NewPerformanceStore(pool)
		benchmarkStore = pgstore.NewBenchmarkStore(pool)

		if *clickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()

			candleStore = chstore.NewCandleStore(conn)
		}
	}

	// Cost model
	fees := domain.DefaultFees
	if *noFunding {
		fees = fees.WithoutFunding()
	}

	// Progress bar over the parameter grid
	total := len(backtest.Combinations())
	var onDone func()
	if !*noProgress {
		bar := initProgressBar(total)
		onDone = func() { bar.Add(1) }
	}

	// Create and run orchestrator
	orch := backtest.New(backtest.Options{
		CandleStore:       candleStore,
		TradeStore:        tradeStore,
		PerformanceStore:  performanceStore,
		BenchmarkStore:    benchmarkStore,
		Fees:              fees,
		Workers:           *workers,
		Verbose:           *verbose,
		OnCombinationDone: onDone,
	})

	logger.Printf("Running backtest over %d combinations...", total)
	start := time.Now()

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	// Record metrics
	observability.RecordBacktestRun(result.CombinationsProcessed, result.CombinationsSkipped,
		result.TradesCreated, result.RecordsCreated)
	observability.DefaultMetrics.BacktestDuration.Observe(time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulBacktest.Set(float64(time.Now().Unix()))

	// Append this run's records to the results file. GetAll returns
	// insertion order, so the run's records are the tail.
	if *resultsCSV != "" && result.RecordsCreated > 0 {
		records, err := performanceStore.GetAll(ctx)
		if err != nil {
			logger.Fatalf("load records: %v", err)
		}
		created := records[len(records)-result.RecordsCreated:]
		if err := reporting.AppendCSV(*resultsCSV, reporting.RowsFromRecords(created)); err != nil {
			logger.Fatalf("append results csv: %v", err)
		}
		logger.Printf("Appended %d rows to %s", result.RecordsCreated, *resultsCSV)
	}

	fmt.Println()
	fmt.Println("=== Backtest Summary ===")
	fmt.Printf("Duration:               %v\n", time.Since(start).Round(time.Second))
	fmt.Printf("Combinations processed: %d\n", result.CombinationsProcessed)
	fmt.Printf("Combinations skipped:   %d\n", result.CombinationsSkipped)
	fmt.Printf("Trades created:         %d\n", result.TradesCreated)
	fmt.Printf("Records created:        %d\n", result.RecordsCreated)
	if len(result.Errors) > 0 {
		fmt.Printf("Errors:                 %d\n", len(result.Errors))
		for _, e := range result.Errors {
			logger.Printf("error: %s", e)
		}
	}
}

func initProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
