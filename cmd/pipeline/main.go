// Package main runs the full research pipeline once:
// ingestion → backtest → report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"perp-strategy-lab/internal/backtest"
	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/ingestion"
	"perp-strategy-lab/internal/observability"
	"perp-strategy-lab/internal/reporting"
	"perp-strategy-lab/internal/storage"
	chstore "perp-strategy-lab/internal/storage/clickhouse"
	"perp-strategy-lab/internal/storage/memory"
	pgstore "perp-strategy-lab/internal/storage/postgres"
)

type stores struct {
	candles     storage.CandleStore
	trades      storage.TradeStore
	performance storage.PerformanceStore
	benchmarks  storage.BenchmarkStore
}

func main() {
	// Parse flags
	baseURL := flag.String("bybit-base-url", ingestion.DefaultBaseURL, "Bybit REST API base URL")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (candles)")
	tbillCSV := flag.String("tbill-csv", "", "US 30-day T-bill benchmark CSV path")
	sp500CSV := flag.String("sp500-csv", "", "S&P 500 benchmark CSV path")
	cryptoCSV := flag.String("crypto-csv", "", "Total crypto market cap benchmark CSV path")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	workers := flag.Int("workers", 0, "Concurrent combinations (0 = number of CPUs)")
	skipIngest := flag.Bool("skip-ingest", false, "Skip ingestion, backtest stored data only")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

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
	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	// Stage 1: ingestion
	if !*skipIngest {
		start := time.Now()
		if err := runIngestion(ctx, logger, st, *baseURL, *tbillCSV, *sp500CSV, *cryptoCSV); err != nil {
			observability.RecordPipelineRun("ingestion", "error", time.Since(start).Seconds())
			logger.Fatalf("ingestion: %v", err)
		}
		observability.RecordPipelineRun("ingestion", "success", time.Since(start).Seconds())
	}

	// Stage 2: backtest
	start := time.Now()
	if err := runBacktest(ctx, logger, st, *workers); err != nil {
		observability.RecordPipelineRun("backtest", "error", time.Since(start).Seconds())
		logger.Fatalf("backtest: %v", err)
	}
	observability.RecordPipelineRun("backtest", "success", time.Since(start).Seconds())

	// Stage 3: report
	start = time.Now()
	if err := runReport(ctx, logger, st, *outputDir); err != nil {
		observability.RecordPipelineRun("report", "error", time.Since(start).Seconds())
		logger.Fatalf("report: %v", err)
	}
	observability.RecordPipelineRun("report", "success", time.Since(start).Seconds())

	logger.Println("Pipeline complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			candles:     memory.NewCandleStore(),
			trades:      memory.NewTradeStore(),
			performance: memory.NewPerformanceStore(),
			benchmarks:  memory.NewBenchmarkStore(),
		}, func() {}, nil
	}

	if postgresDSN == "" {
		return nil, nil, fmt.Errorf("--postgres-dsn is required when not using --use-memory")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	st := &stores{
		candles:     pgstore.NewCandleStore(pool),
		trades:      pgstore.NewTradeStore(pool),
		performance: pgstore.NewPerformanceStore(pool),
		benchmarks:  pgstore.NewBenchmarkStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		st.candles = chstore.NewCandleStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return st, cleanup, nil
}

func runIngestion(ctx context.Context, logger *log.Logger, st *stores, baseURL, tbillCSV, sp500CSV, cryptoCSV string) error {
	benchmarkFiles := make(map[string]string)
	if tbillCSV != "" {
		benchmarkFiles[domain.BenchmarkTBill] = tbillCSV
	}
	if sp500CSV != "" {
		benchmarkFiles[domain.BenchmarkSP500] = sp500CSV
	}
	if cryptoCSV != "" {
		benchmarkFiles[domain.BenchmarkCrypto] = cryptoCSV
	}
	if len(benchmarkFiles) > 0 {
		if err := ingestion.LoadBenchmarks(ctx, st.benchmarks, benchmarkFiles, logger); err != nil {
			return err
		}
	}

	client := ingestion.NewBybitClient(ingestion.WithBaseURL(baseURL))
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		SymbolSource: client,
		KlineSource:  client,
		CandleStore:  st.candles,
		Logger:       logger,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Printf("ingestion: %d symbols, %d skipped, %d candles, %d errors",
		result.SymbolsProcessed, result.SymbolsSkipped, result.CandlesStored, len(result.Errors))
	return nil
}

func runBacktest(ctx context.Context, logger *log.Logger, st *stores, workers int) error {
	orch := backtest.New(backtest.Options{
		CandleStore:      st.candles,
		TradeStore:       st.trades,
		PerformanceStore: st.performance,
		BenchmarkStore:   st.benchmarks,
		Fees:             domain.DefaultFees,
		Workers:          workers,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	logger.Printf("backtest: %d combinations, %d skipped, %d trades, %d records, %d errors",
		result.CombinationsProcessed, result.CombinationsSkipped,
		result.TradesCreated, result.RecordsCreated, len(result.Errors))
	return nil
}

func runReport(ctx context.Context, logger *log.Logger, st *stores, outputDir string) error {
	report, err := reporting.NewGenerator(st.performance).Generate(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	allRows := append(append([]reporting.ResultRow{}, report.Results...), report.Portfolio...)
	csvPath := filepath.Join(outputDir, "returns.csv")
	if err := reporting.AppendCSV(csvPath, allRows); err != nil {
		return err
	}

	mdPath := filepath.Join(outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return err
	}

	logger.Printf("report: %s, %s", csvPath, mdPath)
	return nil
}
