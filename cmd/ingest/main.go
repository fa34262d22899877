package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/ingestion"
	"perp-strategy-lab/internal/observability"
	"perp-strategy-lab/internal/storage"
	chstore "perp-strategy-lab/internal/storage/clickhouse"
	"perp-strategy-lab/internal/storage/memory"
	pgstore "perp-strategy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	baseURL := flag.String("bybit-base-url", ingestion.DefaultBaseURL, "Bybit REST API base URL")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (trades, results, benchmarks)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (candles; falls back to PostgreSQL)")
	untilStr := flag.String("until", "", "History cutoff, RFC3339 (default: start of current UTC day)")
	tbillCSV := flag.String("tbill-csv", "", "US 30-day T-bill benchmark CSV path")
	sp500CSV := flag.String("sp500-csv", "", "S&P 500 benchmark CSV path")
	cryptoCSV := flag.String("crypto-csv", "", "Total crypto market cap benchmark CSV path")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

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
		benchmarkStore = pgstore.NewBenchmarkStore(pool)

		// ClickHouse takes the candle volume when configured
		if *clickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()

			candleStore = chstore.NewCandleStore(conn)
		}
	}

	// Parse history cutoff
	var until func() int64
	if *untilStr != "" {
		t, err := time.Parse(time.RFC3339, *untilStr)
		if err != nil {
			logger.Fatalf("parse --until: %v", err)
		}
		ms := t.UnixMilli()
		until = func() int64 { return ms }
	}

	// Load benchmark series first so a candle fetch failure does not block them
	benchmarkFiles := make(map[string]string)
	if *tbillCSV != "" {
		benchmarkFiles[domain.BenchmarkTBill] = *tbillCSV
	}
	if *sp500CSV != "" {
		benchmarkFiles[domain.BenchmarkSP500] = *sp500CSV
	}
	if *cryptoCSV != "" {
		benchmarkFiles[domain.BenchmarkCrypto] = *cryptoCSV
	}
	if len(benchmarkFiles) > 0 {
		if err := ingestion.LoadBenchmarks(ctx, benchmarkStore, benchmarkFiles, logger); err != nil {
			logger.Fatalf("load benchmarks: %v", err)
		}
	}

	// Create exchange client and runner
	client := ingestion.NewBybitClient(ingestion.WithBaseURL(*baseURL))

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		SymbolSource: client,
		KlineSource:  client,
		CandleStore:  candleStore,
		Until:        until,
		Logger:       logger,
	})

	logger.Println("Starting ingestion...")
	start := time.Now()

	result, err := runner.Run(ctx)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	for _, e := range result.Errors {
		logger.Printf("error: %s", e)
		observability.RecordIngestionError("fetch")
	}

	observability.RecordIngestionRun(result.SymbolsProcessed, result.SymbolsSkipped, result.CandlesStored)
	observability.DefaultMetrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))

	logger.Printf("Ingestion complete in %v: %d symbols processed, %d skipped, %d candles stored, %d errors",
		time.Since(start), result.SymbolsProcessed, result.SymbolsSkipped,
		result.CandlesStored, len(result.Errors))
}
