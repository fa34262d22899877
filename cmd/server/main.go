// Package main provides a unified server that runs the research loop on a
// schedule:
// - Ingestion (daily): Bybit candles, resampled intervals, benchmarks
// - Backtest (scheduled): the full parameter grid over stored candles
// - Reporting (scheduled): returns.csv and REPORT.md
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
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

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	bybitBaseURL     string
	benchmarkFiles   map[string]string
	outputDir        string
	ingestInterval   time.Duration
	backtestInterval time.Duration
	reportInterval   time.Duration
	workers          int

	// Stores
	stores *allStores

	logger *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastIngestRun   time.Time
	lastBacktestRun time.Time
	lastReportRun   time.Time
	ingestRunning   bool
	backtestRunning bool
	reportRunning   bool

	// Stats
	ingestRuns   int
	backtestRuns int
	reportRuns   int
}

// allStores holds all storage implementations.
type allStores struct {
	candleStore      storage.CandleStore
	tradeStore       storage.TradeStore
	performanceStore storage.PerformanceStore
	benchmarkStore   storage.BenchmarkStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	baseURL := flag.String("bybit-base-url", envOr("BYBIT_BASE_URL", ingestion.DefaultBaseURL), "Bybit REST API base URL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (candles)")
	tbillCSV := flag.String("tbill-csv", os.Getenv("TBILL_CSV"), "US 30-day T-bill benchmark CSV path")
	sp500CSV := flag.String("sp500-csv", os.Getenv("SP500_CSV"), "S&P 500 benchmark CSV path")
	cryptoCSV := flag.String("crypto-csv", os.Getenv("CRYPTO_CSV"), "Total crypto market cap benchmark CSV path")
	outputDir := flag.String("output-dir", "output", "Output directory for reports")
	ingestInterval := flag.Duration("ingest-interval", 24*time.Hour, "Ingestion run interval")
	backtestInterval := flag.Duration("backtest-interval", 24*time.Hour, "Backtest run interval")
	reportInterval := flag.Duration("report-interval", 24*time.Hour, "Report generation interval")
	workers := flag.Int("workers", 0, "Concurrent combinations (0 = number of CPUs)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for health/metrics/status")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

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

	// Create server
	server := &Server{
		bybitBaseURL:     *baseURL,
		benchmarkFiles:   benchmarkFiles,
		outputDir:        *outputDir,
		ingestInterval:   *ingestInterval,
		backtestInterval: *backtestInterval,
		reportInterval:   *reportInterval,
		workers:          *workers,
		stores:           stores,
		logger:           logger,
		started:          time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	// Run the unified server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		return &allStores{
			candleStore:      memory.NewCandleStore(),
			tradeStore:       memory.NewTradeStore(),
			performanceStore: memory.NewPerformanceStore(),
			benchmarkStore:   memory.NewBenchmarkStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	stores := &allStores{
		candleStore:      pgstore.NewCandleStore(pool),
		tradeStore:       pgstore.NewTradeStore(pool),
		performanceStore: pgstore.NewPerformanceStore(pool),
		benchmarkStore:   pgstore.NewBenchmarkStore(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse (candles)
	if clickhouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.candleStore = chstore.NewCandleStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// Run starts all schedulers and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting unified server...")

	errCh := make(chan error, 3)

	go func() {
		if err := s.runScheduler(ctx, "ingestion", s.ingestInterval, s.runIngest); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ingestion scheduler: %w", err)
		}
	}()

	go func() {
		// Let the first ingestion land before backtesting
		if err := s.runDelayedScheduler(ctx, "backtest", time.Minute, s.backtestInterval, s.runBacktest); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("backtest scheduler: %w", err)
		}
	}()

	go func() {
		if err := s.runDelayedScheduler(ctx, "report", 2*time.Minute, s.reportInterval, s.runReport); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("report scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runScheduler runs fn immediately and then on every tick.
func (s *Server) runScheduler(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) error {
	s.logger.Printf("Starting %s scheduler (interval: %v)...", name, interval)

	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// runDelayedScheduler is runScheduler with an initial delay.
func (s *Server) runDelayedScheduler(ctx context.Context, name string, delay, interval time.Duration, fn func(context.Context)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return s.runScheduler(ctx, name, interval, fn)
}

// runIngest executes one ingestion pass.
func (s *Server) runIngest(ctx context.Context) {
	s.mu.Lock()
	if s.ingestRunning {
		s.mu.Unlock()
		s.logger.Println("Ingestion already running, skipping...")
		return
	}
	s.ingestRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ingestRunning = false
		s.lastIngestRun = time.Now()
		s.ingestRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Running ingestion...")
	start := time.Now()

	if len(s.benchmarkFiles) > 0 {
		if err := ingestion.LoadBenchmarks(ctx, s.stores.benchmarkStore, s.benchmarkFiles, s.logger); err != nil {
			s.logger.Printf("Benchmark load error: %v", err)
			observability.RecordPipelineRun("ingestion", "error", time.Since(start).Seconds())
			return
		}
	}

	client := ingestion.NewBybitClient(ingestion.WithBaseURL(s.bybitBaseURL))
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		SymbolSource: client,
		KlineSource:  client,
		CandleStore:  s.stores.candleStore,
		Logger:       s.logger,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		s.logger.Printf("Ingestion error: %v", err)
		observability.RecordPipelineRun("ingestion", "error", time.Since(start).Seconds())
		return
	}

	s.logger.Printf("Ingestion completed in %v: %d symbols, %d skipped, %d candles, %d errors",
		time.Since(start), result.SymbolsProcessed, result.SymbolsSkipped,
		result.CandlesStored, len(result.Errors))

	observability.RecordIngestionRun(result.SymbolsProcessed, result.SymbolsSkipped, result.CandlesStored)
	observability.DefaultMetrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))
	observability.RecordPipelineRun("ingestion", "success", time.Since(start).Seconds())
}

// runBacktest executes one full-grid backtest pass.
func (s *Server) runBacktest(ctx context.Context) {
	s.mu.Lock()
	if s.backtestRunning {
		s.mu.Unlock()
		s.logger.Println("Backtest already running, skipping...")
		return
	}
	s.backtestRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.backtestRunning = false
		s.lastBacktestRun = time.Now()
		s.backtestRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Running backtest...")
	start := time.Now()

	orch := backtest.New(backtest.Options{
		CandleStore:      s.stores.candleStore,
		TradeStore:       s.stores.tradeStore,
		PerformanceStore: s.stores.performanceStore,
		BenchmarkStore:   s.stores.benchmarkStore,
		Fees:             domain.DefaultFees,
		Workers:          s.workers,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		s.logger.Printf("Backtest error: %v", err)
		observability.RecordPipelineRun("backtest", "error", time.Since(start).Seconds())
		return
	}

	s.logger.Printf("Backtest completed in %v: %d combinations, %d skipped, %d trades, %d records",
		time.Since(start), result.CombinationsProcessed, result.CombinationsSkipped,
		result.TradesCreated, result.RecordsCreated)

	observability.RecordBacktestRun(result.CombinationsProcessed, result.CombinationsSkipped,
		result.TradesCreated, result.RecordsCreated)
	observability.DefaultMetrics.BacktestDuration.Observe(time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulBacktest.Set(float64(time.Now().Unix()))
	observability.RecordPipelineRun("backtest", "success", time.Since(start).Seconds())
}

// runReport generates reports.
func (s *Server) runReport(ctx context.Context) {
	s.mu.Lock()
	if s.reportRunning {
		s.mu.Unlock()
		s.logger.Println("Report generation already running, skipping...")
		return
	}
	s.reportRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reportRunning = false
		s.lastReportRun = time.Now()
		s.reportRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Generating reports...")
	start := time.Now()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		s.logger.Printf("Failed to create output directory: %v", err)
		return
	}

	report, err := reporting.NewGenerator(s.stores.performanceStore).Generate(ctx)
	if err != nil {
		s.logger.Printf("Report generation error: %v", err)
		observability.RecordPipelineRun("report", "error", time.Since(start).Seconds())
		return
	}

	allRows := append(append([]reporting.ResultRow{}, report.Results...), report.Portfolio...)
	csvPath := filepath.Join(s.outputDir, "returns.csv")
	if err := reporting.AppendCSV(csvPath, allRows); err != nil {
		s.logger.Printf("CSV write error: %v", err)
		observability.RecordPipelineRun("report", "error", time.Since(start).Seconds())
		return
	}

	mdPath := filepath.Join(s.outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		s.logger.Printf("Markdown write error: %v", err)
		observability.RecordPipelineRun("report", "error", time.Since(start).Seconds())
		return
	}

	s.logger.Printf("Reports generated in %v to %s/", time.Since(start), s.outputDir)
	observability.RecordPipelineRun("report", "success", time.Since(start).Seconds())
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	LastIngestRun   time.Time `json:"last_ingest_run,omitempty"`
	LastBacktestRun time.Time `json:"last_backtest_run,omitempty"`
	LastReportRun   time.Time `json:"last_report_run,omitempty"`
	IngestRuns      int       `json:"ingest_runs"`
	BacktestRuns    int       `json:"backtest_runs"`
	ReportRuns      int       `json:"report_runs"`
	IngestRunning   bool      `json:"ingest_running"`
	BacktestRunning bool      `json:"backtest_running"`
	ReportRunning   bool      `json:"report_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		LastIngestRun:   s.lastIngestRun,
		LastBacktestRun: s.lastBacktestRun,
		LastReportRun:   s.lastReportRun,
		IngestRuns:      s.ingestRuns,
		BacktestRuns:    s.backtestRuns,
		ReportRuns:      s.reportRuns,
		IngestRunning:   s.ingestRunning,
		BacktestRunning: s.backtestRunning,
		ReportRunning:   s.reportRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// envOr returns the environment variable value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
