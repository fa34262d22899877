// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	CandlesStored      prometheus.Counter
	SymbolsProcessed   prometheus.Counter
	SymbolsSkipped     prometheus.Counter
	IngestionErrors    *prometheus.CounterVec
	ExchangeAPILatency *prometheus.HistogramVec

	// Backtest metrics
	CombinationsProcessed prometheus.Counter
	CombinationsSkipped   prometheus.Counter
	TradesCreated         prometheus.Counter
	RecordsAppended       prometheus.Counter
	BacktestDuration      prometheus.Histogram

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulBacktest  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "perp_strategy_lab"
	}

	return &Metrics{
		// Ingestion metrics
		CandlesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_stored_total",
			Help:      "Total number of candles stored",
		}),
		SymbolsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "symbols_processed_total",
			Help:      "Total number of symbols fully ingested",
		}),
		SymbolsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "symbols_skipped_total",
			Help:      "Total number of symbols skipped as already ingested",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),
		ExchangeAPILatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "exchange_api_latency_seconds",
			Help:      "Exchange REST API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Backtest metrics
		CombinationsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "combinations_processed_total",
			Help:      "Total number of strategy combinations simulated",
		}),
		CombinationsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "combinations_skipped_total",
			Help:      "Total number of combinations skipped",
		}),
		TradesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_created_total",
			Help:      "Total number of new trades stored",
		}),
		RecordsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "records_appended_total",
			Help:      "Total number of performance records appended",
		}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Full backtest run duration in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by stage and status",
		}, []string{"stage", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion run",
		}),
		LastSuccessfulBacktest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordIngestionRun adds one ingestion run's counters.
func RecordIngestionRun(symbolsProcessed, symbolsSkipped, candlesStored int) {
	DefaultMetrics.SymbolsProcessed.Add(float64(symbolsProcessed))
	DefaultMetrics.SymbolsSkipped.Add(float64(symbolsSkipped))
	DefaultMetrics.CandlesStored.Add(float64(candlesStored))
}

// RecordIngestionError records an ingestion error for a stage.
func RecordIngestionError(stage string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(stage).Inc()
}

// RecordBacktestRun adds one backtest run's counters.
func RecordBacktestRun(processed, skipped, trades, records int) {
	DefaultMetrics.CombinationsProcessed.Add(float64(processed))
	DefaultMetrics.CombinationsSkipped.Add(float64(skipped))
	DefaultMetrics.TradesCreated.Add(float64(trades))
	DefaultMetrics.RecordsAppended.Add(float64(records))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline stage run.
func RecordPipelineRun(stage, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(stage, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(stage).Observe(durationSeconds)
}
