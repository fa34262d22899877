package reporting

import "time"

// Report is the assembled backtest results report.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	SymbolCount   int
	StrategyCount int
	RecordCount   int

	// Observed trade window across all records (Unix ms).
	FirstEntryTime int64
	LastExitTime   int64

	// Per-symbol results, sorted by total crypto-market ratio descending.
	Results []ResultRow

	// Portfolio-level results, same ordering.
	Portfolio []ResultRow
}

// ResultRow is one scored combination in the report.
type ResultRow struct {
	Symbol            string
	Strategy          string
	PrepareInterval   string // minutes, e.g. "60"
	HoldingInterval   string
	FirstEntryTime    int64 // Unix ms
	LastExitTime      int64 // Unix ms
	MaxDrawdown       float64
	Return            float64 // cumulative compounded return
	StandardDeviation float64
	TBillSharpe       float64
	SP500Sharpe       float64
	CryptoSharpe      float64
}
