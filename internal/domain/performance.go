package domain

// PortfolioSymbol is the symbol value used for portfolio-level records.
const PortfolioSymbol = "portfolio"

// PerformanceRecord holds the scored result of one (symbol-or-portfolio,
// strategy, prepare_interval, holding_interval) combination. Records are
// created once after all trades of the combination are known and never
// mutated; re-runs append new records instead of overwriting.
type PerformanceRecord struct {
	Symbol          string // symbol or PortfolioSymbol
	StrategyID      string
	PrepareInterval Interval
	HoldingInterval Interval

	FirstEntryTime int64 // ms epoch
	LastExitTime   int64 // ms epoch

	MaxDrawdown       float64
	CumulativeReturn  float64
	StandardDeviation float64 // population stddev of the return column

	// Benchmark-relative ratios: (cumulative - benchmark) / stddev.
	TBillSharpe  float64
	SP500Sharpe  float64
	CryptoSharpe float64
}
