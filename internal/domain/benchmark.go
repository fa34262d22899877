package domain

// BenchmarkKind distinguishes how a benchmark series expresses returns.
type BenchmarkKind string

// Benchmark kinds.
const (
	// BenchmarkKindPercentage stores a daily rate in Open (percent, not
	// price), like a treasury bill yield series.
	BenchmarkKindPercentage BenchmarkKind = "PERCENTAGE"

	// BenchmarkKindPrice stores open/close prices, like an equity index.
	BenchmarkKindPrice BenchmarkKind = "PRICE"
)

// Benchmark names used by the performance evaluator.
const (
	BenchmarkTBill  = "US_30D_TBILL_D"
	BenchmarkSP500  = "SP500_D"
	BenchmarkCrypto = "CRYPTOMARKETCAP_D"
)

// BenchmarkPoint is one row of a benchmark series. Time is in seconds,
// unlike candle start times which are milliseconds.
type BenchmarkPoint struct {
	Name  string
	Time  int64   // seconds epoch
	Open  float64 // rate (percent) or opening price, depending on kind
	Close float64 // closing price; unused for percentage series
}
