package domain

// Trade represents one closed position over a single holding-interval bar.
// ExitTime is the start of the holding candle immediately following the
// entry candle, so EntryTime < ExitTime always holds. MaxDrawdown and
// Return are floored at -1: a position cannot lose more than its value.
type Trade struct {
	TradeID         string // deterministic hash
	Symbol          string
	StrategyID      string // strategy identifier including parameters
	PrepareInterval Interval
	HoldingInterval Interval

	EntryTime  int64 // ms epoch
	EntryPrice float64
	ExitTime   int64 // ms epoch
	ExitPrice  float64
	Side       Side

	MaxDrawdown float64 // in [-1, 0]
	Return      float64 // in [-1, +inf)
}

// PortfolioTrade is one synthetic equal-weighted position built from all
// trades of a combination that share an entry timestamp.
type PortfolioTrade struct {
	EntryTime   int64
	ExitTime    int64   // min of children's exit times
	Return      float64 // arithmetic mean of children's returns
	MaxDrawdown float64 // min (worst) of children's drawdowns
}
