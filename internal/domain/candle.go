package domain

// Candle represents one OHLC bar for a symbol at a given interval.
// StartTime is unique per (symbol, interval) and strictly ascending
// within a series. Candles are immutable once loaded.
type Candle struct {
	Symbol    string
	Interval  Interval
	StartTime int64 // ms epoch
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Turnover  float64
}

// Change returns the intra-candle price change close/open - 1.
func (c Candle) Change() float64 {
	return c.Close/c.Open - 1
}
