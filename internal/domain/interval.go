package domain

import (
	"strconv"
	"time"
)

// Interval is a candle interval in minutes.
type Interval int

// Supported candle intervals.
const (
	Interval5m   Interval = 5
	Interval15m  Interval = 15
	Interval30m  Interval = 30
	Interval1h   Interval = 60
	Interval2h   Interval = 120
	Interval4h   Interval = 240
	Interval6h   Interval = 360
	Interval12h  Interval = 720
	Interval1d   Interval = 1440
)

// Intervals lists all supported intervals in ascending order.
// BaseInterval is the one raw data is fetched at; the rest are resampled.
var Intervals = []Interval{
	Interval5m, Interval15m, Interval30m, Interval1h, Interval2h,
	Interval4h, Interval6h, Interval12h, Interval1d,
}

// BaseInterval is the smallest interval available from the exchange feed.
const BaseInterval = Interval5m

// Millis returns the interval length in milliseconds.
func (i Interval) Millis() int64 {
	return int64(i) * 60 * 1000
}

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i) * time.Minute
}

// String returns the interval in minutes, e.g. "240".
func (i Interval) String() string {
	return strconv.Itoa(int(i))
}
