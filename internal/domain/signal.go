package domain

// Side is the direction of a signal or trade.
type Side string

// Side constants.
const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal is a directional trading signal derived from a formation candle.
// A timestamp with no tradable direction simply has no Signal; there is
// no flat side on the wire.
type Signal struct {
	Symbol string
	Time   int64 // formation candle start_time, ms epoch
	Side   Side
}
