// Package indicators provides streaming technical indicators over candles.
package indicators

import "github.com/rustyeddy/tradelab/pricing"

// Indicator computes a single streaming value from candles.
// It is deterministic, so replays and backtests see the same values.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c pricing.Candle)

	Ready() bool

	// Value is 0 until Ready.
	Value() float64
}

func closeOf(c pricing.Candle) float64 {
	return c.Close.InexactFloat64()
}
