package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidCandle = errors.New("invalid candle")

type Candle struct {
	Symbol string
	Time   time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume decimal.Decimal // optional
}

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool {
	return c.Close.GreaterThanOrEqual(c.Open)
}

func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidCandle)
	}
	if c.Time.IsZero() {
		return fmt.Errorf("%w: %s has no time", ErrInvalidCandle, c.Symbol)
	}
	for _, p := range []decimal.Decimal{c.Open, c.High, c.Low, c.Close} {
		if !p.IsPositive() {
			return fmt.Errorf("%w: %s at %s has a non-positive price", ErrInvalidCandle, c.Symbol, c.Time.Format(time.RFC3339))
		}
	}
	if c.High.LessThan(decimal.Max(c.Open, c.Close, c.Low)) || c.Low.GreaterThan(decimal.Min(c.Open, c.Close)) {
		return fmt.Errorf("%w: %s at %s: high/low do not bound open/close", ErrInvalidCandle, c.Symbol, c.Time.Format(time.RFC3339))
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("%w: %s at %s has negative volume", ErrInvalidCandle, c.Symbol, c.Time.Format(time.RFC3339))
	}
	return nil
}
