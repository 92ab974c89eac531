package broker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution is the immutable record of a single fill.
type Execution struct {
	ID         int64
	OrderID    int64
	Broker     string
	Instrument InstrumentKind
	Symbol     string
	Quantity   decimal.Decimal
	Side       Side
	Price      decimal.Decimal
	Time       time.Time
}

// Notional is quantity times fill price.
func (e Execution) Notional() decimal.Decimal {
	return e.Quantity.Mul(e.Price)
}

type Position struct {
	ID         int64
	Broker     string
	Instrument InstrumentKind
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	AvgPrice   decimal.Decimal
	OpenedAt   time.Time

	// PnL is gross unrealized P/L at the last price, NetPnL subtracts the
	// round trip brokerage.
	PnL    decimal.Decimal
	NetPnL decimal.Decimal
}

// Notional is quantity times average entry price.
func (p Position) Notional() decimal.Decimal {
	return p.Quantity.Mul(p.AvgPrice)
}
