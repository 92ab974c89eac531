package strategies

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/shopspring/decimal"
)

// Strategy is called once per candle, after the candle's ticks have been
// replayed through the broker.
type Strategy interface {
	Name() string
	OnCandle(ctx context.Context, b broker.Broker, c pricing.Candle) error
}

// Params is the union of every strategy's knobs; each strategy reads only
// the fields it needs.
type Params struct {
	Broker     string
	Instrument broker.InstrumentKind
	Symbol     string

	Side     broker.Side
	Quantity decimal.Decimal

	// bracket: fractions of price
	Pullback   decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal

	// ema-cross
	Fast      int
	Slow      int
	ATRPeriod int
	ATRMult   decimal.Decimal
	RiskPct   decimal.Decimal
	Callback  decimal.Decimal
	Policy    *risk.Policy // nil disables pre-trade checks
}

func (p Params) order(side broker.Side, qty decimal.Decimal, group string) broker.OrderParams {
	return broker.OrderParams{
		Broker:     p.Broker,
		Instrument: p.Instrument,
		Symbol:     p.Symbol,
		Quantity:   qty,
		Side:       side,
		OCOGroup:   group,
	}
}

func (p Params) position(b broker.Broker) (broker.Position, bool) {
	return b.Position(p.Broker, p.Instrument, p.Symbol)
}

// Names lists the strategies ByName knows.
func Names() []string {
	return []string{"noop", "open-once", "bracket", "ema-cross"}
}

func ByName(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "open-once":
		return NewOpenOnce(p)

	case "bracket":
		return NewBracket(p)

	case "ema-cross", "emacross":
		return NewEMACross(p)

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}

// isOpen reports whether order id is still working.
func isOpen(b broker.Broker, id int64) bool {
	for _, o := range b.OpenOrders() {
		if o.ID == id {
			return true
		}
	}
	return false
}

const pricePlaces = 4
