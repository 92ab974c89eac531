package sim

import (
	"time"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/shopspring/decimal"
)

// applyExecution folds a fill into the position on its slot.
func (b *Broker) applyExecution(ex broker.Execution) {
	key := slot{broker: ex.Broker, kind: ex.Instrument, symbol: ex.Symbol}

	pos, ok := b.positions[key]
	if !ok {
		b.openPosition(key, ex.Side, ex.Quantity, ex.Price, ex.Time)
		return
	}

	if pos.Side == ex.Side {
		total := pos.Quantity.Add(ex.Quantity)
		pos.AvgPrice = weightedAvg(pos.AvgPrice, pos.Quantity, ex.Price, ex.Quantity)
		pos.Quantity = total
		b.mark(pos)
		return
	}

	extra := pos.Quantity.Sub(ex.Quantity)
	switch {
	case extra.IsZero():
		b.realize(pos, pos.Quantity, ex)
		delete(b.positions, key)

	case extra.IsPositive():
		b.realize(pos, ex.Quantity, ex)
		pos.Quantity = extra
		b.mark(pos)

	default:
		// Close the whole position, then open the remainder the other way.
		b.realize(pos, pos.Quantity, ex)
		delete(b.positions, key)
		b.openPosition(key, ex.Side, extra.Neg(), ex.Price, ex.Time)
	}
}

func (b *Broker) openPosition(key slot, side broker.Side, qty, price decimal.Decimal, at time.Time) {
	b.nextPositionID++
	pos := &broker.Position{
		ID:         b.nextPositionID,
		Broker:     key.broker,
		Instrument: key.kind,
		Symbol:     key.symbol,
		Side:       side,
		Quantity:   qty,
		AvgPrice:   price,
		OpenedAt:   at,
	}
	b.positions[key] = pos
	b.mark(pos)
}

// realize books the P/L of closing qty units of pos at the execution price,
// net of both brokerage legs, as a single ledger transaction.
func (b *Broker) realize(pos *broker.Position, qty decimal.Decimal, ex broker.Execution) {
	gross := ex.Price.Sub(pos.AvgPrice).Mul(qty).Mul(pos.Side.Sign())
	fees := b.settings.Brokerage.RoundTrip(qty, pos.AvgPrice, ex.Price)
	b.ledger.Apply(ex.Time, gross.Sub(fees))
}

// mark prices pos against the last cached price of its symbol.
func (b *Broker) mark(pos *broker.Position) {
	last, ok := b.prices[pos.Symbol]
	if !ok {
		last = pos.AvgPrice
	}
	pos.PnL = last.Sub(pos.AvgPrice).Mul(pos.Quantity).Mul(pos.Side.Sign())
	pos.NetPnL = pos.PnL.Sub(b.settings.Brokerage.RoundTrip(pos.Quantity, pos.AvgPrice, last))
}

func weightedAvg(avg, qty, price, addQty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return price
	}
	return avg.Mul(qty).Add(price.Mul(addQty)).Div(qty.Add(addQty))
}
