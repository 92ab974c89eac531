package sim

import (
	"sort"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/shopspring/decimal"
)

// Everything below returns copies; nothing handed out aliases engine state.

func (b *Broker) Order(id int64) (broker.Order, error) {
	o, err := b.orderRef(id)
	if err != nil {
		return broker.Order{}, err
	}
	return snapshotOrder(*o), nil
}

func (b *Broker) Orders() []broker.Order {
	out := make([]broker.Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = snapshotOrder(o)
	}
	return out
}

func (b *Broker) OpenOrders() []broker.Order {
	out := make([]broker.Order, 0, len(b.openIDs))
	for _, id := range b.openIDs {
		out = append(out, snapshotOrder(b.orders[id-1]))
	}
	return out
}

func snapshotOrder(o broker.Order) broker.Order {
	o.ExecutionType = o.ExecutionType.Clone()
	if o.Params.Lots != nil {
		lots := *o.Params.Lots
		o.Params.Lots = &lots
	}
	return o
}

func (b *Broker) Executions() []broker.Execution {
	return b.ExecutionsSince(0)
}

// ExecutionsSince returns executions with an id greater than afterID.
func (b *Broker) ExecutionsSince(afterID int64) []broker.Execution {
	if afterID < 0 {
		afterID = 0
	}
	if afterID >= int64(len(b.executions)) {
		return nil
	}
	out := make([]broker.Execution, int64(len(b.executions))-afterID)
	copy(out, b.executions[afterID:])
	return out
}

// Positions returns open positions ordered by id.
func (b *Broker) Positions() []broker.Position {
	out := make([]broker.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Broker) Position(brokerName string, kind broker.InstrumentKind, symbol string) (broker.Position, bool) {
	p, ok := b.positions[slot{broker: brokerName, kind: kind, symbol: symbol}]
	if !ok {
		return broker.Position{}, false
	}
	return *p, true
}

func (b *Broker) Account() broker.Account {
	return broker.Account{
		Balance:         b.ledger.Balance(),
		UsedMargin:      b.usedMargin,
		AvailableMargin: b.AvailableMargin(),
		UnrealizedPnL:   b.unrealizedPnL,
	}
}

func (b *Broker) Transactions() []Transaction {
	return b.ledger.Transactions()
}

func (b *Broker) LastPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := b.prices[symbol]
	return p, ok
}
