package sim

import (
	"github.com/shopspring/decimal"
)

// recomputeMargin re-prices every position and rebuilds used margin:
//
//	Σ positions (notional / leverage − min(netPnL, 0)) + Σ open order margin
//
// Profit never reduces the requirement.
func (b *Broker) recomputeMargin() {
	used := decimal.Zero
	unrealized := decimal.Zero

	for _, pos := range b.positions {
		b.mark(pos)
		used = used.Add(pos.Notional().Div(b.settings.Leverage))
		used = used.Sub(decimal.Min(pos.NetPnL, decimal.Zero))
		unrealized = unrealized.Add(pos.PnL)
	}
	for _, id := range b.openIDs {
		used = used.Add(b.orders[id-1].Margin)
	}

	b.usedMargin = used
	b.unrealizedPnL = unrealized
}

func (b *Broker) UsedMargin() decimal.Decimal {
	return b.usedMargin
}

// AvailableMargin is balance minus used margin.
func (b *Broker) AvailableMargin() decimal.Decimal {
	return b.ledger.Balance().Sub(b.usedMargin)
}
