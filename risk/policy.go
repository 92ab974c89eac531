package risk

import "github.com/shopspring/decimal"

type Policy struct {
	// Hard limit on planned risk as a fraction of equity.
	MaxRiskPct decimal.Decimal

	// Minimum reward/risk when a take profit is given.
	MinRR decimal.Decimal

	// Zero disables the check.
	MaxOpenPositions int

	// Cap on used margin as a fraction of equity after the trade.
	MaxMarginPct decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRiskPct:       decimal.RequireFromString("0.02"),
		MinRR:            decimal.RequireFromString("1.5"),
		MaxOpenPositions: 3,
		MaxMarginPct:     decimal.RequireFromString("0.5"),
	}
}

type TradeIntent struct {
	Symbol   string
	Quantity decimal.Decimal

	Entry      decimal.Decimal
	Stop       decimal.Decimal
	TakeProfit decimal.Decimal // zero when none

	// Margin the order would add.
	Margin decimal.Decimal
}
