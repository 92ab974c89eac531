package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNoStopDistance = errors.New("entry and stop must differ")

type Inputs struct {
	Balance decimal.Decimal
	RiskPct decimal.Decimal // 0.01 = 1%
	Entry   decimal.Decimal
	Stop    decimal.Decimal

	// Step rounds the quantity down to a tradable multiple. Zero means 1.
	Step decimal.Decimal
}

type Result struct {
	Quantity     decimal.Decimal
	StopDistance decimal.Decimal
	RiskAmount   decimal.Decimal
}

// SizeByRisk sizes a position so that hitting the stop loses at most
// Balance × RiskPct.
func SizeByRisk(in Inputs) (Result, error) {
	dist := in.Entry.Sub(in.Stop).Abs()
	if dist.IsZero() {
		return Result{}, ErrNoStopDistance
	}

	step := in.Step
	if !step.IsPositive() {
		step = decimal.NewFromInt(1)
	}

	amount := in.Balance.Mul(in.RiskPct)
	qty := amount.Div(dist).Div(step).Floor().Mul(step)
	if qty.IsNegative() {
		qty = decimal.Zero
	}

	return Result{
		Quantity:     qty,
		StopDistance: dist,
		RiskAmount:   amount,
	}, nil
}
