package risk

import "github.com/shopspring/decimal"

// PlannedRisk is the absolute loss if the stop is hit.
func PlannedRisk(qty, entry, stop decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(entry.Sub(stop).Abs())
}

// RR is reward over risk; zero when there is no risk distance.
func RR(entry, stop, takeProfit decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return takeProfit.Sub(entry).Abs().Div(risk)
}

// RiskPct is planned risk as a fraction of equity. A non-positive equity
// yields ok == false.
func RiskPct(plannedRisk, equity decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if !equity.IsPositive() {
		return decimal.Zero, false
	}
	return plannedRisk.Div(equity), true
}
