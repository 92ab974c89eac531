package risk

import (
	"fmt"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/shopspring/decimal"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    decimal.Decimal
	PlannedRiskPct decimal.Decimal
	PlannedRR      decimal.Decimal
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func pct(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// Evaluate runs pre-trade checks against the current account. It is
// advisory: the broker still does its own margin admission.
func Evaluate(p Policy, intent TradeIntent, acct broker.Account, openPositions int) Decision {
	d := Decision{Allowed: true}

	if !intent.Entry.IsPositive() || !intent.Stop.IsPositive() {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}
	if !intent.Quantity.IsPositive() {
		d.add("NO_QUANTITY", "quantity must be positive")
		return d
	}

	equity := acct.Equity()
	d.PlannedRisk = PlannedRisk(intent.Quantity, intent.Entry, intent.Stop)
	riskPct, ok := RiskPct(d.PlannedRisk, equity)
	if !ok {
		d.add("NO_EQUITY", fmt.Sprintf("equity %s is not positive", equity))
		return d
	}
	d.PlannedRiskPct = riskPct

	if riskPct.GreaterThan(p.MaxRiskPct) {
		d.add("RISK_TOO_HIGH", fmt.Sprintf("planned risk %s exceeds max %s", pct(riskPct), pct(p.MaxRiskPct)))
	}

	if !intent.TakeProfit.IsZero() {
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
		if d.PlannedRR.LessThan(p.MinRR) {
			d.add("RR_TOO_LOW", fmt.Sprintf("RR %s below minimum %s", d.PlannedRR.StringFixed(2), p.MinRR.StringFixed(2)))
		}
	}

	if p.MaxOpenPositions > 0 && openPositions >= p.MaxOpenPositions {
		d.add("TOO_MANY_OPEN_POSITIONS", fmt.Sprintf("open positions %d >= max %d", openPositions, p.MaxOpenPositions))
	}

	if p.MaxMarginPct.IsPositive() {
		after := acct.UsedMargin.Add(intent.Margin).Div(equity)
		if after.GreaterThan(p.MaxMarginPct) {
			d.add("MARGIN_TOO_HIGH", fmt.Sprintf("margin used %s exceeds max %s", pct(after), pct(p.MaxMarginPct)))
		}
	}

	return d
}
