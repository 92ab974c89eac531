package sim

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidSettings = errors.New("invalid broker settings")

// Settings configures one simulated broker account.
type Settings struct {
	Name    string
	Balance decimal.Decimal

	// Leverage divides position and order notional into required margin.
	Leverage decimal.Decimal

	// Orders that need margin are rejected when their cost is below this.
	MinOrderValue decimal.Decimal

	// A margin call fires when available margin drops below this.
	MaintenanceMargin decimal.Decimal

	Brokerage Brokerage
}

func DefaultSettings() Settings {
	return Settings{
		Name:              "SIM",
		Balance:           decimal.NewFromInt(10_000),
		Leverage:          decimal.NewFromInt(1),
		MinOrderValue:     decimal.Zero,
		MaintenanceMargin: decimal.Zero,
		Brokerage:         DefaultBrokerage(),
	}
}

func (s Settings) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSettings)
	}
	if s.Balance.IsNegative() {
		return fmt.Errorf("%w: balance must not be negative", ErrInvalidSettings)
	}
	if !s.Leverage.IsPositive() {
		return fmt.Errorf("%w: leverage must be positive", ErrInvalidSettings)
	}
	if s.MinOrderValue.IsNegative() {
		return fmt.Errorf("%w: min order value must not be negative", ErrInvalidSettings)
	}
	if s.MaintenanceMargin.IsNegative() {
		return fmt.Errorf("%w: maintenance margin must not be negative", ErrInvalidSettings)
	}
	return s.Brokerage.Validate()
}

// Brokerage charges Rate of notional per leg, capped at Max when Max > 0.
type Brokerage struct {
	Rate decimal.Decimal
	Max  decimal.Decimal
}

// DefaultBrokerage is 0.03% per leg capped at 20 per order.
func DefaultBrokerage() Brokerage {
	return Brokerage{
		Rate: decimal.RequireFromString("0.0003"),
		Max:  decimal.NewFromInt(20),
	}
}

func (b Brokerage) Validate() error {
	if b.Rate.IsNegative() || b.Max.IsNegative() {
		return fmt.Errorf("%w: brokerage must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Fee for a single leg of the given notional.
func (b Brokerage) Fee(notional decimal.Decimal) decimal.Decimal {
	fee := notional.Abs().Mul(b.Rate)
	if b.Max.IsPositive() && fee.GreaterThan(b.Max) {
		return b.Max
	}
	return fee
}

// RoundTrip is the entry leg at entry plus the exit leg at exit for qty units.
func (b Brokerage) RoundTrip(qty, entry, exit decimal.Decimal) decimal.Decimal {
	return b.Fee(qty.Mul(entry)).Add(b.Fee(qty.Mul(exit)))
}
