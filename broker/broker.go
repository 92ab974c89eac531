package broker

import (
	"github.com/shopspring/decimal"
)

// Broker is the surface strategies trade against. The simulated
// implementation lives in broker/sim.
type Broker interface {
	NewOrder(params OrderParams, et ExecutionType) (int64, error)
	CancelOrder(id int64) error

	Orders() []Order
	OpenOrders() []Order
	Executions() []Execution
	Positions() []Position
	Position(broker string, kind InstrumentKind, symbol string) (Position, bool)
	Account() Account
	LastPrice(symbol string) (decimal.Decimal, bool)
}

// Account is a point in time view of the simulated account.
type Account struct {
	Balance         decimal.Decimal
	UsedMargin      decimal.Decimal
	AvailableMargin decimal.Decimal
	UnrealizedPnL   decimal.Decimal
}

// Equity is balance plus unrealized P/L.
func (a Account) Equity() decimal.Decimal {
	return a.Balance.Add(a.UnrealizedPnL)
}
