package broker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderParams describes what to trade. OCOGroup ties orders together so
// that the first one to execute cancels the rest; empty means no group.
type OrderParams struct {
	Broker     string
	Instrument InstrumentKind
	Symbol     string
	Quantity   decimal.Decimal
	Lots       *int
	Side       Side
	OCOGroup   string
}

type Order struct {
	ID            int64
	Params        OrderParams
	ExecutionType ExecutionType
	CreatedAt     time.Time
	Status        OrderStatus

	// Margin reserved while the order is open, fixed at admission.
	Margin decimal.Decimal
}

func (o Order) IsOpen() bool {
	_, ok := o.Status.(Open)
	return ok
}

// OCOGroup returns the group of an open order, or "" once it is closed.
func (o Order) OCOGroup() string {
	if s, ok := o.Status.(Open); ok {
		return s.OCOGroup
	}
	return ""
}

func (o Order) String() string {
	return fmt.Sprintf("#%d %s %s %s %s [%s]",
		o.ID, o.Params.Side, o.Params.Quantity, o.Params.Symbol, o.ExecutionType, o.Status)
}

// OrderStatus is a closed set: Open, Executed, Canceled, Rejected.
type OrderStatus interface {
	Terminal() bool
	String() string
	orderStatus()
}

type Open struct {
	OCOGroup string
}

type Executed struct {
	ClosedAt time.Time
	Price    decimal.Decimal
}

type Canceled struct {
	ClosedAt time.Time
}

type Rejected struct {
	ClosedAt time.Time
	Cause    RejectionCause
}

func (Open) Terminal() bool     { return false }
func (Executed) Terminal() bool { return true }
func (Canceled) Terminal() bool { return true }
func (Rejected) Terminal() bool { return true }

func (Open) orderStatus()     {}
func (Executed) orderStatus() {}
func (Canceled) orderStatus() {}
func (Rejected) orderStatus() {}

func (s Open) String() string {
	if s.OCOGroup != "" {
		return "open(oco=" + s.OCOGroup + ")"
	}
	return "open"
}

func (s Executed) String() string { return "executed@" + s.Price.String() }
func (Canceled) String() string   { return "canceled" }
func (s Rejected) String() string { return "rejected(" + string(s.Cause) + ")" }

// SameStatus reports whether a and b are the same canonical status,
// payload included.
func SameStatus(a, b OrderStatus) bool {
	switch x := a.(type) {
	case Open:
		y, ok := b.(Open)
		return ok && x.OCOGroup == y.OCOGroup
	case Executed:
		y, ok := b.(Executed)
		return ok && x.ClosedAt.Equal(y.ClosedAt) && x.Price.Equal(y.Price)
	case Canceled:
		y, ok := b.(Canceled)
		return ok && x.ClosedAt.Equal(y.ClosedAt)
	case Rejected:
		y, ok := b.(Rejected)
		return ok && x.ClosedAt.Equal(y.ClosedAt) && x.Cause == y.Cause
	default:
		return false
	}
}

type RejectionCause string

const (
	MarginShortfall        RejectionCause = "margin_shortfall"
	BelowMinimumOrderValue RejectionCause = "below_minimum_order_value"
)
