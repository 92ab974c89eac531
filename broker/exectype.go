package broker

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ExecutionKind string

const (
	KindMarket       ExecutionKind = "market"
	KindLimit        ExecutionKind = "limit"
	KindStopMarket   ExecutionKind = "stop_market"
	KindStopLimit    ExecutionKind = "stop_limit"
	KindTrailingStop ExecutionKind = "trailing_stop"
)

var (
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrInvalidStopLimit = errors.New("invalid stop-limit: buy needs trigger <= limit, sell needs trigger >= limit")
	ErrInvalidCallback  = errors.New("trailing callback must be between 0 and 1")
)

// ExecutionType decides, tick by tick, whether an order crosses and at what
// price. prev is the last price seen for the symbol before price.
//
// TryExecute is the only call that may advance internal state (TrailingStop).
// Clone must return a copy that shares no mutable state.
type ExecutionType interface {
	Kind() ExecutionKind
	TryExecute(side Side, prev, price decimal.Decimal) (decimal.Decimal, bool)
	ReferencePrice() (decimal.Decimal, bool)
	Clone() ExecutionType
	String() string
}

// SideValidator is implemented by execution types whose parameters only make
// sense for one side.
type SideValidator interface {
	ValidateFor(side Side) error
}

var noFill = decimal.Zero

// Market fills at the new price.
type Market struct{}

func (Market) Kind() ExecutionKind { return KindMarket }

func (Market) TryExecute(_ Side, _, price decimal.Decimal) (decimal.Decimal, bool) {
	return price, true
}

func (Market) ReferencePrice() (decimal.Decimal, bool) { return decimal.Zero, false }
func (m Market) Clone() ExecutionType                  { return m }
func (Market) String() string                          { return "market" }

// Limit fills at the limit price when the market crosses it, or at the
// previous price if the market was already through the limit.
type Limit struct {
	Price decimal.Decimal
}

func NewLimit(price decimal.Decimal) (Limit, error) {
	if !price.IsPositive() {
		return Limit{}, fmt.Errorf("limit: %w", ErrInvalidPrice)
	}
	return Limit{Price: price}, nil
}

func (Limit) Kind() ExecutionKind { return KindLimit }

func (l Limit) TryExecute(side Side, prev, price decimal.Decimal) (decimal.Decimal, bool) {
	switch side {
	case Buy:
		if prev.LessThanOrEqual(l.Price) {
			return prev, true
		}
		if price.LessThanOrEqual(l.Price) {
			return l.Price, true
		}
	case Sell:
		if prev.GreaterThanOrEqual(l.Price) {
			return prev, true
		}
		if price.GreaterThanOrEqual(l.Price) {
			return l.Price, true
		}
	}
	return noFill, false
}

func (l Limit) ReferencePrice() (decimal.Decimal, bool) { return l.Price, true }
func (l Limit) Clone() ExecutionType                    { return l }
func (l Limit) String() string                          { return "limit(" + l.Price.String() + ")" }

// StopMarket fills at the market once the trigger is reached.
type StopMarket struct {
	Trigger decimal.Decimal
}

func NewStopMarket(trigger decimal.Decimal) (StopMarket, error) {
	if !trigger.IsPositive() {
		return StopMarket{}, fmt.Errorf("stop: %w", ErrInvalidPrice)
	}
	return StopMarket{Trigger: trigger}, nil
}

func (StopMarket) Kind() ExecutionKind { return KindStopMarket }

func (s StopMarket) TryExecute(side Side, prev, price decimal.Decimal) (decimal.Decimal, bool) {
	switch side {
	case Buy:
		if prev.GreaterThanOrEqual(s.Trigger) {
			return prev, true
		}
		if price.GreaterThanOrEqual(s.Trigger) {
			return price, true
		}
	case Sell:
		if prev.LessThanOrEqual(s.Trigger) {
			return prev, true
		}
		if price.LessThanOrEqual(s.Trigger) {
			return price, true
		}
	}
	return noFill, false
}

func (s StopMarket) ReferencePrice() (decimal.Decimal, bool) { return s.Trigger, true }
func (s StopMarket) Clone() ExecutionType                    { return s }
func (s StopMarket) String() string                          { return "stop(" + s.Trigger.String() + ")" }

// StopLimit activates at Trigger and never fills beyond Limit.
type StopLimit struct {
	Trigger decimal.Decimal
	Limit   decimal.Decimal
}

func NewStopLimit(side Side, trigger, limit decimal.Decimal) (StopLimit, error) {
	if !trigger.IsPositive() || !limit.IsPositive() {
		return StopLimit{}, fmt.Errorf("stop-limit: %w", ErrInvalidPrice)
	}
	s := StopLimit{Trigger: trigger, Limit: limit}
	if err := s.ValidateFor(side); err != nil {
		return StopLimit{}, err
	}
	return s, nil
}

func (s StopLimit) ValidateFor(side Side) error {
	switch side {
	case Buy:
		if s.Trigger.GreaterThan(s.Limit) {
			return ErrInvalidStopLimit
		}
	case Sell:
		if s.Trigger.LessThan(s.Limit) {
			return ErrInvalidStopLimit
		}
	default:
		return fmt.Errorf("stop-limit: invalid side %s", side)
	}
	return nil
}

func (StopLimit) Kind() ExecutionKind { return KindStopLimit }

func (s StopLimit) TryExecute(side Side, prev, price decimal.Decimal) (decimal.Decimal, bool) {
	switch side {
	case Buy:
		if prev.GreaterThanOrEqual(s.Trigger) {
			if prev.LessThanOrEqual(s.Limit) {
				return prev, true
			}
			// Above the limit: only a move back down through it fills.
			if price.LessThanOrEqual(s.Limit) {
				return s.Limit, true
			}
			return noFill, false
		}
		if price.LessThan(s.Trigger) {
			return noFill, false
		}
		return decimal.Min(price, s.Limit), true
	case Sell:
		if prev.LessThanOrEqual(s.Trigger) {
			if prev.GreaterThanOrEqual(s.Limit) {
				return prev, true
			}
			if price.GreaterThanOrEqual(s.Limit) {
				return s.Limit, true
			}
			return noFill, false
		}
		if price.GreaterThan(s.Trigger) {
			return noFill, false
		}
		return decimal.Max(price, s.Limit), true
	}
	return noFill, false
}

func (s StopLimit) ReferencePrice() (decimal.Decimal, bool) { return s.Limit, true }
func (s StopLimit) Clone() ExecutionType                    { return s }

func (s StopLimit) String() string {
	return "stop-limit(" + s.Trigger.String() + "," + s.Limit.String() + ")"
}

// TrailingStop arms once the market touches Activation, then follows the
// best price seen by Callback (a fraction, 0.01 = 1%). It fills at the
// market when the price comes back through the trailing level.
//
// A TrailingStop is single use: once its order executes the state is spent.
type TrailingStop struct {
	Callback   decimal.Decimal
	Activation decimal.Decimal

	active  bool
	side    Side
	extreme decimal.Decimal
}

func NewTrailingStop(callback, activation decimal.Decimal) (*TrailingStop, error) {
	if !callback.IsPositive() || callback.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrInvalidCallback
	}
	if !activation.IsPositive() {
		return nil, fmt.Errorf("trailing stop activation: %w", ErrInvalidPrice)
	}
	return &TrailingStop{Callback: callback, Activation: activation}, nil
}

func (*TrailingStop) Kind() ExecutionKind { return KindTrailingStop }

func (t *TrailingStop) Active() bool { return t.active }

// Level is the current trailing level, valid once active.
func (t *TrailingStop) Level() (decimal.Decimal, bool) {
	if !t.active {
		return decimal.Zero, false
	}
	return t.levelFor(t.side), true
}

func (t *TrailingStop) levelFor(side Side) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == Sell {
		return t.extreme.Mul(one.Sub(t.Callback))
	}
	return t.extreme.Mul(one.Add(t.Callback))
}

func (t *TrailingStop) TryExecute(side Side, prev, price decimal.Decimal) (decimal.Decimal, bool) {
	if !side.Valid() {
		return noFill, false
	}

	if !t.active {
		switch {
		case side == Sell && decimal.Max(prev, price).GreaterThanOrEqual(t.Activation):
			t.extreme = decimal.Max(prev, price)
		case side == Buy && decimal.Min(prev, price).LessThanOrEqual(t.Activation):
			t.extreme = decimal.Min(prev, price)
		default:
			return noFill, false
		}
		t.active = true
		t.side = side
	} else {
		// Only ever tighten.
		if side == Sell && price.GreaterThan(t.extreme) {
			t.extreme = price
		}
		if side == Buy && price.LessThan(t.extreme) {
			t.extreme = price
		}
	}

	level := t.levelFor(side)
	if side == Sell && price.LessThanOrEqual(level) {
		return price, true
	}
	if side == Buy && price.GreaterThanOrEqual(level) {
		return price, true
	}
	return noFill, false
}

func (t *TrailingStop) ReferencePrice() (decimal.Decimal, bool) {
	if lvl, ok := t.Level(); ok {
		return lvl, true
	}
	return t.Activation, true
}

func (t *TrailingStop) Clone() ExecutionType {
	c := *t
	return &c
}

func (t *TrailingStop) String() string {
	return "trailing(" + t.Callback.String() + "," + t.Activation.String() + ")"
}
