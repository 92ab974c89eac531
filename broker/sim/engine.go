package sim

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidSide       = errors.New("invalid order side")
	ErrInvalidSymbol     = errors.New("symbol is required")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrNoPrice           = errors.New("no price for symbol")
	ErrTimeWentBackwards = errors.New("price tick is older than the replay clock")
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrMarginCall        = errors.New("margin call")
)

// MarginCallFunc runs in-line when available margin drops below the
// maintenance threshold. A non-nil error is returned to whoever triggered
// the check, wrapped in ErrMarginCall.
type MarginCallFunc func() error

type Option func(*Broker)

func WithMarginCall(fn MarginCallFunc) Option {
	return func(b *Broker) { b.marginCall = fn }
}

type slot struct {
	broker string
	kind   broker.InstrumentKind
	symbol string
}

func slotOf(p broker.OrderParams) slot {
	return slot{broker: p.Broker, kind: p.Instrument, symbol: p.Symbol}
}

// Broker is the backtest order-matching and margin engine.
//
// It is single threaded: every call runs to completion, nothing is locked,
// and callers must serialize access themselves.
type Broker struct {
	settings Settings
	ledger   *Ledger

	orders     []broker.Order // orders[i].ID == i+1
	openIDs    []int64        // ascending
	executions []broker.Execution
	positions  map[slot]*broker.Position
	prices     map[string]decimal.Decimal

	now     time.Time
	started bool

	nextExecID     int64
	nextPositionID int64

	usedMargin    decimal.Decimal
	unrealizedPnL decimal.Decimal

	marginCall   MarginCallFunc
	inMarginCall bool
}

var _ broker.Broker = (*Broker)(nil)

func NewBroker(s Settings, opts ...Option) (*Broker, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b := &Broker{
		settings:  s,
		ledger:    NewLedger(s.Balance),
		positions: make(map[slot]*broker.Position),
		prices:    make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Broker) Settings() Settings { return b.settings }

// Now is the replay clock: the instant of the last price tick.
func (b *Broker) Now() time.Time { return b.now }

// NewOrder admits an order and returns its id. Margin shortfall and minimum
// order value are not errors; they show up as a Rejected status. The id is
// valid even when a margin call error is returned.
func (b *Broker) NewOrder(params broker.OrderParams, et broker.ExecutionType) (int64, error) {
	if !params.Quantity.IsPositive() {
		return 0, fmt.Errorf("new order: %w: %s", ErrInvalidQuantity, params.Quantity)
	}
	if !params.Side.Valid() {
		return 0, fmt.Errorf("new order: %w", ErrInvalidSide)
	}
	if params.Symbol == "" {
		return 0, fmt.Errorf("new order: %w", ErrInvalidSymbol)
	}
	if et == nil {
		et = broker.Market{}
	}
	if v, ok := et.(broker.SideValidator); ok {
		if err := v.ValidateFor(params.Side); err != nil {
			return 0, fmt.Errorf("new order: %w", err)
		}
	}
	et = et.Clone()

	cost, margin, err := b.orderCost(params, et)
	if err != nil {
		return 0, fmt.Errorf("new order: %w", err)
	}

	o := broker.Order{
		ID:            int64(len(b.orders) + 1),
		Params:        params,
		ExecutionType: et,
		CreatedAt:     b.now,
		Status:        b.admit(cost, margin, params.OCOGroup),
	}
	if o.IsOpen() {
		o.Margin = margin
		b.openIDs = append(b.openIDs, o.ID)
	}
	b.orders = append(b.orders, o)

	b.recomputeMargin()
	return o.ID, b.checkMarginCall()
}

// orderCost nets the order against an opposite position on the same slot;
// only the excess needs margin.
func (b *Broker) orderCost(params broker.OrderParams, et broker.ExecutionType) (cost, margin decimal.Decimal, err error) {
	excess := params.Quantity
	if pos, ok := b.positions[slotOf(params)]; ok && pos.Side != params.Side {
		excess = excess.Sub(pos.Quantity)
	}
	if !excess.IsPositive() {
		return decimal.Zero, decimal.Zero, nil
	}

	ref, ok := et.ReferencePrice()
	if !ok {
		ref, ok = b.prices[params.Symbol]
	}
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w %q", ErrNoPrice, params.Symbol)
	}

	cost = excess.Mul(ref)
	return cost, cost.Div(b.settings.Leverage), nil
}

func (b *Broker) admit(cost, margin decimal.Decimal, group string) broker.OrderStatus {
	switch {
	case margin.IsZero():
		return broker.Open{OCOGroup: group}
	case margin.GreaterThan(b.AvailableMargin()):
		return broker.Rejected{ClosedAt: b.now, Cause: broker.MarginShortfall}
	case cost.LessThan(b.settings.MinOrderValue):
		return broker.Rejected{ClosedAt: b.now, Cause: broker.BelowMinimumOrderValue}
	default:
		return broker.Open{OCOGroup: group}
	}
}

// CancelOrder cancels an open order. Canceling a closed order is a no-op.
func (b *Broker) CancelOrder(id int64) error {
	o, err := b.orderRef(id)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if o.Status.Terminal() {
		return nil
	}
	if err := b.transition(o, broker.Canceled{ClosedAt: b.now}); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	b.recomputeMargin()
	return nil
}

// NewPrice feeds one tick. Open orders on symbol are matched against the
// previous and the new price, positions are updated, then margin is
// recomputed and the margin call checked.
func (b *Broker) NewPrice(at time.Time, symbol string, price decimal.Decimal) error {
	if b.started && at.Before(b.now) {
		return fmt.Errorf("new price %s %s at %s: %w (clock at %s)",
			symbol, price, at.Format(time.RFC3339Nano), ErrTimeWentBackwards, b.now.Format(time.RFC3339Nano))
	}
	if !price.IsPositive() {
		return fmt.Errorf("new price %s: %w: %s", symbol, ErrInvalidPrice, price)
	}
	b.now = at
	b.started = true

	if prev, ok := b.prices[symbol]; ok {
		// Snapshot ids: executions and OCO cancels shrink openIDs as we go.
		ids := append([]int64(nil), b.openIDs...)
		for _, id := range ids {
			o := &b.orders[id-1]
			if o.Params.Symbol != symbol || !o.IsOpen() {
				continue
			}
			fill, ok := o.ExecutionType.TryExecute(o.Params.Side, prev, price)
			if !ok {
				continue
			}
			if err := b.execute(o, fill); err != nil {
				return err
			}
		}
	}

	b.prices[symbol] = price
	b.recomputeMargin()
	return b.checkMarginCall()
}

func (b *Broker) execute(o *broker.Order, fill decimal.Decimal) error {
	group := o.OCOGroup()
	if err := b.transition(o, broker.Executed{ClosedAt: b.now, Price: fill}); err != nil {
		return err
	}

	b.nextExecID++
	ex := broker.Execution{
		ID:         b.nextExecID,
		OrderID:    o.ID,
		Broker:     o.Params.Broker,
		Instrument: o.Params.Instrument,
		Symbol:     o.Params.Symbol,
		Quantity:   o.Params.Quantity,
		Side:       o.Params.Side,
		Price:      fill,
		Time:       b.now,
	}
	b.executions = append(b.executions, ex)
	b.applyExecution(ex)

	if group == "" {
		return nil
	}
	for _, id := range append([]int64(nil), b.openIDs...) {
		sib := &b.orders[id-1]
		if sib.OCOGroup() != group {
			continue
		}
		if err := b.transition(sib, broker.Canceled{ClosedAt: b.now}); err != nil {
			return err
		}
	}
	return nil
}

// transition moves an order out of Open. Moving into the status it already
// has is a no-op; anything else out of a terminal status is illegal.
func (b *Broker) transition(o *broker.Order, next broker.OrderStatus) error {
	if broker.SameStatus(o.Status, next) {
		return nil
	}
	switch o.Status.(type) {
	case broker.Open:
		if _, reopen := next.(broker.Open); reopen {
			return fmt.Errorf("%w: order %d %s -> %s", ErrIllegalTransition, o.ID, o.Status, next)
		}
	case broker.Executed, broker.Canceled, broker.Rejected:
		return fmt.Errorf("%w: order %d %s -> %s", ErrIllegalTransition, o.ID, o.Status, next)
	default:
		return fmt.Errorf("%w: order %d has unknown status %T", ErrIllegalTransition, o.ID, o.Status)
	}
	o.Status = next
	b.removeOpen(o.ID)
	return nil
}

func (b *Broker) removeOpen(id int64) {
	i := sort.Search(len(b.openIDs), func(i int) bool { return b.openIDs[i] >= id })
	if i < len(b.openIDs) && b.openIDs[i] == id {
		b.openIDs = append(b.openIDs[:i], b.openIDs[i+1:]...)
	}
}

func (b *Broker) orderRef(id int64) (*broker.Order, error) {
	if id < 1 || id > int64(len(b.orders)) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	return &b.orders[id-1], nil
}

func (b *Broker) checkMarginCall() error {
	if b.marginCall == nil || b.inMarginCall {
		return nil
	}
	if !b.AvailableMargin().LessThan(b.settings.MaintenanceMargin) {
		return nil
	}

	b.inMarginCall = true
	defer func() { b.inMarginCall = false }()

	if err := b.marginCall(); err != nil {
		return fmt.Errorf("%w: %w", ErrMarginCall, err)
	}
	return nil
}
