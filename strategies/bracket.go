package strategies

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/shopspring/decimal"
)

// Bracket buys pullbacks with a limit order. Once long it protects the
// position with a take-profit and a stop that share an OCO group, so
// whichever fills first cancels the other.
type Bracket struct {
	p Params

	entryID  int64
	exitTP   int64
	exitSL   int64
	brackets int
}

func NewBracket(p Params) (*Bracket, error) {
	one := decimal.NewFromInt(1)
	switch {
	case !p.Quantity.IsPositive():
		return nil, fmt.Errorf("bracket: quantity must be positive")
	case p.Pullback.IsNegative() || p.Pullback.GreaterThanOrEqual(one):
		return nil, fmt.Errorf("bracket: pullback must be in [0, 1)")
	case !p.TakeProfit.IsPositive():
		return nil, fmt.Errorf("bracket: take profit must be positive")
	case !p.StopLoss.IsPositive() || p.StopLoss.GreaterThanOrEqual(one):
		return nil, fmt.Errorf("bracket: stop loss must be in (0, 1)")
	}
	return &Bracket{p: p}, nil
}

func (s *Bracket) Name() string { return "bracket" }

func (s *Bracket) OnCandle(ctx context.Context, b broker.Broker, c pricing.Candle) error {
	if c.Symbol != s.p.Symbol {
		return nil
	}

	pos, long := s.p.position(b)
	if long && pos.Side != broker.Buy {
		return fmt.Errorf("bracket: unexpected %s position on %s", pos.Side, s.p.Symbol)
	}

	if !long {
		if s.exitTP != 0 {
			// flat again; the OCO pair has done its job
			s.exitTP, s.exitSL = 0, 0
			s.entryID = 0
		}
		if s.entryID != 0 && isOpen(b, s.entryID) {
			return nil
		}
		return s.enter(b, c)
	}

	if s.exitTP == 0 {
		return s.protect(b, pos)
	}
	return nil
}

func (s *Bracket) enter(b broker.Broker, c pricing.Candle) error {
	one := decimal.NewFromInt(1)
	price := c.Close.Mul(one.Sub(s.p.Pullback)).Round(pricePlaces)
	et, err := broker.NewLimit(price)
	if err != nil {
		return fmt.Errorf("bracket: entry: %w", err)
	}
	id, err := b.NewOrder(s.p.order(broker.Buy, s.p.Quantity, ""), et)
	s.entryID = id
	if err != nil {
		return fmt.Errorf("bracket: entry: %w", err)
	}
	return nil
}

func (s *Bracket) protect(b broker.Broker, pos broker.Position) error {
	one := decimal.NewFromInt(1)
	s.brackets++
	group := fmt.Sprintf("%s-bracket-%d", s.p.Symbol, s.brackets)

	tp, err := broker.NewLimit(pos.AvgPrice.Mul(one.Add(s.p.TakeProfit)).Round(pricePlaces))
	if err != nil {
		return fmt.Errorf("bracket: take profit: %w", err)
	}
	sl, err := broker.NewStopMarket(pos.AvgPrice.Mul(one.Sub(s.p.StopLoss)).Round(pricePlaces))
	if err != nil {
		return fmt.Errorf("bracket: stop: %w", err)
	}

	if s.exitTP, err = b.NewOrder(s.p.order(broker.Sell, pos.Quantity, group), tp); err != nil {
		return fmt.Errorf("bracket: take profit: %w", err)
	}
	if s.exitSL, err = b.NewOrder(s.p.order(broker.Sell, pos.Quantity, group), sl); err != nil {
		return fmt.Errorf("bracket: stop: %w", err)
	}
	return nil
}
