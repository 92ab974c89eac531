package strategies

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/indicators"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/shopspring/decimal"
)

// EMACross trades a single symbol on a fast/slow EMA crossover.
//   - Enters only on a cross, sized so an ATR-based stop risks RiskPct.
//   - Reverses on the opposite cross with one order that closes and flips.
//   - Protects every position with a trailing stop.
type EMACross struct {
	p Params

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA
	atr  *indicators.ATR

	lastDiff     float64
	haveLastDiff bool

	stopID int64
}

func NewEMACross(p Params) (*EMACross, error) {
	if p.Fast <= 0 || p.Slow <= 0 || p.Fast >= p.Slow {
		return nil, fmt.Errorf("ema-cross: need 0 < fast < slow, got %d/%d", p.Fast, p.Slow)
	}
	if !p.RiskPct.IsPositive() {
		return nil, fmt.Errorf("ema-cross: risk percent must be positive")
	}
	if !p.Callback.IsPositive() || p.Callback.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("ema-cross: trailing callback must be in (0, 1)")
	}
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = 14
	}
	if !p.ATRMult.IsPositive() {
		p.ATRMult = decimal.NewFromInt(2)
	}

	return &EMACross{
		p:    p,
		fast: indicators.NewEMA(p.Fast),
		slow: indicators.NewEMA(p.Slow),
		atr:  indicators.NewATR(p.ATRPeriod),
	}, nil
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) OnCandle(ctx context.Context, b broker.Broker, c pricing.Candle) error {
	if c.Symbol != s.p.Symbol {
		return nil
	}

	s.fast.Update(c)
	s.slow.Update(c)
	s.atr.Update(c)

	if s.stopID != 0 && !isOpen(b, s.stopID) {
		s.stopID = 0
	}

	pos, havePos := s.p.position(b)
	if havePos && s.stopID == 0 {
		if err := s.protect(b, pos); err != nil {
			return err
		}
	}

	if !s.fast.Ready() || !s.slow.Ready() || !s.atr.Ready() {
		return nil
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}
	prev := s.lastDiff
	s.lastDiff = diff

	var side broker.Side
	switch {
	case prev <= 0 && diff > 0:
		side = broker.Buy
	case prev >= 0 && diff < 0:
		side = broker.Sell
	default:
		return nil
	}
	if havePos && pos.Side == side {
		return nil
	}

	return s.enter(b, c, side, pos, havePos)
}

func (s *EMACross) enter(b broker.Broker, c pricing.Candle, side broker.Side, pos broker.Position, havePos bool) error {
	dist := decimal.NewFromFloat(s.atr.Value()).Mul(s.p.ATRMult)
	stop := c.Close.Sub(dist.Mul(side.Sign()))

	size, err := risk.SizeByRisk(risk.Inputs{
		Balance: b.Account().Balance,
		RiskPct: s.p.RiskPct,
		Entry:   c.Close,
		Stop:    stop,
		Step:    s.p.Quantity,
	})
	if err != nil {
		// flat ATR: skip the signal
		return nil
	}

	qty := size.Quantity
	if s.p.Policy != nil && qty.IsPositive() {
		dec := risk.Evaluate(*s.p.Policy, risk.TradeIntent{
			Symbol:   s.p.Symbol,
			Quantity: qty,
			Entry:    c.Close,
			Stop:     stop,
		}, b.Account(), len(b.Positions()))
		if !dec.Allowed {
			qty = decimal.Zero
		}
	}

	if havePos {
		// one order closes the old side and opens the new one
		if s.stopID != 0 {
			if err := b.CancelOrder(s.stopID); err != nil {
				return fmt.Errorf("ema-cross: cancel stop: %w", err)
			}
			s.stopID = 0
		}
		qty = qty.Add(pos.Quantity)
	}
	if !qty.IsPositive() {
		return nil
	}

	if _, err := b.NewOrder(s.p.order(side, qty, ""), broker.Market{}); err != nil {
		return fmt.Errorf("ema-cross: %s %s: %w", side, qty, err)
	}
	return nil
}

// protect places a trailing stop against pos, activated from its entry.
func (s *EMACross) protect(b broker.Broker, pos broker.Position) error {
	ts, err := broker.NewTrailingStop(s.p.Callback, pos.AvgPrice)
	if err != nil {
		return fmt.Errorf("ema-cross: trailing stop: %w", err)
	}
	id, err := b.NewOrder(s.p.order(pos.Side.Opposite(), pos.Quantity, ""), ts)
	s.stopID = id
	if err != nil {
		return fmt.Errorf("ema-cross: trailing stop: %w", err)
	}
	return nil
}
