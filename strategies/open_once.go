package strategies

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/pricing"
)

// OpenOnce places a single market order on the first candle it sees for the
// configured symbol. It is meant as a wiring test.
type OpenOnce struct {
	p      Params
	opened bool
}

func NewOpenOnce(p Params) (*OpenOnce, error) {
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("open-once: quantity must be positive")
	}
	if p.Side == 0 {
		p.Side = broker.Buy
	}
	return &OpenOnce{p: p}, nil
}

func (s *OpenOnce) Name() string { return "open-once" }

func (s *OpenOnce) OnCandle(ctx context.Context, b broker.Broker, c pricing.Candle) error {
	if s.opened || c.Symbol != s.p.Symbol {
		return nil
	}
	// A margin call error still comes with a placed order.
	id, err := b.NewOrder(s.p.order(s.p.Side, s.p.Quantity, ""), broker.Market{})
	if id != 0 {
		s.opened = true
	}
	if err != nil {
		return fmt.Errorf("open-once: %w", err)
	}
	return nil
}
