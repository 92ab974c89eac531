package strategies

import (
	"context"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/pricing"
)

// Noop does nothing.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnCandle(ctx context.Context, b broker.Broker, c pricing.Candle) error {
	return nil
}
