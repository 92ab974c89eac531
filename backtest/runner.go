package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/tradelab/broker/sim"
	"github.com/rustyeddy/tradelab/internal/id"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/rustyeddy/tradelab/strategies"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrStopped is what OnMarginCall hands the broker when the run should end.
var ErrStopped = errors.New("backtest stopped on margin call")

// Runner replays candles through a simulated broker:
//  1. expand the candle into ticks and feed each to Broker.NewPrice
//  2. journal the executions those ticks produced
//  3. strategy.OnCandle(ctx, broker, candle)
//  4. journal an equity snapshot
//
// RunTicks does the same for a raw tick stream.
type Runner struct {
	Broker   *sim.Broker
	Strategy strategies.Strategy
	Journal  journal.Journal // nil discards

	Policy pricing.ExtremeOrder
	Step   time.Duration // candle interval; spreads a candle's ticks

	Logger log.FieldLogger // nil uses the logrus standard logger
	RunID  string          // empty gets a fresh ULID

	// Progress is called after every candle. total is 0 for tick replays.
	Progress func(done, total int)

	// StopOnMarginCall ends the run at the first margin call. Otherwise the
	// call is logged and the replay carries on.
	StopOnMarginCall bool

	Dataset string
	Config  []byte

	marginCalls  int
	marginStop   bool
	lastExecID   int64
	ticks        int
	startBalance decimal.Decimal
	closed       []pricing.Candle
	curve        []float64
}

// OnMarginCall is meant to be installed with sim.WithMarginCall.
func (r *Runner) OnMarginCall() error {
	r.marginCalls++
	fields := log.Fields{"run_id": r.RunID, "calls": r.marginCalls}
	if r.Broker != nil {
		acct := r.Broker.Account()
		fields["balance"] = acct.Balance.String()
		fields["used_margin"] = acct.UsedMargin.String()
		fields["available"] = acct.AvailableMargin.String()
		fields["at"] = r.Broker.Now().Format(time.RFC3339)
	}
	r.logger().WithFields(fields).Warn("margin call")

	if r.StopOnMarginCall {
		return ErrStopped
	}
	return nil
}

func (r *Runner) MarginCalls() int { return r.marginCalls }

func (r *Runner) logger() log.FieldLogger {
	if r.Logger == nil {
		return log.StandardLogger()
	}
	return r.Logger
}

func (r *Runner) start() error {
	if r.Broker == nil {
		return fmt.Errorf("backtest: Broker is required")
	}
	if r.Strategy == nil {
		return fmt.Errorf("backtest: Strategy is required")
	}
	if r.Journal == nil {
		r.Journal = journal.Discard{}
	}
	if r.RunID == "" {
		r.RunID = id.New()
	}
	r.startBalance = r.Broker.Account().Balance
	r.closed = r.closed[:0]
	r.curve = append(r.curve[:0], r.startBalance.InexactFloat64())
	r.marginStop = false
	r.ticks = 0
	return nil
}

// Run replays candles in time order. Candles sharing an open time, one per
// symbol, are priced together with their ticks interleaved, then handed to
// the strategy in input order. A margin call that stops the run, a cancelled
// context or a journal failure end the replay early; the returned Result
// still covers what ran.
func (r *Runner) Run(ctx context.Context, candles []pricing.Candle) (Result, error) {
	if err := r.start(); err != nil {
		return Result{}, err
	}
	r.logger().WithFields(log.Fields{
		"run_id":   r.RunID,
		"strategy": r.Strategy.Name(),
		"candles":  len(candles),
		"policy":   r.Policy.String(),
	}).Info("backtest started")

	ordered := append([]pricing.Candle(nil), candles...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	var err error
	for i := 0; i < len(ordered); {
		if err = ctx.Err(); err != nil {
			break
		}
		j := i + 1
		for j < len(ordered) && ordered[j].Time.Equal(ordered[i].Time) {
			j++
		}
		if err = r.replayGroup(ctx, ordered[i:j], len(ordered)); err != nil {
			break
		}
		i = j
	}
	return r.finish(err)
}

// RunTicks replays a raw tick stream. Ticks are folded into Step wide
// candles and the strategy sees each candle once a tick of the next bucket
// arrives, before that tick is priced.
func (r *Runner) RunTicks(ctx context.Context, src pricing.TickSource) (Result, error) {
	if err := r.start(); err != nil {
		return Result{}, err
	}
	r.logger().WithFields(log.Fields{
		"run_id":   r.RunID,
		"strategy": r.Strategy.Name(),
		"step":     r.Step.String(),
	}).Info("tick backtest started")

	agg := pricing.NewAggregator(r.Step)
	err := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			tk, ok, err := src.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if c, done := agg.Add(tk); done {
				if err := r.closeCandle(ctx, c, 0); err != nil {
					return err
				}
			}
			r.ticks++
			if err := r.Broker.NewPrice(tk.Time, tk.Symbol, tk.Price); err != nil {
				return r.abort(err)
			}
		}
		for _, c := range agg.Flush() {
			if err := r.closeCandle(ctx, c, 0); err != nil {
				return err
			}
		}
		return nil
	}()
	return r.finish(err)
}

func (r *Runner) replayGroup(ctx context.Context, group []pricing.Candle, total int) error {
	for _, tk := range pricing.ExpandGroup(group, r.Policy, r.Step) {
		r.ticks++
		if err := r.Broker.NewPrice(tk.Time, tk.Symbol, tk.Price); err != nil {
			r.closed = append(r.closed, group...)
			return r.abort(err)
		}
	}
	for _, c := range group {
		if err := r.closeCandle(ctx, c, total); err != nil {
			return err
		}
	}
	return nil
}

// closeCandle journals the candle's fills, hands the candle to the strategy
// and records an equity snapshot.
func (r *Runner) closeCandle(ctx context.Context, c pricing.Candle, total int) error {
	r.closed = append(r.closed, c)
	if err := r.flushExecutions(); err != nil {
		return err
	}
	if err := r.Strategy.OnCandle(ctx, r.Broker, c); err != nil {
		return r.abort(fmt.Errorf("%s on %s at %s: %w", r.Strategy.Name(), c.Symbol, c.Time.Format(time.RFC3339), err))
	}

	acct := r.Broker.Account()
	if err := r.Journal.RecordEquity(journal.NewEquitySnapshot(r.RunID, r.Broker.Now(), acct)); err != nil {
		return err
	}
	r.curve = append(r.curve, acct.Equity().InexactFloat64())

	if r.Progress != nil {
		r.Progress(len(r.closed), total)
	}
	return nil
}

// abort journals whatever filled before err and marks margin call stops.
func (r *Runner) abort(err error) error {
	if errors.Is(err, sim.ErrMarginCall) {
		r.marginStop = true
	}
	if ferr := r.flushExecutions(); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

func (r *Runner) finish(runErr error) (Result, error) {
	res := Summarize(SummaryInput{
		RunID:        r.RunID,
		Strategy:     r.Strategy.Name(),
		Candles:      r.closed,
		StartBalance: r.startBalance,
		Account:      r.Broker.Account(),
		Transactions: r.Broker.Transactions(),
		Executions:   len(r.Broker.Executions()),
		Positions:    len(r.Broker.Positions()),
		Equity:       r.curve,
	})
	res.Ticks = r.ticks
	res.MarginCalls = r.marginCalls
	res.MarginCall = r.marginStop

	if err := r.Journal.RecordRun(res.Run(r.Dataset, r.Config, time.Now())); err != nil {
		runErr = errors.Join(runErr, err)
	}

	entry := r.logger().WithFields(log.Fields{
		"run_id":      r.RunID,
		"strategy":    res.Strategy,
		"candles":     res.Candles,
		"ticks":       res.Ticks,
		"executions":  res.Executions,
		"end_balance": res.EndBalance.String(),
		"net_pl":      res.NetPL.String(),
	})
	if runErr != nil {
		entry.WithError(runErr).Error("backtest aborted")
		return res, fmt.Errorf("backtest %s: %w", r.RunID, runErr)
	}
	entry.Info("backtest finished")
	return res, nil
}

func (r *Runner) flushExecutions() error {
	for _, ex := range r.Broker.ExecutionsSince(r.lastExecID) {
		if err := r.Journal.RecordExecution(journal.NewExecutionRecord(r.RunID, ex)); err != nil {
			return err
		}
		r.lastExecID = ex.ID
		r.logger().WithFields(log.Fields{
			"run_id": r.RunID,
			"order":  ex.OrderID,
			"symbol": ex.Symbol,
			"side":   ex.Side.String(),
			"qty":    ex.Quantity.String(),
			"price":  ex.Price.String(),
		}).Debug("execution")
	}
	return nil
}
