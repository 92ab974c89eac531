package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/broker/sim"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/rustyeddy/tradelab/strategies"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ohlc(i int, o, h, l, c string) pricing.Candle {
	return pricing.Candle{
		Symbol: "ACME",
		Time:   t0.Add(time.Duration(i) * time.Minute),
		Open:   d(o),
		High:   d(h),
		Low:    d(l),
		Close:  d(c),
	}
}

type fixture struct {
	runner *Runner
	broker *sim.Broker
	jrnl   *journal.Memory
	hook   *test.Hook
}

// newFixture wires a runner around an open-once buyer of 10 ACME. The
// maintenance margin of 8500 trips once the position is down about 1500.
func newFixture(t *testing.T, stopOnMarginCall bool) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	strat, err := strategies.NewOpenOnce(strategies.Params{
		Broker:     "SIM",
		Instrument: broker.Equity,
		Symbol:     "ACME",
		Quantity:   d("10"),
	})
	require.NoError(t, err)

	r := &Runner{
		Strategy:         strat,
		Journal:          journal.NewMemory(),
		Policy:           pricing.Direction,
		Step:             time.Minute,
		Logger:           logger,
		RunID:            "run-1",
		StopOnMarginCall: stopOnMarginCall,
		Dataset:          "acme.csv",
	}

	s := sim.DefaultSettings()
	s.MaintenanceMargin = d("8500")
	b, err := sim.NewBroker(s, sim.WithMarginCall(r.OnMarginCall))
	require.NoError(t, err)
	r.Broker = b

	return &fixture{runner: r, broker: b, jrnl: r.Journal.(*journal.Memory), hook: hook}
}

func TestRunJournalsExecutionsAndEquity(t *testing.T) {
	f := newFixture(t, true)

	var progress []int
	f.runner.Progress = func(done, total int) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	}

	res, err := f.runner.Run(context.Background(), []pricing.Candle{
		ohlc(0, "100", "101", "99", "100"),
		ohlc(1, "100", "101", "99", "100"),
		ohlc(2, "100", "106", "99", "105"),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, progress)

	require.Len(t, f.jrnl.Executions, 1)
	ex := f.jrnl.Executions[0]
	assert.Equal(t, "run-1", ex.RunID)
	assert.Equal(t, broker.Buy, ex.Side)
	assert.True(t, d("100").Equal(ex.Price))

	require.Len(t, f.jrnl.Equity, 3)
	assert.True(t, d("1000").Equal(f.jrnl.Equity[0].UsedMargin), "market order margin is reserved until it fills")
	last := f.jrnl.Equity[2]
	assert.True(t, d("105").Mul(d("10")).Sub(d("1000")).Equal(last.UnrealizedPnL))

	assert.Equal(t, 3, res.Candles)
	assert.Equal(t, "ACME", res.Symbol)
	assert.Equal(t, 1, res.Executions)
	assert.Equal(t, 1, res.OpenPositions)
	assert.Equal(t, 0, res.RoundTrips)
	assert.True(t, d("10000").Equal(res.EndBalance))
	assert.False(t, res.MarginCall)

	require.Len(t, f.jrnl.Runs, 1)
	run := f.jrnl.Runs[0]
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "acme.csv", run.Dataset)
	assert.Equal(t, "open-once", run.Strategy)
	assert.Len(t, run.Notes, 1, "open position is noted")
}

func TestRunStopsOnMarginCall(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.runner.Run(context.Background(), []pricing.Candle{
		ohlc(0, "100", "101", "99", "100"),
		ohlc(1, "100", "101", "99", "100"),
		// bearish: 60, 61, 38, 40; the call fires at 38
		ohlc(2, "60", "61", "38", "40"),
		ohlc(3, "40", "41", "39", "40"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrMarginCall)
	assert.ErrorIs(t, err, ErrStopped)

	assert.True(t, res.MarginCall)
	assert.Equal(t, 1, res.MarginCalls)
	assert.Equal(t, 3, res.Candles)
	assert.Len(t, f.jrnl.Equity, 2, "the aborted candle gets no snapshot")
	require.Len(t, f.jrnl.Runs, 1)
	assert.True(t, f.jrnl.Runs[0].MarginCall)

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Message == "margin call" {
			warned = true
			assert.Equal(t, "run-1", e.Data["run_id"])
		}
	}
	assert.True(t, warned)
	assert.Equal(t, log.ErrorLevel, f.hook.LastEntry().Level)
}

func TestRunContinuesThroughMarginCall(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.runner.Run(context.Background(), []pricing.Candle{
		ohlc(0, "100", "101", "99", "100"),
		ohlc(1, "100", "101", "99", "100"),
		ohlc(2, "60", "61", "38", "40"),
	})
	require.NoError(t, err)

	// 38 and 40 both leave available margin under 8500
	assert.Equal(t, 2, res.MarginCalls)
	assert.False(t, res.MarginCall)
	assert.Len(t, f.jrnl.Equity, 3)
	assert.Equal(t, 2, f.runner.MarginCalls())
}

func TestRunHonoursContext(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.runner.Run(ctx, []pricing.Candle{ohlc(0, "100", "101", "99", "100")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Candles)
	assert.Empty(t, f.jrnl.Equity)
	assert.Len(t, f.jrnl.Runs, 1)
}

type failingStrategy struct{ err error }

func (failingStrategy) Name() string { return "failing" }

func (s failingStrategy) OnCandle(context.Context, broker.Broker, pricing.Candle) error {
	return s.err
}

func TestRunStrategyError(t *testing.T) {
	f := newFixture(t, true)
	boom := errors.New("boom")
	f.runner.Strategy = failingStrategy{err: boom}

	_, err := f.runner.Run(context.Background(), []pricing.Candle{ohlc(0, "100", "101", "99", "100")})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failing on ACME")
}

func TestRunRequiresBrokerAndStrategy(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), nil)
	assert.ErrorContains(t, err, "Broker is required")

	b, err := sim.NewBroker(sim.DefaultSettings())
	require.NoError(t, err)
	_, err = (&Runner{Broker: b}).Run(context.Background(), nil)
	assert.ErrorContains(t, err, "Strategy is required")
}

func TestRunFullRoundTrip(t *testing.T) {
	b, err := sim.NewBroker(sim.DefaultSettings())
	require.NoError(t, err)

	strat, err := strategies.NewBracket(strategies.Params{
		Broker:     "SIM",
		Instrument: broker.Equity,
		Symbol:     "ACME",
		Quantity:   d("10"),
		Pullback:   d("0.01"),
		TakeProfit: d("0.02"),
		StopLoss:   d("0.02"),
	})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	r := &Runner{Broker: b, Strategy: strat, Step: time.Minute, Logger: logger}

	res, err := r.Run(context.Background(), []pricing.Candle{
		ohlc(0, "100", "100.5", "99.5", "100"),
		ohlc(1, "100", "100.2", "98", "99.5"),
		ohlc(2, "99.5", "101.5", "99.4", "101"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID, "a run id is generated")

	assert.Equal(t, 2, res.Executions)
	assert.Equal(t, 1, res.RoundTrips)
	assert.Equal(t, 1, res.Wins)
	assert.InDelta(t, 1.0, res.WinRate, 1e-9)
	assert.True(t, d("19.20006").Equal(res.NetPL), "net %s", res.NetPL)
	assert.InDelta(t, 19.20006, res.PnLMean, 1e-9)
	assert.InDelta(t, 0.192, res.ReturnPct, 1e-4)
}

func TestRunTicksMatchesCandleReplay(t *testing.T) {
	candles := []pricing.Candle{
		ohlc(0, "100", "100.5", "99.5", "100"),
		ohlc(1, "100", "100.2", "98", "99.5"),
		ohlc(2, "99.5", "101.5", "99.4", "101"),
	}
	var ticks []pricing.Tick
	for _, c := range candles {
		ticks = append(ticks, pricing.Expand(c, pricing.Direction, time.Minute)...)
	}

	b, err := sim.NewBroker(sim.DefaultSettings())
	require.NoError(t, err)
	strat, err := strategies.NewBracket(strategies.Params{
		Broker:     "SIM",
		Instrument: broker.Equity,
		Symbol:     "ACME",
		Quantity:   d("10"),
		Pullback:   d("0.01"),
		TakeProfit: d("0.02"),
		StopLoss:   d("0.02"),
	})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	jrnl := journal.NewMemory()
	r := &Runner{Broker: b, Strategy: strat, Journal: jrnl, Step: time.Minute, Logger: logger}

	var totals []int
	r.Progress = func(done, total int) { totals = append(totals, total) }

	res, err := r.RunTicks(context.Background(), &pricing.SliceTicks{Ticks: ticks})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Ticks)
	assert.Equal(t, 3, res.Candles)
	assert.Equal(t, []int{0, 0, 0}, totals)
	assert.Equal(t, 2, res.Executions)
	assert.Len(t, jrnl.Executions, 2)
	assert.True(t, d("19.20006").Equal(res.NetPL), "net %s", res.NetPL)
}

type brokenSource struct{}

func (brokenSource) Next() (pricing.Tick, bool, error) {
	return pricing.Tick{}, false, errors.New("disk on fire")
}

func TestRunInterleavesSymbolsSharingATime(t *testing.T) {
	f := newFixture(t, true)

	beta := func(i int, o, h, l, c string) pricing.Candle {
		cd := ohlc(i, o, h, l, c)
		cd.Symbol = "BETA"
		return cd
	}

	var seen []string
	f.runner.Progress = func(done, total int) {
		assert.Equal(t, 4, total)
		seen = append(seen, f.runner.closed[done-1].Symbol)
	}

	// one symbol after the other, as a per-symbol CSV lays them out
	res, err := f.runner.Run(context.Background(), []pricing.Candle{
		ohlc(0, "100", "101", "99", "100"),
		ohlc(1, "100", "102", "99", "101"),
		beta(0, "50", "51", "49", "50"),
		beta(1, "50", "52", "49", "51"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ACME", "BETA", "ACME", "BETA"}, seen)
	assert.Equal(t, 4, res.Candles)
	assert.Equal(t, 16, res.Ticks)
	assert.Equal(t, 1, res.Executions)

	last, ok := f.broker.LastPrice("BETA")
	require.True(t, ok)
	assert.True(t, d("51").Equal(last))
	assert.Equal(t, t0.Add(time.Minute+45*time.Second), f.broker.Now())
}

func TestRunTicksSourceError(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.runner.RunTicks(context.Background(), brokenSource{})
	assert.ErrorContains(t, err, "disk on fire")
	assert.Len(t, f.jrnl.Runs, 1)
}
