package backtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/broker/sim"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdownPct(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{name: "empty", curve: nil, want: 0},
		{name: "only_up", curve: []float64{100, 110, 120}, want: 0},
		{name: "single_dip", curve: []float64{100, 90, 120}, want: 10},
		{name: "deepest_from_later_peak", curve: []float64{100, 95, 200, 150, 210}, want: 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdownPct(tt.curve), 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	res := Summarize(SummaryInput{
		RunID:        "r",
		Strategy:     "bracket",
		Candles:      []pricing.Candle{ohlc(0, "1", "1", "1", "1"), ohlc(5, "1", "1", "1", "1")},
		StartBalance: d("10000"),
		Account:      broker.Account{Balance: d("10010")},
		Transactions: []sim.Transaction{
			{Amount: d("10000")},
			{Amount: d("30")},
			{Amount: d("-10")},
			{Amount: d("-10")},
		},
		Executions: 6,
		Equity:     []float64{10000, 10030, 10010},
	})

	assert.Equal(t, 3, res.RoundTrips)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 2, res.Losses)
	assert.InDelta(t, 1.0/3, res.WinRate, 1e-9)
	assert.InDelta(t, 1.5, res.ProfitFactor, 1e-9)
	assert.InDelta(t, 10.0/3, res.PnLMean, 1e-9)
	assert.InDelta(t, 0.1, res.ReturnPct, 1e-9)
	assert.True(t, d("10").Equal(res.NetPL))
	assert.Equal(t, t0, res.Start)
	assert.Equal(t, t0.Add(5*time.Minute), res.End)
	assert.Greater(t, res.MaxDDPct, 0.0)

	run := res.Run("data.csv", []byte(`{}`), t0)
	assert.Equal(t, "bracket", run.Strategy)
	assert.Equal(t, 3, run.RoundTrips)
	assert.Empty(t, run.Notes)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	PrintResult(&buf, Result{
		RunID:        "01HX",
		Strategy:     "noop",
		StartBalance: d("10000"),
		EndBalance:   d("10098.77"),
		NetPL:        d("98.77"),
		MarginCall:   true,
		MarginCalls:  1,
	})
	out := buf.String()
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "10098.77")
	assert.Contains(t, out, "Margin Calls")
	assert.Contains(t, out, "margin call")
}

func TestPrintExecutions(t *testing.T) {
	var buf bytes.Buffer
	PrintExecutions(&buf, []broker.Execution{{
		ID: 1, OrderID: 3, Symbol: "ACME", Side: broker.Sell,
		Quantity: d("10"), Price: d("210"), Time: t0,
	}})
	out := buf.String()
	assert.Contains(t, out, "SYMBOL")
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "sell")
	assert.Contains(t, out, "2100.00")
}
