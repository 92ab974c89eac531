package backtest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/broker/sim"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/shopspring/decimal"
)

// Result summarizes a backtest run.
type Result struct {
	RunID    string
	Strategy string
	Symbol   string

	Start   time.Time
	End     time.Time
	Candles int
	Ticks   int

	StartBalance decimal.Decimal
	EndBalance   decimal.Decimal
	EndEquity    decimal.Decimal
	NetPL        decimal.Decimal

	Executions    int
	OpenPositions int
	RoundTrips    int
	Wins          int
	Losses        int

	WinRate      float64 // fraction of round trips that made money
	ReturnPct    float64
	MaxDDPct     float64
	PnLMean      float64
	PnLStdDev    float64
	ProfitFactor float64

	MarginCall  bool // the run was stopped by a margin call
	MarginCalls int
}

type SummaryInput struct {
	RunID        string
	Strategy     string
	Candles      []pricing.Candle
	StartBalance decimal.Decimal
	Account      broker.Account
	Transactions []sim.Transaction
	Executions   int
	Positions    int
	Equity       []float64
}

// Summarize builds a Result. Every ledger entry after the opening balance is
// one realized round trip.
func Summarize(in SummaryInput) Result {
	res := Result{
		RunID:         in.RunID,
		Strategy:      in.Strategy,
		Candles:       len(in.Candles),
		StartBalance:  in.StartBalance,
		EndBalance:    in.Account.Balance,
		EndEquity:     in.Account.Equity(),
		NetPL:         in.Account.Balance.Sub(in.StartBalance),
		Executions:    in.Executions,
		OpenPositions: in.Positions,
	}
	if n := len(in.Candles); n > 0 {
		res.Symbol = in.Candles[0].Symbol
		res.Start = in.Candles[0].Time
		res.End = in.Candles[n-1].Time
	}
	if in.StartBalance.IsPositive() {
		res.ReturnPct = res.NetPL.Div(in.StartBalance).InexactFloat64() * 100
	}

	var pnl []float64
	var grossWin, grossLoss float64
	if len(in.Transactions) > 1 {
		for _, tx := range in.Transactions[1:] {
			v := tx.Amount.InexactFloat64()
			pnl = append(pnl, v)
			switch {
			case v > 0:
				res.Wins++
				grossWin += v
			case v < 0:
				res.Losses++
				grossLoss -= v
			}
		}
	}
	res.RoundTrips = len(pnl)
	if res.RoundTrips > 0 {
		res.WinRate = float64(res.Wins) / float64(res.RoundTrips)
		res.PnLMean, _ = stats.Mean(pnl)
		res.PnLStdDev, _ = stats.StandardDeviation(pnl)
	}
	if grossLoss > 0 {
		res.ProfitFactor = grossWin / grossLoss
	}

	res.MaxDDPct = MaxDrawdownPct(in.Equity)
	return res
}

// MaxDrawdownPct is the deepest fall from a running peak, in percent.
func MaxDrawdownPct(curve []float64) float64 {
	var peak, dd float64
	for i, v := range curve {
		if i == 0 || v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			dd = math.Max(dd, (peak-v)/peak*100)
		}
	}
	return dd
}

// Run converts the result into the journal's run summary.
func (r Result) Run(dataset string, config []byte, created time.Time) journal.BacktestRun {
	run := journal.BacktestRun{
		RunID:        r.RunID,
		Created:      created,
		Dataset:      dataset,
		Symbol:       r.Symbol,
		Strategy:     r.Strategy,
		Config:       config,
		Start:        r.Start,
		End:          r.End,
		Candles:      r.Candles,
		Executions:   r.Executions,
		RoundTrips:   r.RoundTrips,
		Wins:         r.Wins,
		Losses:       r.Losses,
		StartBalance: r.StartBalance,
		EndBalance:   r.EndBalance,
		NetPL:        r.NetPL,
		ReturnPct:    r.ReturnPct,
		WinRate:      r.WinRate,
		ProfitFactor: r.ProfitFactor,
		MaxDDPct:     r.MaxDDPct,
		PnLMean:      r.PnLMean,
		PnLStdDev:    r.PnLStdDev,
		MarginCall:   r.MarginCall,
	}
	if r.OpenPositions > 0 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d position(s) still open at the end, unrealized P/L %s",
			r.OpenPositions, r.EndEquity.Sub(r.EndBalance).StringFixed(2)))
	}
	if r.MarginCalls > 0 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d margin call(s)", r.MarginCalls))
	}
	return run
}

func PrintResult(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnSeparator("")

	rows := [][]string{
		{"Run ID", r.RunID},
		{"Strategy", r.Strategy},
		{"Symbol", r.Symbol},
		{"Start", fmtTime(r.Start)},
		{"End", fmtTime(r.End)},
		{"Candles", fmt.Sprint(r.Candles)},
		{"Ticks", fmt.Sprint(r.Ticks)},
		{"Executions", fmt.Sprint(r.Executions)},
		{"Round Trips", fmt.Sprint(r.RoundTrips)},
		{"Wins", fmt.Sprint(r.Wins)},
		{"Losses", fmt.Sprint(r.Losses)},
		{"Win Rate", fmt.Sprintf("%.2f%%", r.WinRate*100)},
		{"Start Balance", r.StartBalance.StringFixed(2)},
		{"End Balance", r.EndBalance.StringFixed(2)},
		{"End Equity", r.EndEquity.StringFixed(2)},
		{"Net P/L", r.NetPL.StringFixed(2)},
		{"Return", fmt.Sprintf("%.2f%%", r.ReturnPct)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDDPct)},
		{"Mean P/L", fmt.Sprintf("%.2f", r.PnLMean)},
		{"P/L StdDev", fmt.Sprintf("%.2f", r.PnLStdDev)},
	}
	if r.ProfitFactor > 0 {
		rows = append(rows, []string{"Profit Factor", fmt.Sprintf("%.2f", r.ProfitFactor)})
	}
	if r.OpenPositions > 0 {
		rows = append(rows, []string{"Open Positions", fmt.Sprint(r.OpenPositions)})
	}
	if r.MarginCalls > 0 {
		rows = append(rows, []string{"Margin Calls", fmt.Sprint(r.MarginCalls)})
	}
	if r.MarginCall {
		rows = append(rows, []string{"Stopped", "margin call"})
	}
	table.AppendBulk(rows)
	table.Render()
	fmt.Fprintln(w)
}

func PrintExecutions(w io.Writer, execs []broker.Execution) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Order", "Time", "Symbol", "Side", "Qty", "Price", "Notional"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, ex := range execs {
		table.Append([]string{
			fmt.Sprint(ex.ID),
			fmt.Sprint(ex.OrderID),
			fmtTime(ex.Time),
			ex.Symbol,
			ex.Side.String(),
			ex.Quantity.String(),
			ex.Price.String(),
			ex.Notional().StringFixed(2),
		})
	}
	table.Render()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
