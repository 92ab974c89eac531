package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema in %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordExecution(e ExecutionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO executions
		(run_id, execution_id, order_id, broker, instrument, symbol, side, quantity, price, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.ExecutionID, e.OrderID, e.Broker, string(e.Instrument), e.Symbol,
		e.Side.String(), e.Quantity, e.Price, e.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record execution %d: %w", e.ExecutionID, err)
	}
	return nil
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, balance, used_margin, available_margin, unrealized_pnl)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.Balance, e.UsedMargin, e.AvailableMargin, e.UnrealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("record equity at %s: %w", e.Time, err)
	}
	return nil
}

// RecordRun inserts or replaces the run summary.
func (j *SQLite) RecordRun(r BacktestRun) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs
		(run_id, created, dataset, symbol, strategy, config, start_time, end_time, candles,
		 executions, round_trips, wins, losses, start_balance, end_balance, net_pl,
		 return_pct, win_rate, profit_factor, max_dd_pct, pnl_mean, pnl_stddev, margin_call)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Dataset, r.Symbol, r.Strategy, string(r.Config),
		r.Start.UTC(), r.End.UTC(), r.Candles,
		r.Executions, r.RoundTrips, r.Wins, r.Losses, r.StartBalance, r.EndBalance, r.NetPL,
		r.ReturnPct, r.WinRate, r.ProfitFactor, r.MaxDDPct, r.PnLMean, r.PnLStdDev, r.MarginCall,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
