package journal

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rustyeddy/tradelab/broker"
)

// ListExecutions returns a run's executions in execution order.
func (j *SQLite) ListExecutions(runID string) ([]ExecutionRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, execution_id, order_id, broker, instrument, symbol, side, quantity, price, time
		FROM executions
		WHERE run_id = ?
		ORDER BY execution_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var (
			rec        ExecutionRecord
			instrument string
			side       string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.ExecutionID,
			&rec.OrderID,
			&rec.Broker,
			&instrument,
			&rec.Symbol,
			&side,
			&rec.Quantity,
			&rec.Price,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		rec.Instrument = broker.InstrumentKind(instrument)
		if rec.Side, err = broker.ParseSide(side); err != nil {
			return nil, fmt.Errorf("execution %d: %w", rec.ExecutionID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a run's equity curve in time order.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, balance, used_margin, available_margin, unrealized_pnl
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(
			&e.RunID,
			&e.Time,
			&e.Balance,
			&e.UsedMargin,
			&e.AvailableMargin,
			&e.UnrealizedPnL,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) GetRun(runID string) (BacktestRun, error) {
	var (
		r      BacktestRun
		config string
	)
	row := j.db.QueryRow(`
		SELECT run_id, created, dataset, symbol, strategy, config, start_time, end_time, candles,
		       executions, round_trips, wins, losses, start_balance, end_balance, net_pl,
		       return_pct, win_rate, profit_factor, max_dd_pct, pnl_mean, pnl_stddev, margin_call
		FROM backtest_runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Created, &r.Dataset, &r.Symbol, &r.Strategy, &config,
		&r.Start, &r.End, &r.Candles,
		&r.Executions, &r.RoundTrips, &r.Wins, &r.Losses,
		&r.StartBalance, &r.EndBalance, &r.NetPL,
		&r.ReturnPct, &r.WinRate, &r.ProfitFactor, &r.MaxDDPct, &r.PnLMean, &r.PnLStdDev, &r.MarginCall,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return BacktestRun{}, err
	}
	r.Config = []byte(config)
	return r, nil
}

// ListRuns returns every run id, newest first. Run ids are ULIDs so they
// sort by creation time.
func (j *SQLite) ListRuns() ([]string, error) {
	rows, err := j.db.Query(`SELECT run_id FROM backtest_runs ORDER BY run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
