package journal

// Decimals are stored as TEXT so they round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS executions (
	run_id TEXT NOT NULL,
	execution_id INTEGER NOT NULL,
	order_id INTEGER NOT NULL,
	broker TEXT NOT NULL,
	instrument TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	time DATETIME NOT NULL,
	PRIMARY KEY (run_id, execution_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance TEXT NOT NULL,
	used_margin TEXT NOT NULL,
	available_margin TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	config TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	candles INTEGER NOT NULL,
	executions INTEGER NOT NULL,
	round_trips INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	start_balance TEXT NOT NULL,
	end_balance TEXT NOT NULL,
	net_pl TEXT NOT NULL,
	return_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	pnl_mean REAL NOT NULL,
	pnl_stddev REAL NOT NULL,
	margin_call INTEGER NOT NULL
);
`
