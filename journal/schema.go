package journal

// Schema uses only type names both SQLite and Postgres accept, so one
// DDL serves the two supported drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	security_id TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	stop_price DOUBLE PRECISION NOT NULL,
	position_size DOUBLE PRECISION NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL,
	entry_date TEXT NOT NULL,
	buy_order_id TEXT NOT NULL DEFAULT '',
	stop_order_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS portfolio (
	id INTEGER PRIMARY KEY,
	peak_equity DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS app_state (
	id INTEGER PRIMARY KEY,
	kill_switch INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS weekly_trades (
	iso_week TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_history (
	date TEXT PRIMARY KEY,
	equity DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
`
