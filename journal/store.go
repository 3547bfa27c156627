package journal

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the sqlx-backed Ledger. Queries are written with ?
// placeholders and rebound per driver, so the same code serves SQLite
// files and a Postgres DATABASE_URL.
type Store struct {
	db *sqlx.DB
}

var _ Ledger = (*Store)(nil)

// driverNames maps the config driver to the registered sql driver.
var driverNames = map[string]string{
	"sqlite":   "sqlite3",
	"postgres": "postgres",
}

const initialPeakEquity = 10000

// Open connects, applies the schema, and seeds the singleton portfolio
// and app-state rows.
func Open(driver, dsn string) (*Store, error) {
	name, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	db, err := sqlx.Connect(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed journal: %w", err)
	}
	return s, nil
}

func (s *Store) seed() error {
	var n int
	if err := s.db.Get(&n, s.db.Rebind(`SELECT COUNT(*) FROM portfolio WHERE id = ?`), 1); err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.Exec(s.db.Rebind(
			`INSERT INTO portfolio (id, peak_equity) VALUES (?, ?)`), 1, initialPeakEquity); err != nil {
			return err
		}
	}

	if err := s.db.Get(&n, s.db.Rebind(`SELECT COUNT(*) FROM app_state WHERE id = ?`), 1); err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.Exec(s.db.Rebind(
			`INSERT INTO app_state (id, kill_switch) VALUES (?, ?)`), 1, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddTrade(t Trade) error {
	if t.ID == "" {
		return fmt.Errorf("trade id is required")
	}
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO trades
		(id, symbol, security_id, entry_price, stop_price, position_size,
		 confidence, status, entry_date, buy_order_id, stop_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Symbol, t.SecurityID, t.EntryPrice, t.StopPrice, t.PositionSize,
		t.Confidence, t.Status, t.EntryDate, t.BuyOrderID, t.StopOrderID,
	)
	if err != nil {
		return fmt.Errorf("add trade %s: %w", t.Symbol, err)
	}
	return nil
}

func (s *Store) ActiveTrades() ([]Trade, error) {
	var out []Trade
	err := s.db.Select(&out, s.db.Rebind(
		`SELECT * FROM trades WHERE status = ? ORDER BY entry_date, id`), StatusActive)
	return out, err
}

func (s *Store) AllTrades() ([]Trade, error) {
	var out []Trade
	err := s.db.Select(&out, `SELECT * FROM trades ORDER BY entry_date DESC, id DESC`)
	return out, err
}

func (s *Store) RaiseStop(tradeID string, stop float64) error {
	// WHERE clause enforces the ratchet: stops only move up.
	_, err := s.db.Exec(s.db.Rebind(
		`UPDATE trades SET stop_price = ? WHERE id = ? AND stop_price < ?`),
		stop, tradeID, stop)
	if err != nil {
		return fmt.Errorf("raise stop for %s: %w", tradeID, err)
	}
	return nil
}

func (s *Store) CloseTrade(tradeID string) error {
	res, err := s.db.Exec(s.db.Rebind(
		`UPDATE trades SET status = ? WHERE id = ?`), StatusClosed, tradeID)
	if err != nil {
		return fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("close trade %s: not found", tradeID)
	}
	return nil
}

func (s *Store) PeakEquity() (float64, error) {
	var v float64
	err := s.db.Get(&v, s.db.Rebind(`SELECT peak_equity FROM portfolio WHERE id = ?`), 1)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

func (s *Store) UpdatePeakEquity(equity float64) error {
	_, err := s.db.Exec(s.db.Rebind(
		`UPDATE portfolio SET peak_equity = ? WHERE id = ? AND peak_equity < ?`),
		equity, 1, equity)
	return err
}

func (s *Store) KillSwitch() (bool, error) {
	var v int
	err := s.db.Get(&v, s.db.Rebind(`SELECT kill_switch FROM app_state WHERE id = ?`), 1)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return v != 0, err
}

func (s *Store) SetKillSwitch(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	_, err := s.db.Exec(s.db.Rebind(`UPDATE app_state SET kill_switch = ? WHERE id = ?`), v, 1)
	return err
}

func (s *Store) WeeklyCount(isoWeek string) (int, error) {
	var v int
	err := s.db.Get(&v, s.db.Rebind(`SELECT count FROM weekly_trades WHERE iso_week = ?`), isoWeek)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

func (s *Store) IncrementWeeklyCount(isoWeek string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO weekly_trades (iso_week, count) VALUES (?, 1)
		ON CONFLICT (iso_week) DO UPDATE SET count = weekly_trades.count + 1`),
		isoWeek)
	return err
}

func (s *Store) RecordEquity(date string, equity float64) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO equity_history (date, equity) VALUES (?, ?)
		ON CONFLICT (date) DO UPDATE SET equity = excluded.equity`),
		date, equity)
	return err
}

func (s *Store) EquityHistory() ([]EquityPoint, error) {
	var out []EquityPoint
	err := s.db.Select(&out, `SELECT date, equity FROM equity_history ORDER BY date`)
	return out, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
