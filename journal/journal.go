// Package journal persists trades, portfolio state, and equity history.
// It is the single owner of all persisted records: the scanner and risk
// monitor propose mutations but never write directly.
package journal

import (
	"fmt"
	"time"
)

// Trade statuses. Trades are never deleted; a stop hit flips the status
// to CLOSED.
const (
	StatusActive = "ACTIVE"
	StatusClosed = "CLOSED"
)

// Trade is one persisted trade record. PositionSize is capital value,
// not share count.
type Trade struct {
	ID           string  `db:"id"`
	Symbol       string  `db:"symbol"`
	SecurityID   string  `db:"security_id"`
	EntryPrice   float64 `db:"entry_price"`
	StopPrice    float64 `db:"stop_price"`
	PositionSize float64 `db:"position_size"`
	Confidence   float64 `db:"confidence"`
	Status       string  `db:"status"`
	EntryDate    string  `db:"entry_date"`
	BuyOrderID   string  `db:"buy_order_id"`
	StopOrderID  string  `db:"stop_order_id"`
}

// EquityPoint is one row of the equity history.
type EquityPoint struct {
	Date   string  `db:"date"`
	Equity float64 `db:"equity"`
}

// Ledger is the persistence contract the engine depends on.
type Ledger interface {
	AddTrade(t Trade) error
	ActiveTrades() ([]Trade, error)
	AllTrades() ([]Trade, error)

	// RaiseStop tightens a trade's stop. The ratchet is enforced at the
	// store: a stop lower than or equal to the current one is a no-op.
	RaiseStop(tradeID string, stop float64) error
	CloseTrade(tradeID string) error

	PeakEquity() (float64, error)
	// UpdatePeakEquity raises the stored peak; lower values are
	// ignored, keeping the peak monotonically non-decreasing.
	UpdatePeakEquity(equity float64) error

	KillSwitch() (bool, error)
	SetKillSwitch(enabled bool) error

	WeeklyCount(isoWeek string) (int, error)
	IncrementWeeklyCount(isoWeek string) error

	RecordEquity(date string, equity float64) error
	EquityHistory() ([]EquityPoint, error)

	Close() error
}

// ISOWeekKey formats the weekly-count key for a point in time, e.g.
// "2026-W35".
func ISOWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
