package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func sampleTrade(id string) Trade {
	return Trade{
		ID:           id,
		Symbol:       "TCS",
		SecurityID:   "11536",
		EntryPrice:   100,
		StopPrice:    95,
		PositionSize: 2000,
		Confidence:   75,
		Status:       StatusActive,
		EntryDate:    "2026-08-28",
		BuyOrderID:   "B1",
		StopOrderID:  "S1",
	}
}

func TestOpenSeedsSingletonRows(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	peak, err := s.PeakEquity()
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, peak, 1e-9)

	ks, err := s.KillSwitch()
	require.NoError(t, err)
	assert.False(t, ks)
}

func TestAddAndListTrades(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.AddTrade(sampleTrade("T1")))
	require.NoError(t, s.AddTrade(sampleTrade("T2")))
	require.NoError(t, s.CloseTrade("T2"))

	active, err := s.ActiveTrades()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "T1", active[0].ID)

	all, err := s.AllTrades()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAddTradeRequiresID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	tr := sampleTrade("")
	assert.Error(t, s.AddTrade(tr))
}

func TestRaiseStopRatchet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.AddTrade(sampleTrade("T1")))

	require.NoError(t, s.RaiseStop("T1", 100))
	require.NoError(t, s.RaiseStop("T1", 97)) // lower: silently ignored

	active, err := s.ActiveTrades()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.InDelta(t, 100.0, active[0].StopPrice, 1e-9)
}

func TestCloseTradeNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.Error(t, s.CloseTrade("missing"))
}

func TestPeakEquityMonotone(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.UpdatePeakEquity(12000))
	require.NoError(t, s.UpdatePeakEquity(11000)) // lower: ignored

	peak, err := s.PeakEquity()
	require.NoError(t, err)
	assert.InDelta(t, 12000.0, peak, 1e-9)
}

func TestKillSwitchRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.SetKillSwitch(true))
	ks, err := s.KillSwitch()
	require.NoError(t, err)
	assert.True(t, ks)

	require.NoError(t, s.SetKillSwitch(false))
	ks, err = s.KillSwitch()
	require.NoError(t, err)
	assert.False(t, ks)
}

func TestWeeklyCount(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	week := ISOWeekKey(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))

	n, err := s.WeeklyCount(week)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.IncrementWeeklyCount(week))
	require.NoError(t, s.IncrementWeeklyCount(week))

	n, err = s.WeeklyCount(week)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	other, err := s.WeeklyCount("2026-W01")
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

func TestEquityHistoryUpsert(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.RecordEquity("2026-08-27", 10100))
	require.NoError(t, s.RecordEquity("2026-08-28", 10150))
	require.NoError(t, s.RecordEquity("2026-08-28", 10200)) // same day overwrites

	points, err := s.EquityHistory()
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 10200.0, points[1].Equity, 1e-9)
}

func TestISOWeekKey(t *testing.T) {
	t.Parallel()

	// 2026-01-01 falls in ISO week 1 of 2026.
	assert.Equal(t, "2026-W01", ISOWeekKey(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-W35", ISOWeekKey(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)))
}
