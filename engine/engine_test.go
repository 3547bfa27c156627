package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safealpha/engine/broker"
	"github.com/safealpha/engine/broker/sim"
	"github.com/safealpha/engine/config"
	"github.com/safealpha/engine/journal"
	"github.com/safealpha/engine/market"
	"github.com/safealpha/engine/risk"
)

type fakeResolver map[string][]string

func (r fakeResolver) Resolve(symbol string) []string { return r[symbol] }

type fakeFetcher struct {
	series map[string]market.Series
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, id, _, _ string) (market.Series, error) {
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.series[id], nil
}

// memLedger is an in-memory journal.Ledger for orchestration tests.
type memLedger struct {
	trades     []journal.Trade
	peak       float64
	killSwitch bool
	weekly     map[string]int
	equity     []journal.EquityPoint
}

func newMemLedger() *memLedger {
	return &memLedger{peak: 10000, weekly: map[string]int{}}
}

func (m *memLedger) AddTrade(t journal.Trade) error {
	m.trades = append(m.trades, t)
	return nil
}

func (m *memLedger) ActiveTrades() ([]journal.Trade, error) {
	var out []journal.Trade
	for _, t := range m.trades {
		if t.Status == journal.StatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memLedger) AllTrades() ([]journal.Trade, error) { return m.trades, nil }

func (m *memLedger) RaiseStop(id string, stop float64) error {
	for i := range m.trades {
		if m.trades[i].ID == id && stop > m.trades[i].StopPrice {
			m.trades[i].StopPrice = stop
		}
	}
	return nil
}

func (m *memLedger) CloseTrade(id string) error {
	for i := range m.trades {
		if m.trades[i].ID == id {
			m.trades[i].Status = journal.StatusClosed
		}
	}
	return nil
}

func (m *memLedger) PeakEquity() (float64, error) { return m.peak, nil }

func (m *memLedger) UpdatePeakEquity(equity float64) error {
	if equity > m.peak {
		m.peak = equity
	}
	return nil
}

func (m *memLedger) KillSwitch() (bool, error)        { return m.killSwitch, nil }
func (m *memLedger) SetKillSwitch(enabled bool) error { m.killSwitch = enabled; return nil }

func (m *memLedger) WeeklyCount(week string) (int, error)   { return m.weekly[week], nil }
func (m *memLedger) IncrementWeeklyCount(week string) error { m.weekly[week]++; return nil }

func (m *memLedger) RecordEquity(date string, equity float64) error {
	m.equity = append(m.equity, journal.EquityPoint{Date: date, Equity: equity})
	return nil
}

func (m *memLedger) EquityHistory() ([]journal.EquityPoint, error) { return m.equity, nil }

func (m *memLedger) Close() error { return nil }

var _ journal.Ledger = (*memLedger)(nil)

// breakoutSeries builds n bars of a steady uptrend whose final bar
// clears the prior 20-bar high on double volume.
func breakoutSeries(n int) market.Series {
	out := make(market.Series, n)
	price := 100.0
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price += 0.3
		out[i] = market.Candle{
			Time:   day.AddDate(0, 0, i),
			Open:   price - 0.2,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: 1000,
		}
	}
	last := &out[n-1]
	last.Close = out[n-2].Close + 1.0
	last.High = last.Close + 0.5
	last.Volume = 2000
	return out
}

// flatSeries builds n bars pinned at price with zero range, so the
// latest close and every EMA sit exactly at price.
func flatSeries(n int, price float64) market.Series {
	out := make(market.Series, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out[i] = market.Candle{
			Time: day.AddDate(0, 0, i), Open: price, High: price,
			Low: price, Close: price, Volume: 1000,
		}
	}
	return out
}

func newTestEngine(universe []string, fetcher *fakeFetcher, gw broker.Gateway, ledger journal.Ledger) *Engine {
	cfg := config.Default()
	cfg.Scanner.Universe = universe
	resolver := fakeResolver{}
	for i, sym := range universe {
		resolver[sym] = []string{string(rune('1' + i))}
	}
	return New(cfg, resolver, fetcher, gw, ledger, zerolog.Nop())
}

func TestExecuteScanEntersCandidate(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{series: map[string]market.Series{"1": breakoutSeries(250)}}
	gw := sim.New()
	ledger := newMemLedger()
	e := newTestEngine([]string{"A"}, fetcher, gw, ledger)

	rep, err := e.ExecuteScan(context.Background(), risk.ModeActive)
	require.NoError(t, err)

	require.Len(t, rep.Entered, 1)
	trade := rep.Entered[0]
	assert.Equal(t, "A", trade.Symbol)
	assert.NotEmpty(t, trade.ID)
	assert.NotEmpty(t, trade.BuyOrderID)
	assert.NotEmpty(t, trade.StopOrderID)
	assert.Greater(t, trade.StopPrice, 0.0)
	assert.Less(t, trade.StopPrice, trade.EntryPrice)

	orders := gw.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, broker.Buy, orders[0].Req.Side)
	assert.Equal(t, broker.Market, orders[0].Req.Type)
	assert.Equal(t, broker.Sell, orders[1].Req.Side)
	assert.Equal(t, broker.Stop, orders[1].Req.Type)

	active, err := ledger.ActiveTrades()
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, 1, ledger.weekly[journal.ISOWeekKey(time.Now())])
}

func TestExecuteScanKillSwitchBlocks(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{series: map[string]market.Series{"1": breakoutSeries(250)}}
	ledger := newMemLedger()
	ledger.killSwitch = true
	e := newTestEngine([]string{"A"}, fetcher, sim.New(), ledger)

	rep, err := e.ExecuteScan(context.Background(), risk.ModeActive)
	require.NoError(t, err)

	assert.Empty(t, rep.Entered)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, risk.ReasonKillSwitch, rep.Skipped[0].Reason)
	assert.Empty(t, ledger.trades)
}

func TestExecuteScanRespectsOpenTradeLimit(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	ledger := newMemLedger()
	for i := 0; i < cfg.Risk.MaxOpenTrades; i++ {
		require.NoError(t, ledger.AddTrade(journal.Trade{
			ID: string(rune('a' + i)), SecurityID: "9",
			EntryPrice: 100, PositionSize: 100, Status: journal.StatusActive,
		}))
	}
	fetcher := &fakeFetcher{series: map[string]market.Series{
		"1": breakoutSeries(250),
		"9": flatSeries(80, 100),
	}}
	e := newTestEngine([]string{"A"}, fetcher, sim.New(), ledger)

	rep, err := e.ExecuteScan(context.Background(), risk.ModeActive)
	require.NoError(t, err)

	assert.Empty(t, rep.Entered)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, risk.ReasonMaxOpenTrades, rep.Skipped[0].Reason)
}

func TestExecuteScanStopFailureStillRecordsTrade(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{series: map[string]market.Series{"1": breakoutSeries(250)}}
	gw := &stopRejectingGateway{inner: sim.New()}
	ledger := newMemLedger()
	e := newTestEngine([]string{"A"}, fetcher, gw, ledger)

	rep, err := e.ExecuteScan(context.Background(), risk.ModeActive)
	require.NoError(t, err)

	require.Len(t, rep.Entered, 1)
	assert.NotEmpty(t, rep.Entered[0].BuyOrderID)
	assert.Empty(t, rep.Entered[0].StopOrderID)
	assert.Len(t, ledger.trades, 1)
}

// stopRejectingGateway accepts market orders and rejects every stop
// variant, so even the stop-limit fallback fails.
type stopRejectingGateway struct {
	inner *sim.Gateway
}

func (g *stopRejectingGateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	if req.Type != broker.Market {
		return "", errors.New("stop orders rejected")
	}
	return g.inner.PlaceOrder(ctx, req)
}

func (g *stopRejectingGateway) ModifyOrder(ctx context.Context, orderID string, req broker.OrderRequest) error {
	return g.inner.ModifyOrder(ctx, orderID, req)
}

func TestEvaluateRiskVerdictsAndOrder(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	// Stop breached: flat at 90 with stop 95.
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t1", Symbol: "BREACHED", SecurityID: "1",
		EntryPrice: 100, StopPrice: 95, PositionSize: 1000,
		Status: journal.StatusActive,
	}))
	// Healthy: flat at 100, price never below its EMAs, stop far away.
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t2", Symbol: "HEALTHY", SecurityID: "2",
		EntryPrice: 90, StopPrice: 80, PositionSize: 900,
		Status: journal.StatusActive,
	}))
	// Too little history to review.
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t3", Symbol: "SHORT", SecurityID: "3",
		EntryPrice: 50, StopPrice: 45, PositionSize: 500,
		Status: journal.StatusActive,
	}))
	fetcher := &fakeFetcher{series: map[string]market.Series{
		"1": flatSeries(80, 90),
		"2": flatSeries(80, 100),
		"3": flatSeries(10, 50),
	}}
	e := newTestEngine([]string{"A"}, fetcher, sim.New(), ledger)

	advice, err := e.EvaluateRisk(context.Background())
	require.NoError(t, err)
	require.Len(t, advice, 3)

	byReason := map[string]Advice{}
	for _, a := range advice {
		byReason[a.Symbol] = a
	}
	assert.Equal(t, AdviceSell, byReason["BREACHED"].Verdict)
	assert.Equal(t, ReasonStopBreached, byReason["BREACHED"].Reason)
	assert.Equal(t, AdviceSell, byReason["SHORT"].Verdict)
	assert.Equal(t, ReasonInsufficientRisk, byReason["SHORT"].Reason)
	assert.Equal(t, AdviceHold, byReason["HEALTHY"].Verdict)
	assert.Equal(t, ReasonTrendIntact, byReason["HEALTHY"].Reason)

	// SELL rows come first; HOLD last.
	assert.Equal(t, AdviceHold, advice[2].Verdict)
}

func TestEvaluateRiskFetchFailureIsSell(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t1", Symbol: "A", SecurityID: "1",
		EntryPrice: 100, StopPrice: 95, PositionSize: 1000,
		Status: journal.StatusActive,
	}))
	fetcher := &fakeFetcher{errs: map[string]error{"1": errors.New("api down")}}
	e := newTestEngine([]string{"A"}, fetcher, sim.New(), ledger)

	advice, err := e.EvaluateRisk(context.Background())
	require.NoError(t, err)
	require.Len(t, advice, 1)
	assert.Equal(t, AdviceSell, advice[0].Verdict)
	assert.Equal(t, ReasonRiskFetchFailed, advice[0].Reason)
	assert.Nil(t, advice[0].CurrentPrice)
}

func TestAdvanceTrailingStopsRaisesAndCloses(t *testing.T) {
	t.Parallel()

	gw := sim.New()
	stopID, err := gw.PlaceOrder(context.Background(), broker.OrderRequest{
		SecurityID: "1", Side: broker.Sell, Quantity: 10,
		Type: broker.Stop, TriggerPrice: 95,
	})
	require.NoError(t, err)

	ledger := newMemLedger()
	// 6% gain: stop should move to breakeven.
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t1", Symbol: "GAIN", SecurityID: "1",
		EntryPrice: 100, StopPrice: 95, PositionSize: 1000,
		Status: journal.StatusActive, StopOrderID: stopID,
	}))
	// Breached: closes in the ledger.
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t2", Symbol: "DONE", SecurityID: "2",
		EntryPrice: 50, StopPrice: 48, PositionSize: 500,
		Status: journal.StatusActive,
	}))
	// Price lookup fails: reported, batch continues.
	require.NoError(t, ledger.AddTrade(journal.Trade{
		ID: "t3", Symbol: "DARK", SecurityID: "3",
		EntryPrice: 10, StopPrice: 9, PositionSize: 100,
		Status: journal.StatusActive,
	}))
	fetcher := &fakeFetcher{
		series: map[string]market.Series{
			"1": flatSeries(80, 106),
			"2": flatSeries(80, 47),
		},
		errs: map[string]error{"3": errors.New("no data")},
	}
	e := newTestEngine([]string{"A"}, fetcher, gw, ledger)

	reports, err := e.AdvanceTrailingStops(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, risk.StopRaise, reports[0].Update.Action)
	assert.InDelta(t, 100.0, reports[0].Update.NewStop, 1e-9)
	assert.InDelta(t, 100.0, ledger.trades[0].StopPrice, 1e-9)
	assert.InDelta(t, 100.0, gw.Orders()[0].Req.TriggerPrice, 1e-9)

	assert.Equal(t, risk.StopExit, reports[1].Update.Action)
	assert.Equal(t, journal.StatusClosed, ledger.trades[1].Status)

	require.Error(t, reports[2].Err)
	assert.Equal(t, journal.StatusActive, ledger.trades[2].Status)
}

func TestEstimateEquity(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	trades := []journal.Trade{
		// 10 units at 100, now 110: +100 unrealized.
		{ID: "t1", SecurityID: "1", EntryPrice: 100, PositionSize: 1000, Status: journal.StatusActive},
		// Unpriceable: valued at entry, counted as a failure.
		{ID: "t2", SecurityID: "2", EntryPrice: 50, PositionSize: 500, Status: journal.StatusActive},
	}
	fetcher := &fakeFetcher{
		series: map[string]market.Series{"1": flatSeries(5, 110)},
		errs:   map[string]error{"2": errors.New("no data")},
	}
	e := newTestEngine([]string{"A"}, fetcher, sim.New(), ledger)

	equity, failures := e.EstimateEquity(context.Background(), trades)
	assert.InDelta(t, 10100.0, equity, 1e-9)
	assert.Equal(t, 1, failures)
}
