// Package engine orchestrates the scan-to-execution pipeline and the
// open-position monitoring cycles. Every operation is a synchronous
// batch triggered by the caller; per-symbol failures are contained
// inside their loop iteration.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/safealpha/engine/broker"
	"github.com/safealpha/engine/config"
	"github.com/safealpha/engine/history"
	"github.com/safealpha/engine/journal"
	"github.com/safealpha/engine/metrics"
	"github.com/safealpha/engine/risk"
	"github.com/safealpha/engine/scanner"
)

// Engine wires the components behind the public operations.
type Engine struct {
	cfg      *config.Config
	resolver scanner.Resolver
	fetcher  history.Fetcher
	gateway  broker.Gateway
	ledger   journal.Ledger
	log      zerolog.Logger

	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// New builds an Engine from its collaborators.
func New(cfg *config.Config, resolver scanner.Resolver, fetcher history.Fetcher,
	gateway broker.Gateway, ledger journal.Ledger, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
		gateway:  gateway,
		ledger:   ledger,
		log:      log,
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// RunScan runs one universe scan and records its metrics.
func (e *Engine) RunScan(ctx context.Context) scanner.Result {
	s := scanner.New(e.cfg.Scanner, e.cfg.History.StartDate, e.resolver, e.fetcher, e.log)
	res := s.Scan(ctx)

	metrics.ScansTotal.Inc()
	for _, c := range res.Candidates {
		metrics.CandidatesTotal.WithLabelValues(string(c.Strength)).Inc()
	}
	for _, d := range res.Diagnostics {
		if d.Status != scanner.StatusSelected {
			metrics.SymbolsSkippedTotal.WithLabelValues(d.Reason).Inc()
		}
	}
	return res
}

// SkippedEntry explains why a scanned candidate was not executed.
type SkippedEntry struct {
	Symbol string
	Reason string
}

// ExecutionReport is the outcome of one ExecuteScan cycle.
type ExecutionReport struct {
	Scan      scanner.Result
	Entered   []journal.Trade
	Skipped   []SkippedEntry
	Defensive bool
	Drawdown  float64
}

// ExecuteScan runs the full pipeline: scan, gate, size, place orders,
// persist. Gates are re-evaluated before every entry since each fill
// consumes concurrency and weekly budget. mode is passed in explicitly;
// the engine holds no ambient mode state.
func (e *Engine) ExecuteScan(ctx context.Context, mode risk.SystemMode) (ExecutionReport, error) {
	rep := ExecutionReport{Scan: e.RunScan(ctx)}

	active, err := e.ledger.ActiveTrades()
	if err != nil {
		return rep, fmt.Errorf("load active trades: %w", err)
	}
	killSwitch, err := e.ledger.KillSwitch()
	if err != nil {
		return rep, fmt.Errorf("load kill switch: %w", err)
	}

	equity, _ := e.EstimateEquity(ctx, active)
	if err := e.ledger.UpdatePeakEquity(equity); err != nil {
		return rep, fmt.Errorf("update peak equity: %w", err)
	}
	peak, err := e.ledger.PeakEquity()
	if err != nil {
		return rep, fmt.Errorf("load peak equity: %w", err)
	}
	if err := e.ledger.RecordEquity(e.now().Format("2006-01-02"), equity); err != nil {
		e.log.Warn().Err(err).Msg("equity history write failed")
	}

	drawdown := risk.Drawdown(peak, equity)
	metrics.Drawdown.Set(drawdown)
	rep.Drawdown = drawdown

	policy, defensive := e.policyFor(drawdown)
	rep.Defensive = defensive
	if defensive {
		e.log.Warn().Float64("drawdown", drawdown).Msg("defensive mode active: risk and concurrency reduced")
	}

	week := journal.ISOWeekKey(e.now())
	weekly, err := e.ledger.WeeklyCount(week)
	if err != nil {
		return rep, fmt.Errorf("load weekly count: %w", err)
	}
	activeCount := len(active)

	for _, cand := range rep.Scan.Candidates {
		decision := risk.EvaluateEntry(policy, risk.GateInput{
			Mode:          mode,
			KillSwitch:    killSwitch,
			Drawdown:      drawdown,
			ActiveCount:   activeCount,
			WeeklyCount:   weekly,
			RegimeChecked: rep.Scan.RegimeChecked,
			RegimeBullish: rep.Scan.RegimeBullish,
		})
		if !decision.Allowed {
			metrics.EntriesBlockedTotal.WithLabelValues(decision.Reason()).Inc()
			e.log.Info().Str("symbol", cand.Symbol).Strs("reasons", decision.Reasons).Msg("entry blocked")
			rep.Skipped = append(rep.Skipped, SkippedEntry{Symbol: cand.Symbol, Reason: decision.Reason()})
			continue
		}

		trade, err := e.enter(ctx, cand, equity, policy.RiskPercent)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", cand.Symbol).Msg("entry failed")
			rep.Skipped = append(rep.Skipped, SkippedEntry{Symbol: cand.Symbol, Reason: err.Error()})
			continue
		}

		rep.Entered = append(rep.Entered, trade)
		activeCount++
		weekly++
		if err := e.ledger.IncrementWeeklyCount(week); err != nil {
			return rep, fmt.Errorf("increment weekly count: %w", err)
		}
	}

	return rep, nil
}

// enter sizes one candidate and places its buy and stop orders. A stop
// failure after a successful buy is a reportable inconsistency: the
// trade is persisted without a stop order id and the error is logged,
// never auto-reconciled.
func (e *Engine) enter(ctx context.Context, cand scanner.Candidate, equity, riskPercent float64) (journal.Trade, error) {
	size, err := risk.ComputeSize(cand.Price, cand.StopPrice, equity*riskPercent, risk.SizerOptions{
		MinQuantityFallback: e.cfg.Risk.MinQuantityFallback,
		AvailableCapital:    equity,
	})
	if err != nil {
		return journal.Trade{}, fmt.Errorf("size position: %w", err)
	}
	if size.RiskExceedsBudget {
		e.log.Warn().Str("symbol", cand.Symbol).
			Msg("minimum-quantity fallback applied: per-unit risk exceeds budget")
	}

	buyID, err := e.gateway.PlaceOrder(ctx, broker.OrderRequest{
		SecurityID:  cand.SecurityID,
		Side:        broker.Buy,
		Quantity:    size.Quantity,
		Type:        broker.Market,
		ProductType: e.cfg.Broker.ProductType,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("BUY", "failed").Inc()
		return journal.Trade{}, fmt.Errorf("buy order: %w", err)
	}
	metrics.OrdersTotal.WithLabelValues("BUY", "placed").Inc()

	stopID, err := broker.PlaceStopLoss(ctx, e.gateway, cand.SecurityID,
		e.cfg.Broker.ProductType, size.Quantity, cand.StopPrice, e.cfg.Broker.TickSize)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("SELL", "failed").Inc()
		e.log.Error().Err(err).Str("symbol", cand.Symbol).Str("buy_order_id", buyID).
			Msg("stop order failed after successful buy: position is unprotected")
	} else {
		metrics.OrdersTotal.WithLabelValues("SELL", "placed").Inc()
	}

	trade := journal.Trade{
		ID:           ulid.MustNew(ulid.Timestamp(e.now()), e.entropy).String(),
		Symbol:       cand.Symbol,
		SecurityID:   cand.SecurityID,
		EntryPrice:   cand.Price,
		StopPrice:    cand.StopPrice,
		PositionSize: float64(size.Quantity) * cand.Price,
		Confidence:   float64(cand.Confidence),
		Status:       journal.StatusActive,
		EntryDate:    e.now().Format("2006-01-02"),
		BuyOrderID:   buyID,
		StopOrderID:  stopID,
	}
	if err := e.ledger.AddTrade(trade); err != nil {
		return journal.Trade{}, fmt.Errorf("persist trade: %w", err)
	}

	e.log.Info().
		Str("symbol", trade.Symbol).
		Float64("entry", trade.EntryPrice).
		Float64("stop", trade.StopPrice).
		Int("quantity", size.Quantity).
		Str("strength", string(cand.Strength)).
		Msg("trade entered")
	return trade, nil
}

// policyFor builds the effective policy for a cycle, applying the
// defensive shrink when drawdown warrants.
func (e *Engine) policyFor(drawdown float64) (risk.Policy, bool) {
	base := risk.Policy{
		RiskPercent:     e.cfg.Risk.RiskPercent,
		MaxOpenTrades:   e.cfg.Risk.MaxOpenTrades,
		MaxWeeklyTrades: e.cfg.Risk.MaxWeeklyTrades,
		DrawdownLimit:   e.cfg.Risk.DrawdownLimit,
		RegimeFilter:    true,
	}
	defensive := risk.DefensiveConfig{
		Drawdown:      e.cfg.Risk.DefensiveDrawdown,
		RiskPercent:   e.cfg.Risk.DefensiveRiskPercent,
		MaxOpenTrades: e.cfg.Risk.DefensiveMaxOpenTrades,
	}
	return defensive.Apply(base, drawdown)
}
