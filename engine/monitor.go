package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/safealpha/engine/broker"
	"github.com/safealpha/engine/indicators"
	"github.com/safealpha/engine/journal"
	"github.com/safealpha/engine/metrics"
	"github.com/safealpha/engine/risk"
)

// Advisory verdicts and their reasons, in the order the advisory
// checks them. The first matching reason wins.
const (
	AdviceSell = "SELL"
	AdviceHold = "HOLD"

	ReasonStopBreached     = "stop_loss_breached"
	ReasonCloseBelowEMAMid = "close_below_ema50"
	ReasonWeakWithNegPnL   = "close_below_ema20_with_negative_pnl"
	ReasonTrendIntact      = "trend_intact"
	ReasonInsufficientRisk = "insufficient_candles_for_risk_scan"
	ReasonRiskFetchFailed  = "data_fetch_error"
)

// Advice is the advisory verdict for one open position. CurrentPrice
// and PnLPct are nil when the position's history could not be fetched.
type Advice struct {
	Symbol       string
	SecurityID   string
	EntryPrice   float64
	StopPrice    float64
	CurrentPrice *float64
	PnLPct       *float64
	Verdict      string
	Reason       string
}

// EvaluateRisk reviews every open position and recommends SELL or
// HOLD. It never places orders. SELL rows sort before HOLD rows, and
// within a verdict worse unrealized P&L sorts first, so the most
// urgent position is always on top.
func (e *Engine) EvaluateRisk(ctx context.Context) ([]Advice, error) {
	active, err := e.ledger.ActiveTrades()
	if err != nil {
		return nil, fmt.Errorf("load active trades: %w", err)
	}

	out := make([]Advice, 0, len(active))
	for _, t := range active {
		out = append(out, e.adviseOne(ctx, t))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Verdict != out[j].Verdict {
			return out[i].Verdict == AdviceSell
		}
		pi, pj := advisoryPnL(out[i]), advisoryPnL(out[j])
		return pi < pj
	})
	return out, nil
}

// advisoryPnL orders positions with unknown P&L ahead of known ones
// within the same verdict, since an unreviewable position is worse
// than a quantified loss.
func advisoryPnL(a Advice) float64 {
	if a.PnLPct == nil {
		return -1e18
	}
	return *a.PnLPct
}

func (e *Engine) adviseOne(ctx context.Context, t journal.Trade) Advice {
	adv := Advice{
		Symbol:     t.Symbol,
		SecurityID: t.SecurityID,
		EntryPrice: t.EntryPrice,
		StopPrice:  t.StopPrice,
	}

	series, err := e.fetcher.Fetch(ctx, t.SecurityID, e.cfg.History.StartDate, e.now().Format("2006-01-02"))
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", t.Symbol).Msg("risk scan fetch failed")
		adv.Verdict, adv.Reason = AdviceSell, ReasonRiskFetchFailed
		return adv
	}
	if series.Len() < e.cfg.History.MinRiskScanCandles {
		adv.Verdict, adv.Reason = AdviceSell, ReasonInsufficientRisk
		return adv
	}

	closes := series.Closes()
	i := len(closes) - 1
	price := closes[i]
	pnl := 0.0
	if t.EntryPrice > 0 {
		pnl = (price - t.EntryPrice) / t.EntryPrice
	}
	adv.CurrentPrice, adv.PnLPct = &price, &pnl

	emaShort := indicators.EMA(closes, e.cfg.Scanner.EMAShort)
	emaMid := indicators.EMA(closes, e.cfg.Scanner.EMAMid)

	switch {
	case t.StopPrice > 0 && price <= t.StopPrice:
		adv.Verdict, adv.Reason = AdviceSell, ReasonStopBreached
	case indicators.Defined(emaMid, i) && price < emaMid[i]:
		adv.Verdict, adv.Reason = AdviceSell, ReasonCloseBelowEMAMid
	case indicators.Defined(emaShort, i) && price < emaShort[i] && pnl < 0:
		adv.Verdict, adv.Reason = AdviceSell, ReasonWeakWithNegPnL
	default:
		adv.Verdict, adv.Reason = AdviceHold, ReasonTrendIntact
	}
	return adv
}

// StopReport is the outcome of one trailing-stop pass for one trade.
type StopReport struct {
	Symbol  string
	TradeID string
	Update  risk.StopUpdate
	Err     error
}

// AdvanceTrailingStops runs the stop ladder over every open position.
// Raised stops are persisted and pushed to the broker; breached stops
// close the trade in the ledger. Per-trade failures are reported in
// the row and never abort the batch.
func (e *Engine) AdvanceTrailingStops(ctx context.Context) ([]StopReport, error) {
	active, err := e.ledger.ActiveTrades()
	if err != nil {
		return nil, fmt.Errorf("load active trades: %w", err)
	}

	reports := make([]StopReport, 0, len(active))
	for _, t := range active {
		rep := StopReport{Symbol: t.Symbol, TradeID: t.ID}

		price, err := e.latestPrice(ctx, t.SecurityID)
		if err != nil {
			metrics.PriceLookupFailures.Inc()
			rep.Err = fmt.Errorf("latest price: %w", err)
			reports = append(reports, rep)
			continue
		}

		upd := risk.AdvanceStop(t.EntryPrice, t.StopPrice, price)
		rep.Update = upd
		switch upd.Action {
		case risk.StopExit:
			if err := e.ledger.CloseTrade(t.ID); err != nil {
				rep.Err = fmt.Errorf("close trade: %w", err)
				break
			}
			e.log.Info().Str("symbol", t.Symbol).Float64("price", price).
				Float64("stop", t.StopPrice).Msg("stop breached, trade closed")
		case risk.StopRaise:
			if err := e.ledger.RaiseStop(t.ID, upd.NewStop); err != nil {
				rep.Err = fmt.Errorf("raise stop: %w", err)
				break
			}
			if t.StopOrderID != "" {
				if err := e.modifyStop(ctx, t, upd.NewStop); err != nil {
					e.log.Warn().Err(err).Str("symbol", t.Symbol).
						Msg("broker stop modify failed, ledger stop still raised")
					rep.Err = err
					break
				}
			}
			e.log.Info().Str("symbol", t.Symbol).
				Float64("old_stop", t.StopPrice).Float64("new_stop", upd.NewStop).
				Float64("gain_pct", upd.GainPct*100).Msg("trailing stop raised")
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (e *Engine) modifyStop(ctx context.Context, t journal.Trade, trigger float64) error {
	qty := 0
	if t.EntryPrice > 0 {
		qty = int(t.PositionSize / t.EntryPrice)
	}
	return e.gateway.ModifyOrder(ctx, t.StopOrderID, broker.OrderRequest{
		SecurityID:   t.SecurityID,
		Side:         broker.Sell,
		Quantity:     qty,
		Type:         broker.Stop,
		ProductType:  e.cfg.Broker.ProductType,
		TriggerPrice: trigger,
	})
}

// EstimateEquity values the account as base capital plus the
// unrealized P&L of every open position. Positions whose latest price
// cannot be fetched contribute zero P&L and are counted as lookup
// failures rather than failing the estimate.
func (e *Engine) EstimateEquity(ctx context.Context, active []journal.Trade) (equity float64, lookupFailures int) {
	equity = e.cfg.Account.BaseCapital
	for _, t := range active {
		price, err := e.latestPrice(ctx, t.SecurityID)
		if err != nil {
			metrics.PriceLookupFailures.Inc()
			lookupFailures++
			e.log.Warn().Err(err).Str("symbol", t.Symbol).Msg("price lookup failed, position valued at entry")
			continue
		}
		if t.EntryPrice > 0 {
			qty := t.PositionSize / t.EntryPrice
			equity += (price - t.EntryPrice) * qty
		}
	}
	return equity, lookupFailures
}

func (e *Engine) latestPrice(ctx context.Context, securityID string) (float64, error) {
	series, err := e.fetcher.Fetch(ctx, securityID, e.cfg.History.StartDate, e.now().Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	if series.Len() == 0 {
		return 0, fmt.Errorf("empty history for %s", securityID)
	}
	return series.Last().Close, nil
}
