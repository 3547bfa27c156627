// Package scanner screens the stock universe for breakout/trend setups
// and emits ranked trade candidates plus a complete diagnostic trace.
package scanner

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/safealpha/engine/config"
	"github.com/safealpha/engine/history"
	"github.com/safealpha/engine/indicators"
	"github.com/safealpha/engine/market"
)

// Strength tags whether a candidate passed the full rule thresholds or
// only the loosened ones.
type Strength string

const (
	Strict  Strength = "strict"
	Relaxed Strength = "relaxed"
)

// Candidate is one qualifying setup. Invariant: 0 < StopPrice < Price;
// candidates violating it are rejected, never emitted.
type Candidate struct {
	Symbol     string
	SecurityID string
	Price      float64
	StopPrice  float64
	Confidence int
	Strength   Strength
}

// Status classifies a diagnostic row.
type Status string

const (
	StatusSelected Status = "selected"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// Diagnostic explains the outcome for one universe symbol. The scan
// emits exactly one per symbol regardless of outcome; it is the audit
// trail that makes false negatives debuggable, and is never consulted
// for control flow.
type Diagnostic struct {
	Symbol     string
	Status     Status
	Reason     string
	SecurityID string
	Extra      map[string]any
}

// Resolver maps a symbol to its candidate security IDs in priority
// order.
type Resolver interface {
	Resolve(symbol string) []string
}

// Result is one scan invocation's output. Candidates are sorted by
// descending confidence; ties keep universe order.
type Result struct {
	Candidates  []Candidate
	Diagnostics []Diagnostic

	// Regime reports the broad-index trend check. RegimeChecked is
	// false when the index could not be resolved or fetched; the scan
	// proceeds without the bonus.
	RegimeChecked bool
	RegimeBullish bool
}

// Scanner runs the setup screen over a fixed universe.
type Scanner struct {
	cfg     config.ScannerConfig
	start   string
	resolve Resolver
	fetch   history.Fetcher
	log     zerolog.Logger
	now     func() time.Time
}

// New builds a Scanner. historyStart is the ISO from-date for every
// fetch.
func New(cfg config.ScannerConfig, historyStart string, resolver Resolver, fetcher history.Fetcher, log zerolog.Logger) *Scanner {
	return &Scanner{
		cfg:     cfg,
		start:   historyStart,
		resolve: resolver,
		fetch:   fetcher,
		log:     log,
		now:     time.Now,
	}
}

// Scan evaluates every universe symbol. Per-symbol failures are
// recorded in the diagnostics and never abort the batch.
func (s *Scanner) Scan(ctx context.Context) Result {
	res := Result{}
	toDate := s.now().Format("2006-01-02")

	regimeBonus := 0
	res.RegimeChecked, res.RegimeBullish = s.checkRegime(ctx, toDate)
	if res.RegimeBullish {
		regimeBonus = s.cfg.RegimeBonus
	}

	for _, symbol := range s.cfg.Universe {
		diag := s.scanSymbol(ctx, symbol, toDate, regimeBonus, &res)
		res.Diagnostics = append(res.Diagnostics, diag)
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Confidence > res.Candidates[j].Confidence
	})

	s.log.Info().
		Int("universe", len(s.cfg.Universe)).
		Int("candidates", len(res.Candidates)).
		Bool("regime_bullish", res.RegimeBullish).
		Msg("scan complete")
	return res
}

// scanSymbol returns the symbol's diagnostic row and, on success,
// appends a candidate to res.
func (s *Scanner) scanSymbol(ctx context.Context, symbol, toDate string, regimeBonus int, res *Result) Diagnostic {
	ids := s.resolve.Resolve(symbol)
	if len(ids) == 0 {
		return Diagnostic{Symbol: symbol, Status: StatusSkipped, Reason: "missing_security_id"}
	}

	series, securityID, diag := s.fetchBestSeries(ctx, symbol, ids, toDate)
	if series == nil {
		return diag
	}

	snap, ok := s.latestSnapshot(series)
	if !ok {
		return Diagnostic{Symbol: symbol, Status: StatusSkipped, Reason: "indicator_nan", SecurityID: securityID}
	}

	strength := Strict
	f := evaluate(s.cfg, snap, false)
	score := f.score(regimeBonus)
	if score >= s.cfg.ScoreThreshold && score < s.cfg.StrictScore {
		strength = Relaxed
	}
	if score < s.cfg.ScoreThreshold {
		// Retry breakout and volume with relaxed tolerances before
		// giving up; data quality makes strict one-tick misses common.
		relaxedFlags := evaluate(s.cfg, snap, true)
		relaxedScore := relaxedFlags.score(regimeBonus)
		if relaxedScore >= s.cfg.ScoreThreshold {
			f, score, strength = relaxedFlags, relaxedScore, Relaxed
		} else {
			return Diagnostic{
				Symbol: symbol, Status: StatusSkipped, Reason: "setup_conditions_not_met",
				SecurityID: securityID,
				Extra: map[string]any{
					"score":       score,
					"trend_ok":    f.Trend,
					"breakout_ok": f.Breakout,
					"atr_ok":      f.ATR,
					"volume_ok":   f.Volume,
					"pattern_ok":  f.Pattern,
				},
			}
		}
	}

	stopPrice := math.Min(snap.swingLow, snap.price-snap.atr*s.cfg.StopATRMultiple)
	if stopPrice <= 0 || stopPrice >= snap.price {
		return Diagnostic{
			Symbol: symbol, Status: StatusSkipped, Reason: "invalid_stop",
			SecurityID: securityID,
			Extra:      map[string]any{"stop_price": stopPrice, "close": snap.price},
		}
	}

	res.Candidates = append(res.Candidates, Candidate{
		Symbol:     symbol,
		SecurityID: securityID,
		Price:      round2(snap.price),
		StopPrice:  round2(stopPrice),
		Confidence: score,
		Strength:   strength,
	})
	return Diagnostic{
		Symbol: symbol, Status: StatusSelected, Reason: "candidate_found",
		SecurityID: securityID,
		Extra:      map[string]any{"confidence": score, "signal_strength": string(strength)},
	}
}

// fetchBestSeries tries each candidate ID in priority order and keeps
// the first with enough history. When none qualifies it reports the
// longest partial series seen, or the last fetch error if nothing came
// back at all. A nil series means the returned diagnostic is final.
func (s *Scanner) fetchBestSeries(ctx context.Context, symbol string, ids []string, toDate string) (market.Series, string, Diagnostic) {
	var (
		bestShort   market.Series
		bestShortID string
		lastErr     error
	)

	for _, id := range ids {
		series, err := s.fetch.Fetch(ctx, id, s.start, toDate)
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Str("symbol", symbol).Str("security_id", id).Msg("history fetch failed")
			continue
		}
		if series.Len() >= s.cfg.MinCandles {
			return series, id, Diagnostic{}
		}
		if series.Len() > bestShort.Len() {
			bestShort, bestShortID = series, id
		}
	}

	if bestShort.Len() > 0 {
		return nil, "", Diagnostic{
			Symbol: symbol, Status: StatusSkipped, Reason: "insufficient_candles",
			SecurityID: bestShortID,
			Extra: map[string]any{
				"candles":       bestShort.Len(),
				"candidate_ids": strings.Join(ids, ","),
			},
		}
	}

	msg := "no_data_returned"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return nil, "", Diagnostic{
		Symbol: symbol, Status: StatusError, Reason: "historical_data_failed",
		SecurityID: strings.Join(ids, ","),
		Extra:      map[string]any{"message": msg},
	}
}

// latestSnapshot computes every indicator and reads the latest bar.
// Returns ok=false when any required value is undefined.
func (s *Scanner) latestSnapshot(series market.Series) (snapshot, bool) {
	closes := series.Closes()
	i := len(closes) - 1

	emaShort := indicators.EMA(closes, s.cfg.EMAShort)
	emaMid := indicators.EMA(closes, s.cfg.EMAMid)
	emaLong := indicators.EMA(closes, s.cfg.EMALong)
	atr := indicators.ATR(series, s.cfg.ATRPeriod)
	volAvg := indicators.RollingMean(series.Volumes(), s.cfg.VolumeWindow)
	priorHigh := indicators.PriorRollingMax(series.Highs(), s.cfg.BreakoutWindow)
	swingLow := indicators.RollingMin(series.Lows(), s.cfg.SwingLowWindow)

	for _, col := range [][]float64{emaShort, emaMid, emaLong, atr, volAvg, priorHigh, swingLow} {
		if !indicators.Defined(col, i) {
			return snapshot{}, false
		}
	}

	last := series.Last()
	return snapshot{
		price:     last.Close,
		volume:    last.Volume,
		emaShort:  emaShort[i],
		emaMid:    emaMid[i],
		emaLong:   emaLong[i],
		atr:       atr[i],
		volAvg:    volAvg[i],
		priorHigh: priorHigh[i],
		swingLow:  swingLow[i],
		engulfing: bullishEngulfing(series),
	}, true
}

// checkRegime resolves the broad index and tests whether it closed
// above its long EMA. Failures are logged, never fatal: the scan just
// runs without the regime bonus.
func (s *Scanner) checkRegime(ctx context.Context, toDate string) (checked, bullish bool) {
	var indexID string
	for _, name := range s.cfg.IndexSymbols {
		if ids := s.resolve.Resolve(name); len(ids) > 0 {
			indexID = ids[0]
			break
		}
	}
	if indexID == "" {
		s.log.Warn().Strs("tried", s.cfg.IndexSymbols).Msg("regime index symbol not found")
		return false, false
	}

	series, err := s.fetch.Fetch(ctx, indexID, s.start, toDate)
	if err != nil {
		s.log.Warn().Err(err).Msg("regime fetch failed")
		return false, false
	}
	if series.Len() < s.cfg.RegimeEMASpan {
		s.log.Warn().Int("candles", series.Len()).Msg("regime index history too short")
		return false, false
	}

	closes := series.Closes()
	ema := indicators.EMA(closes, s.cfg.RegimeEMASpan)
	return true, closes[len(closes)-1] > ema[len(ema)-1]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ReasonCounts aggregates diagnostics by reason, used by the CLI
// summary line.
func ReasonCounts(diags []Diagnostic) map[string]int {
	out := make(map[string]int)
	for _, d := range diags {
		out[d.Reason]++
	}
	return out
}
