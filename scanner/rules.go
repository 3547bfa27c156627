package scanner

import (
	"github.com/safealpha/engine/config"
	"github.com/safealpha/engine/market"
)

// snapshot holds the latest-bar view of every input the rule set needs.
// All values are defined (non-NaN) by the time rules run; NaN screening
// happens before in the scan loop.
type snapshot struct {
	price     float64
	volume    float64
	emaShort  float64
	emaMid    float64
	emaLong   float64
	atr       float64
	volAvg    float64
	priorHigh float64
	swingLow  float64
	engulfing bool
}

// flags records which setup rules passed.
type flags struct {
	Trend    bool
	Breakout bool
	ATR      bool
	Volume   bool
	Pattern  bool
}

// Fixed per-rule points. Confidence is monotone in the number of
// satisfied flags by construction.
const (
	trendPoints    = 25
	breakoutPoints = 20
	atrPoints      = 15
	volumePoints   = 10
	patternPoints  = 10
)

// evaluate runs the rule set against the latest bar. When relaxed is
// set, the breakout and volume rules use loosened tolerances: a small
// margin below the prior high and a lower volume multiple. The other
// rules never loosen.
func evaluate(cfg config.ScannerConfig, s snapshot, relaxed bool) flags {
	breakoutRef := s.priorHigh
	volMult := cfg.VolumeMultiple
	if relaxed {
		breakoutRef = s.priorHigh * (1 - cfg.BreakoutMargin)
		volMult = cfg.VolumeMultipleRelaxed
	}

	return flags{
		Trend:    s.price > s.emaShort && s.emaShort > s.emaMid && s.emaMid > s.emaLong,
		Breakout: s.price > breakoutRef,
		ATR:      s.price > 0 && s.atr/s.price < cfg.ATRCap,
		Volume:   s.volAvg > 0 && s.volume > volMult*s.volAvg,
		Pattern:  s.engulfing,
	}
}

// score totals the rule points plus the market-regime bonus, which is
// applied uniformly to every symbol in the same scan.
func (f flags) score(regimeBonus int) int {
	score := regimeBonus
	if f.Trend {
		score += trendPoints
	}
	if f.Breakout {
		score += breakoutPoints
	}
	if f.ATR {
		score += atrPoints
	}
	if f.Volume {
		score += volumePoints
	}
	if f.Pattern {
		score += patternPoints
	}
	return score
}

// bullishEngulfing reports whether the last two bars form a bullish
// engulfing pattern: previous bar bearish, current bar bullish, and the
// current body engulfing the previous body.
func bullishEngulfing(candles market.Series) bool {
	if len(candles) < 2 {
		return false
	}
	prev, curr := candles.Prev(1), candles.Last()
	return curr.Close > curr.Open &&
		prev.Close < prev.Open &&
		curr.Close > prev.Open &&
		curr.Open < prev.Close
}
