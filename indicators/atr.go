package indicators

import (
	"math"

	"github.com/safealpha/engine/market"
)

// TrueRange computes the per-bar true range series:
// max(high-low, |high-prevClose|, |low-prevClose|). The first bar has no
// previous close and falls back to high-low.
func TrueRange(candles market.Series) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		hl := c.High - c.Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prevClose := candles[i-1].Close
		hc := math.Abs(c.High - prevClose)
		lc := math.Abs(c.Low - prevClose)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR is the rolling mean of the true range over period bars. Entries
// before a full window are NaN.
func ATR(candles market.Series, period int) []float64 {
	return RollingMean(TrueRange(candles), period)
}
