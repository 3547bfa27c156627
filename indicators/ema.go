// Package indicators provides technical analysis indicators computed
// over a candle series.
//
// Every function returns an output slice aligned with its input: entry i
// describes the series up to and including bar i. Positions where the
// lookback window exceeds the available history hold NaN; callers must
// treat NaN as "undefined" and skip, never as zero.
package indicators

import "math"

// EMA computes the exponential moving average with the given span using
// the standard recurrence alpha = 2/(span+1). The first value seeds at
// the first observation, so the output has no leading NaN gap; early
// values are simply less smoothed.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if span <= 0 || len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	alpha := 2.0 / float64(span+1)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}
