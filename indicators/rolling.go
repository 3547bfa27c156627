package indicators

import "math"

// RollingMean computes the trailing mean over window bars, NaN until a
// full window is available. NaN inputs poison every window they fall in.
func RollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - window + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// RollingMax computes the trailing maximum over window bars, NaN until a
// full window is available.
func RollingMax(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		mx := math.Inf(-1)
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				mx = math.NaN()
				break
			}
			if values[j] > mx {
				mx = values[j]
			}
		}
		out[i] = mx
	}
	return out
}

// RollingMin computes the trailing minimum over window bars, NaN until a
// full window is available.
func RollingMin(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		mn := math.Inf(1)
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				mn = math.NaN()
				break
			}
			if values[j] < mn {
				mn = values[j]
			}
		}
		out[i] = mn
	}
	return out
}

// Shift moves every value n positions later, filling the head with NaN.
// Used to exclude the bar under evaluation from breakout reference
// levels, avoiding lookahead against itself.
func Shift(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		out[i] = values[i-n]
	}
	return out
}

// PriorRollingMax is the trailing max over window bars ending at the
// previous bar: Shift(values, 1) fed through RollingMax.
func PriorRollingMax(values []float64, window int) []float64 {
	return RollingMax(Shift(values, 1), window)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
