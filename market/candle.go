// Package market defines the normalized price types shared by the
// scanner, indicators, and risk components.
package market

import "time"

// Candle represents one OHLCV (Open, High, Low, Close, Volume) bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered, chronological sequence of candles. No gap-free
// spacing is assumed; indicators only rely on the ordering.
type Series []Candle

// Closes returns the close column of the series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high column of the series.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

// Lows returns the low column of the series.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}

// Volumes returns the volume column of the series.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Volume
	}
	return out
}

// Last returns the most recent candle. It panics on an empty series;
// callers must check Len first.
func (s Series) Last() Candle {
	return s[len(s)-1]
}

// Prev returns the candle n bars before the latest one.
func (s Series) Prev(n int) Candle {
	return s[len(s)-1-n]
}

func (s Series) Len() int {
	return len(s)
}
