// Package history fetches and normalizes daily OHLCV candles from the
// broker's historical data API. The API has shipped two incompatible
// payload shapes and two endpoint generations; this package absorbs
// both so the scanner only ever sees market.Series.
package history

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/safealpha/engine/market"
)

// timestampKeys are the field-name variants seen across API versions
// for the shape-B timestamp array, in priority order.
var timestampKeys = []string{"timestamp", "start_Time", "startTime"}

// Normalize converts a decoded historical-data payload into a candle
// series. Two shapes are understood:
//
//	A: {"candles": [[ts, open, high, low, close, volume], ...]}
//	B: {"timestamp": [...], "open": [...], "high": [...], ...}
//
// either at the top level or nested under "data". Values that fail
// numeric coercion become NaN; rows whose high, low, or close is NaN
// are dropped entirely, while open and volume tolerate gaps. An
// unrecognizable payload yields (nil, false).
func Normalize(raw map[string]any) (market.Series, bool) {
	if raw == nil {
		return nil, false
	}
	payload := raw
	if inner, ok := raw["data"].(map[string]any); ok {
		payload = inner
	}

	if candles, ok := payload["candles"].([]any); ok {
		return fromTuples(candles), true
	}
	if series, ok := fromColumns(payload); ok {
		return series, true
	}
	return nil, false
}

func fromTuples(rows []any) market.Series {
	out := make(market.Series, 0, len(rows))
	for _, row := range rows {
		tuple, ok := row.([]any)
		if !ok || len(tuple) < 6 {
			continue
		}
		c := market.Candle{
			Time:   coerceTime(tuple[0]),
			Open:   coerce(tuple[1]),
			High:   coerce(tuple[2]),
			Low:    coerce(tuple[3]),
			Close:  coerce(tuple[4]),
			Volume: coerce(tuple[5]),
		}
		if rowComplete(c) {
			out = append(out, c)
		}
	}
	return out
}

func fromColumns(payload map[string]any) (market.Series, bool) {
	var ts []any
	for _, key := range timestampKeys {
		if v, ok := payload[key].([]any); ok {
			ts = v
			break
		}
	}
	opens, _ := payload["open"].([]any)
	highs, _ := payload["high"].([]any)
	lows, _ := payload["low"].([]any)
	closes, _ := payload["close"].([]any)
	volumes, _ := payload["volume"].([]any)

	if highs == nil && lows == nil && closes == nil {
		return nil, false
	}

	n := minLen(ts, opens, highs, lows, closes, volumes)
	out := make(market.Series, 0, n)
	for i := 0; i < n; i++ {
		c := market.Candle{
			Time:   coerceTime(ts[i]),
			Open:   coerce(opens[i]),
			High:   coerce(highs[i]),
			Low:    coerce(lows[i]),
			Close:  coerce(closes[i]),
			Volume: coerce(volumes[i]),
		}
		if rowComplete(c) {
			out = append(out, c)
		}
	}
	return out, true
}

// rowComplete requires high, low, and close; open and volume may be
// missing without invalidating the bar.
func rowComplete(c market.Candle) bool {
	return !math.IsNaN(c.High) && !math.IsNaN(c.Low) && !math.IsNaN(c.Close)
}

// coerce converts any JSON scalar to float64, NaN on failure.
func coerce(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceTime(v any) time.Time {
	if s, ok := v.(string); ok {
		// Some API versions send ISO dates instead of epochs.
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	epoch := coerce(v)
	if math.IsNaN(epoch) {
		return time.Time{}
	}
	return time.Unix(int64(epoch), 0).UTC()
}

// minLen mirrors the upstream contract: every parallel array bounds the
// row count, and a missing array means zero usable rows.
func minLen(cols ...[]any) int {
	n := len(cols[0])
	for _, col := range cols[1:] {
		if len(col) < n {
			n = len(col)
		}
	}
	return n
}
