// Package risk implements position sizing, portfolio-level entry gates,
// and the trailing-stop state machine.
package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidStop is returned when the stop geometry makes sizing
// impossible (stop at or above entry).
var ErrInvalidStop = errors.New("stop distance must be positive")

// Size is the outcome of position sizing.
type Size struct {
	// PositionValue is the capital allocated (quantity * price once
	// floored, Value/stopPct before flooring).
	PositionValue float64
	Quantity      int

	// RiskExceedsBudget is set when the minimum-quantity fallback was
	// applied: the realized per-unit risk is larger than the nominal
	// risk budget and the caller should surface that.
	RiskExceedsBudget bool
}

// SizerOptions controls the zero-quantity fallback.
type SizerOptions struct {
	// MinQuantityFallback permits a one-unit position when the computed
	// quantity floors to zero and one unit is affordable.
	MinQuantityFallback bool
	// AvailableCapital bounds the fallback: a single unit must cost no
	// more than this.
	AvailableCapital float64
}

// ComputeSize converts a risk budget and stop distance into a position.
//
//	stopPct = (price - stop) / price
//	value   = riskCapital / stopPct
//	qty     = floor(value / price)
//
// stopPct <= 0 rejects with ErrInvalidStop rather than dividing. A zero
// quantity rejects unless the fallback applies.
func ComputeSize(price, stopPrice, riskCapital float64, opts SizerOptions) (Size, error) {
	if price <= 0 {
		return Size{}, fmt.Errorf("price must be positive, got %v", price)
	}
	stopPct := (price - stopPrice) / price
	if stopPct <= 0 {
		return Size{}, fmt.Errorf("%w: price %.2f stop %.2f", ErrInvalidStop, price, stopPrice)
	}

	value := riskCapital / stopPct
	qty := int(math.Floor(value / price))

	if qty > 0 {
		return Size{PositionValue: value, Quantity: qty}, nil
	}

	if opts.MinQuantityFallback && price <= opts.AvailableCapital {
		// Stop too wide for the budget; take the smallest possible
		// position and flag the overshoot.
		return Size{PositionValue: price, Quantity: 1, RiskExceedsBudget: true}, nil
	}
	return Size{}, fmt.Errorf("risk budget %.2f sizes to zero quantity at price %.2f", riskCapital, price)
}
