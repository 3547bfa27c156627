package risk

// Trailing-stop ladder rungs, as fractions of unrealized gain. The
// ladder only ever tightens: a new stop is applied when strictly higher
// than the current one.
const (
	BreakevenGain = 0.05 // move stop to entry
	TightenGain   = 0.10 // stop to 95% of current price
	LockInGain    = 0.15 // stop to 93% of current price

	tightenStopFraction = 0.95
	lockInStopFraction  = 0.93
)

// StopAction describes what the monitor decided for one open trade in
// one evaluation cycle.
type StopAction int

const (
	StopHold StopAction = iota // no change
	StopRaise
	StopExit // latest price at or below the stop
)

func (a StopAction) String() string {
	switch a {
	case StopRaise:
		return "raise"
	case StopExit:
		return "exit"
	default:
		return "hold"
	}
}

// StopUpdate is the result of advancing the trailing-stop state machine
// for one trade.
type StopUpdate struct {
	Action  StopAction
	NewStop float64 // meaningful only for StopRaise
	GainPct float64
}

// AdvanceStop runs one cycle of the per-trade stop state machine.
// The exit check takes precedence over trailing updates: a bar that
// both breaches the stop and clears a ladder rung exits.
// The returned stop never decreases.
func AdvanceStop(entryPrice, currentStop, latestPrice float64) StopUpdate {
	gain := 0.0
	if entryPrice > 0 {
		gain = (latestPrice - entryPrice) / entryPrice
	}
	upd := StopUpdate{Action: StopHold, GainPct: gain}

	if currentStop > 0 && latestPrice <= currentStop {
		upd.Action = StopExit
		return upd
	}

	target := currentStop
	switch {
	case gain >= LockInGain:
		target = latestPrice * lockInStopFraction
	case gain >= TightenGain:
		target = latestPrice * tightenStopFraction
	case gain >= BreakevenGain:
		target = entryPrice
	}

	if target > currentStop {
		upd.Action = StopRaise
		upd.NewStop = target
	}
	return upd
}
