package risk

import "fmt"

// SystemMode is the operator-level switch. It is passed into gate
// evaluation explicitly so the decision stays a pure function of its
// inputs.
type SystemMode string

const (
	ModeActive        SystemMode = "ACTIVE"
	ModeEntryPaused   SystemMode = "ENTRY_PAUSED"
	ModeEmergencyExit SystemMode = "EMERGENCY_EXIT"
)

// Gate block reasons, surfaced verbatim to the caller.
const (
	ReasonKillSwitch     = "kill_switch"
	ReasonEntryPaused    = "entry_paused"
	ReasonEmergencyExit  = "emergency_exit"
	ReasonDrawdownBreach = "drawdown_breach"
	ReasonBearishRegime  = "bearish_regime"
	ReasonMaxOpenTrades  = "max_open_trades"
	ReasonWeeklyCap      = "weekly_trade_cap"
)

// Policy holds the portfolio-level limits in force for one evaluation
// cycle. Thresholds are configuration, not algorithm; see
// config.RiskConfig for the deployed defaults.
type Policy struct {
	RiskPercent     float64
	MaxOpenTrades   int
	MaxWeeklyTrades int
	DrawdownLimit   float64

	// RegimeFilter blocks entries when the broad index trades below its
	// long EMA. Only enforced when the regime was actually checked.
	RegimeFilter bool
}

// GateInput is everything a new-entry decision depends on.
type GateInput struct {
	Mode        SystemMode
	KillSwitch  bool
	Drawdown    float64
	ActiveCount int
	WeeklyCount int

	RegimeChecked bool
	RegimeBullish bool
}

// Decision is the gate outcome. Blocked entries carry every violated
// gate, first reason first, so the caller can report why.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Reason returns the primary blocking reason, empty when allowed.
func (d Decision) Reason() string {
	if len(d.Reasons) == 0 {
		return ""
	}
	return d.Reasons[0]
}

func (d *Decision) block(reason string) {
	d.Allowed = false
	d.Reasons = append(d.Reasons, reason)
}

// EvaluateEntry decides whether a new entry may be opened. Any single
// gate blocking is sufficient to veto; the function is pure and safe to
// call speculatively.
func EvaluateEntry(p Policy, in GateInput) Decision {
	d := Decision{Allowed: true}

	if in.KillSwitch {
		d.block(ReasonKillSwitch)
	}
	switch in.Mode {
	case ModeEntryPaused:
		d.block(ReasonEntryPaused)
	case ModeEmergencyExit:
		d.block(ReasonEmergencyExit)
	}
	if in.Drawdown >= p.DrawdownLimit {
		d.block(ReasonDrawdownBreach)
	}
	if p.RegimeFilter && in.RegimeChecked && !in.RegimeBullish {
		d.block(ReasonBearishRegime)
	}
	if in.ActiveCount >= p.MaxOpenTrades {
		d.block(ReasonMaxOpenTrades)
	}
	if in.WeeklyCount >= p.MaxWeeklyTrades {
		d.block(ReasonWeeklyCap)
	}
	return d
}

// Drawdown computes the fractional decline from peak equity. A
// non-positive peak reads as zero drawdown.
func Drawdown(peakEquity, currentEquity float64) float64 {
	if peakEquity <= 0 {
		return 0
	}
	dd := (peakEquity - currentEquity) / peakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// Describe renders a decision for logs and CLI output.
func (d Decision) Describe() string {
	if d.Allowed {
		return "entries allowed"
	}
	return fmt.Sprintf("entries blocked: %v", d.Reasons)
}
