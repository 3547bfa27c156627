package risk

// DefensiveConfig shrinks sizing and concurrency once drawdown crosses
// its own threshold. It composes with, and is independent of, the hard
// drawdown gate in EvaluateEntry: the gate vetoes entries outright at
// DrawdownLimit, while defensive mode keeps trading below it with
// reduced risk, reverting when equity recovers.
type DefensiveConfig struct {
	Drawdown      float64
	RiskPercent   float64
	MaxOpenTrades int
}

// Apply returns the policy to use for this cycle. Crossing the
// defensive threshold replaces the risk percent and max-trades limit;
// recovery restores the base policy on the next cycle since the
// decision is recomputed from current drawdown every time.
func (c DefensiveConfig) Apply(base Policy, drawdown float64) (Policy, bool) {
	if c.Drawdown <= 0 || drawdown < c.Drawdown {
		return base, false
	}
	out := base
	if c.RiskPercent > 0 {
		out.RiskPercent = c.RiskPercent
	}
	if c.MaxOpenTrades > 0 {
		out.MaxOpenTrades = c.MaxOpenTrades
	}
	return out, true
}
