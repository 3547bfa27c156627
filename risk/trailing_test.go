package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceStopBreakeven(t *testing.T) {
	t.Parallel()

	// entry 100, stop 95, price 106 -> 6% gain -> breakeven at 100.
	upd := AdvanceStop(100, 95, 106)

	assert.Equal(t, StopRaise, upd.Action)
	assert.InDelta(t, 100.0, upd.NewStop, 1e-9)
	assert.InDelta(t, 0.06, upd.GainPct, 1e-9)
}

func TestAdvanceStopLadder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   float64
		stop    float64
		price   float64
		action  StopAction
		newStop float64
	}{
		{"below first rung holds", 100, 95, 103, StopHold, 0},
		{"ten pct tightens to 95pct of price", 100, 95, 110, StopRaise, 104.5},
		{"fifteen pct locks in 93pct of price", 100, 95, 116, StopRaise, 107.88},
		{"breakeven not reapplied once above entry", 100, 104.5, 106, StopHold, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			upd := AdvanceStop(tt.entry, tt.stop, tt.price)
			assert.Equal(t, tt.action, upd.Action)
			if tt.action == StopRaise {
				assert.InDelta(t, tt.newStop, upd.NewStop, 1e-9)
			}
		})
	}
}

func TestAdvanceStopNeverDecreases(t *testing.T) {
	t.Parallel()

	entry := 100.0
	stop := 95.0
	prices := []float64{106, 118, 112, 108, 120, 101}

	for _, price := range prices {
		upd := AdvanceStop(entry, stop, price)
		if upd.Action == StopExit {
			break
		}
		if upd.Action == StopRaise {
			assert.Greater(t, upd.NewStop, stop, "price %v", price)
			stop = upd.NewStop
		}
	}
}

func TestAdvanceStopExitPrecedence(t *testing.T) {
	t.Parallel()

	// Price at the stop exits even though the gain ladder would fire
	// for a trade whose stop had ratcheted above a rung trigger.
	upd := AdvanceStop(100, 110, 110)
	assert.Equal(t, StopExit, upd.Action)

	upd = AdvanceStop(100, 95, 94)
	assert.Equal(t, StopExit, upd.Action)
}

func TestAdvanceStopZeroEntry(t *testing.T) {
	t.Parallel()

	upd := AdvanceStop(0, 0, 50)
	assert.Equal(t, StopHold, upd.Action)
	assert.InDelta(t, 0.0, upd.GainPct, 1e-12)
}
