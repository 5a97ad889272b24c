package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCtrlCFirstPressForwards(t *testing.T) {
	tr := NewCtrlCTracker(2 * time.Second)
	now := time.Now()

	assert.Equal(t, CtrlCForward, tr.Press(now))
	assert.Equal(t, CtrlCInterrupting, tr.State())
}

func TestCtrlCSecondPressWithinWindowEscalates(t *testing.T) {
	tr := NewCtrlCTracker(2 * time.Second)
	now := time.Now()

	tr.Press(now)
	assert.Equal(t, CtrlCEscalate, tr.Press(now.Add(500*time.Millisecond)))
	assert.Equal(t, CtrlCTerminating, tr.State())
}

func TestCtrlCThirdPressDetaches(t *testing.T) {
	tr := NewCtrlCTracker(2 * time.Second)
	now := time.Now()

	tr.Press(now)
	tr.Press(now.Add(time.Second))
	assert.Equal(t, CtrlCDetach, tr.Press(now.Add(1500*time.Millisecond)))
}

func TestCtrlCStalePressResetsToInterrupting(t *testing.T) {
	tr := NewCtrlCTracker(2 * time.Second)
	now := time.Now()

	tr.Press(now)
	// A press at or past the window does not escalate.
	assert.Equal(t, CtrlCForward, tr.Press(now.Add(2*time.Second)))
	assert.Equal(t, CtrlCInterrupting, tr.State())

	// But a quick follow-up after the reset does.
	assert.Equal(t, CtrlCEscalate, tr.Press(now.Add(2*time.Second+100*time.Millisecond)))
}

func TestCtrlCZeroWindowUsesDefault(t *testing.T) {
	tr := NewCtrlCTracker(0)
	now := time.Now()

	tr.Press(now)
	assert.Equal(t, CtrlCEscalate, tr.Press(now.Add(DefaultCtrlCWindow-time.Millisecond)))
}
