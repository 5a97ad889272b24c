package cli

import "time"

// CtrlCState is where the PTY layer stands in the interrupt escalation
// sequence.
type CtrlCState int

const (
	// CtrlCIdle means no interrupt has been requested.
	CtrlCIdle CtrlCState = iota
	// CtrlCInterrupting means one Ctrl-C was forwarded to the subprocess.
	CtrlCInterrupting
	// CtrlCTerminating means a second press escalated to a kill signal.
	CtrlCTerminating
)

func (s CtrlCState) String() string {
	switch s {
	case CtrlCIdle:
		return "idle"
	case CtrlCInterrupting:
		return "interrupting"
	case CtrlCTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// CtrlCAction is what the PTY layer should do in response to one press.
type CtrlCAction int

const (
	// CtrlCForward forwards the interrupt to the subprocess.
	CtrlCForward CtrlCAction = iota
	// CtrlCEscalate sends a stronger kill signal.
	CtrlCEscalate
	// CtrlCDetach abandons the subprocess immediately.
	CtrlCDetach
)

// DefaultCtrlCWindow is how close together two presses must land to
// escalate.
const DefaultCtrlCWindow = 2 * time.Second

// CtrlCTracker is the escalation state machine: first press forwards the
// interrupt, a second within the window escalates to a kill, a third
// forces immediate detach. A press landing at or past the window after
// the previous one resets back to a plain interrupt.
type CtrlCTracker struct {
	state     CtrlCState
	window    time.Duration
	lastPress time.Time
}

// NewCtrlCTracker returns a tracker with the given escalation window;
// zero means DefaultCtrlCWindow.
func NewCtrlCTracker(window time.Duration) *CtrlCTracker {
	if window <= 0 {
		window = DefaultCtrlCWindow
	}
	return &CtrlCTracker{window: window}
}

// State returns the current escalation state.
func (t *CtrlCTracker) State() CtrlCState {
	return t.state
}

// Press records one Ctrl-C at now and returns the action to take.
func (t *CtrlCTracker) Press(now time.Time) CtrlCAction {
	defer func() { t.lastPress = now }()

	switch t.state {
	case CtrlCIdle:
		t.state = CtrlCInterrupting
		return CtrlCForward
	case CtrlCInterrupting:
		if now.Sub(t.lastPress) < t.window {
			t.state = CtrlCTerminating
			return CtrlCEscalate
		}
		// Stale press: stay at Interrupting and forward again.
		return CtrlCForward
	case CtrlCTerminating:
		return CtrlCDetach
	default:
		return CtrlCForward
	}
}
