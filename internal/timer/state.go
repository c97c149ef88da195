package timer

import "time"

// State is the run state of a precision timer. A single tag replaces the
// flag pairs (isRunning/isPaused) that allow contradictory combinations.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

var stateNames = []string{"idle", "running", "paused", "stopped"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// maxFocusEvents bounds the per-run focus event log.
const maxFocusEvents = 100

// FocusEvent records one host visibility or window-focus transition while a
// timer existed. Events are immutable once appended and kept only for
// analytics and debugging.
type FocusEvent struct {
	Kind       string        `json:"kind"`   // "visibility" or "window"
	Action     string        `json:"action"` // "hidden", "visible", "focus", "blur"
	At         time.Time     `json:"at"`
	Duration   time.Duration `json:"duration,omitempty"` // hidden/blurred span, on the returning event
	WasRunning bool          `json:"was_running"`
	WasPaused  bool          `json:"was_paused"`
	ElapsedMs  int64         `json:"elapsed_ms"`
}

const (
	kindVisibility = "visibility"
	kindWindow     = "window"

	actionHidden  = "hidden"
	actionVisible = "visible"
	actionFocus   = "focus"
	actionBlur    = "blur"
)
