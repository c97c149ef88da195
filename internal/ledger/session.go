// Package ledger maintains the append-only session history and derives all
// statistics from it. Aggregates are always a pure function of the visible
// session list: recomputing from the same list and the same "today" must
// reproduce them exactly.
package ledger

import (
	"errors"
	"time"

	"github.com/eralp/pomotron/internal/timer"
)

// SessionType distinguishes focus intervals from breaks.
type SessionType string

const (
	TypeFocus      SessionType = "focus"
	TypeShortBreak SessionType = "shortBreak"
	TypeLongBreak  SessionType = "longBreak"
)

// DateLayout is the calendar-date form used throughout the ledger.
const DateLayout = "2006-01-02"

// TimeLayout is the local start-time form (used for the morning-session rule).
const TimeLayout = "15:04"

// Session is one focus or break interval. The ledger is the only writer;
// records are immutable after append except for a later interruption
// annotation by ID.
type Session struct {
	ID              string             `json:"id"`
	Type            SessionType        `json:"type"`
	DurationMinutes int                `json:"duration_minutes"`
	Date            string             `json:"date"`
	StartTime       string             `json:"start_time,omitempty"`
	Completed       bool               `json:"completed"`
	Interrupted     bool               `json:"interrupted"`
	FocusEvents     []timer.FocusEvent `json:"focus_events,omitempty"`
}

var errInvalidSession = errors.New("invalid session record")

// Validate rejects records missing the fields every computation relies on.
// Invalid records are skipped at load time rather than aborting the ledger.
func (s Session) Validate() error {
	if s.Date == "" || s.DurationMinutes <= 0 {
		return errInvalidSession
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return errInvalidSession
	}
	switch s.Type {
	case TypeFocus, TypeShortBreak, TypeLongBreak:
	default:
		return errInvalidSession
	}
	return nil
}

// startHour returns the local start hour, defaulting to 08 when no start
// time was recorded (mirroring how morning sessions were classified before
// start times were tracked).
func (s Session) startHour() int {
	if s.StartTime == "" {
		return 8
	}
	t, err := time.Parse(TimeLayout, s.StartTime)
	if err != nil {
		return 8
	}
	return t.Hour()
}
