package timer

import (
	"time"

	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/storage"
)

// Snapshot is the durable form of a timer's state, written on every tick and
// state transition so an abrupt process death loses at most one interval.
// Only wall-clock timestamps appear here; monotonic readings do not survive
// a restart.
type Snapshot struct {
	Running     bool         `json:"running"`
	Paused      bool         `json:"paused"`
	IntervalMs  int64        `json:"interval_ms"`
	StartedAt   time.Time    `json:"started_at"`
	SavedAt     time.Time    `json:"saved_at"`
	ElapsedMs   int64        `json:"elapsed_ms"`
	PauseMs     int64        `json:"pause_ms"`
	Interrupted bool         `json:"interrupted"`
	Events      []FocusEvent `json:"focus_events,omitempty"`
}

// persistLocked writes the recovery snapshot. Failures degrade to running
// without crash recovery; they are logged once per write, never raised.
func (t *Timer) persistLocked(now time.Time) {
	if t.store == nil || t.key == "" {
		return
	}
	snap := Snapshot{
		Running:     t.state == StateRunning,
		Paused:      t.state == StatePaused,
		IntervalMs:  t.interval.Milliseconds(),
		StartedAt:   t.startedAt,
		SavedAt:     now,
		ElapsedMs:   t.elapsed.Milliseconds(),
		PauseMs:     t.pauseTotal.Milliseconds(),
		Interrupted: t.interrupted,
		Events:      t.events,
	}
	if !t.store.Set(t.key, snap) {
		t.log.Warn("timer snapshot not persisted, crash recovery degraded",
			zap.String("key", t.key))
	}
}

// Recover loads a previously persisted snapshot. A structurally invalid
// snapshot, or one whose interval no longer matches configuration, is
// discarded and (false) is returned; this is never fatal.
//
// When the saved state was running and unpaused, the time between SavedAt
// and now is added to the elapsed total: the process was away for that whole
// span. Recovery always sets the interruption flag, since a restart by
// definition means the run was not observed continuously. The caller decides
// whether the remaining time warrants resuming or treating the run as
// completed while away.
func Recover(store storage.Store, key string, interval time.Duration, clk clock.Clock, log *zap.Logger) (Snapshot, bool) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if store == nil || key == "" {
		return Snapshot{}, false
	}

	var snap Snapshot
	if !store.Get(key, &snap) {
		return Snapshot{}, false
	}

	if snap.IntervalMs != interval.Milliseconds() || snap.SavedAt.IsZero() || snap.ElapsedMs < 0 {
		log.Warn("discarding stale timer snapshot",
			zap.String("key", key),
			zap.Int64("snapshot_interval_ms", snap.IntervalMs),
			zap.Int64("configured_interval_ms", interval.Milliseconds()))
		store.Remove(key)
		return Snapshot{}, false
	}

	if snap.Running && !snap.Paused {
		away := clk.Now().Sub(snap.SavedAt)
		if away > 0 {
			snap.ElapsedMs += away.Milliseconds()
		}
	}
	snap.Interrupted = true
	return snap, true
}

// Restore loads snapshot state into the timer and resumes it without
// resetting counters. The timer must be idle or stopped.
func (t *Timer) Restore(snap Snapshot) {
	t.mu.Lock()
	if t.state == StateRunning || t.state == StatePaused {
		t.mu.Unlock()
		return
	}
	t.elapsed = time.Duration(snap.ElapsedMs) * time.Millisecond
	t.pauseTotal = time.Duration(snap.PauseMs) * time.Millisecond
	t.interrupted = snap.Interrupted
	t.startedAt = snap.StartedAt
	t.events = snap.Events
	t.mu.Unlock()
	t.Start(false)
}
