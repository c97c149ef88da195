// Package timer implements a drift-corrected countdown primitive that
// survives host throttling, detects interruptions, and recovers approximate
// state after a crash.
//
// The scheduling rule: callbacks are delivered once per whole interval of
// real elapsed time, and the next tick is always scheduled relative to the
// corrected expected instant rather than now+interval, so latency in one
// tick never accumulates into the next.
package timer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/storage"
)

// DefaultInterval is the tick granularity when none is configured.
const DefaultInterval = time.Second

// Config wires a Timer's collaborators. Store may be nil, in which case the
// timer runs without crash recovery.
type Config struct {
	Interval    time.Duration
	Callback    func()
	Clock       clock.Clock
	Store       storage.Store
	Log         *zap.Logger
	SnapshotKey string
}

// Timer delivers Callback once per elapsed Interval while running. All
// methods are safe for concurrent use; callback invocations are strictly
// serialized.
type Timer struct {
	mu sync.Mutex

	interval time.Duration
	callback func()
	clk      clock.Clock
	store    storage.Store
	log      *zap.Logger
	key      string

	state       State
	startedAt   time.Time // wall clock, persisted
	elapsed     time.Duration
	pauseStart  time.Time
	pauseTotal  time.Duration
	expected    time.Time // when the next tick is due
	interrupted bool
	hidden      bool
	hiddenAt    time.Time
	blurred     bool
	blurredAt   time.Time
	events      []FocusEvent

	// gen is the cancellation token: every Start/Stop/Reset bumps it, and a
	// scheduled fire that wakes with a stale gen is a no-op.
	gen     uint64
	pending *time.Timer

	// schedule is swappable so tests can drive ticks without sleeping.
	schedule func(d time.Duration, fn func()) *time.Timer
}

// New builds a Timer. It does not start it, and it does not consult any
// saved snapshot; call Recover for that.
func New(cfg Config) *Timer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Callback == nil {
		cfg.Callback = func() {}
	}
	return &Timer{
		interval: cfg.Interval,
		callback: cfg.Callback,
		clk:      cfg.Clock,
		store:    cfg.Store,
		log:      cfg.Log,
		key:      cfg.SnapshotKey,
		state:    StateIdle,
		schedule: time.AfterFunc,
	}
}

// Start transitions idle|stopped -> running. With fresh=true (the normal
// case) elapsed time, pause accounting, the interruption latch and the event
// log are reset; fresh=false continues from restored state after Recover.
func (t *Timer) Start(fresh bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateRunning || t.state == StatePaused {
		return
	}

	now := t.clk.Now()
	if fresh {
		t.elapsed = 0
		t.pauseTotal = 0
		t.interrupted = false
		t.events = nil
		t.startedAt = now
	}
	t.state = StateRunning
	t.expected = now.Add(t.interval)
	t.gen++
	t.scheduleLocked(t.interval)
	t.persistLocked(now)
}

// fire is the scheduled tick entry point. It computes how many whole
// intervals have really elapsed and delivers the callback exactly that many
// times, then reschedules against the corrected expected instant.
func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateRunning {
		t.mu.Unlock()
		return
	}

	now := t.clk.Now()
	due := 0
	if !now.Before(t.expected) {
		due = 1 + int(now.Sub(t.expected)/t.interval)
	}

	for i := 0; i < due; i++ {
		t.elapsed += t.interval
		t.expected = t.expected.Add(t.interval)
		cb := t.callback
		t.mu.Unlock()
		cb()
		t.mu.Lock()
		// Pause or Stop from inside (or racing with) the callback wins: the
		// remaining buffered ticks are abandoned.
		if gen != t.gen || t.state != StateRunning {
			t.mu.Unlock()
			return
		}
	}

	t.persistLocked(now)
	delay := t.expected.Sub(t.clk.Now())
	if delay < 0 {
		delay = 0
	}
	t.scheduleLocked(delay)
	t.mu.Unlock()
}

// Pause freezes scheduling. Valid only while running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return
	}
	t.state = StatePaused
	t.pauseStart = t.clk.Now()
	t.cancelPendingLocked()
	t.persistLocked(t.pauseStart)
}

// Resume accumulates the paused span and rebases the expected-time anchor to
// now so paused wall-clock time is never charged as timer time.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePaused {
		return
	}
	now := t.clk.Now()
	t.pauseTotal += now.Sub(t.pauseStart)
	t.state = StateRunning
	t.expected = now.Add(t.interval)
	t.gen++
	t.scheduleLocked(t.interval)
	t.persistLocked(now)
}

// Stop cancels all scheduled work and clears the recovery snapshot. No
// callback fires after Stop returns.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.state == StateIdle || t.state == StateStopped {
		return
	}
	t.state = StateStopped
	t.gen++
	t.cancelPendingLocked()
	if t.store != nil && t.key != "" {
		t.store.Remove(t.key)
	}
}

// Reset is Stop plus clearing elapsed time, the interruption latch and the
// event log, returning to idle.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.state = StateIdle
	t.elapsed = 0
	t.pauseTotal = 0
	t.interrupted = false
	t.events = nil
}

// Destroy tears the timer down. Equivalent to Stop; kept as a distinct name
// for hosts that manage component lifecycles.
func (t *Timer) Destroy() {
	t.Stop()
}

// Detach cancels all scheduled work without touching the persisted snapshot.
// Unlike Stop, whatever state the last persist wrote stays on disk, so a run
// suspended by a clean process exit can be picked up by Recover. No callback
// fires after Detach returns.
func (t *Timer) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateStopped
	t.gen++
	t.cancelPendingLocked()
}

// ReportVisibility feeds host visibility transitions. hidden=true while
// running and unpaused latches the interruption flag; hidden=false rebases
// the scheduling anchor so the gap is not replayed as a burst of ticks (the
// whole-interval rule in fire alone governs cadence).
func (t *Timer) ReportVisibility(hidden bool) {
	t.reportTransition(kindVisibility, hidden)
}

// ReportFocus feeds window focus/blur transitions with the same semantics as
// visibility changes.
func (t *Timer) ReportFocus(focused bool) {
	t.reportTransition(kindWindow, !focused)
}

func (t *Timer) reportTransition(kind string, away bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	wasAway, awayAt := t.hidden, t.hiddenAt
	if kind == kindWindow {
		wasAway, awayAt = t.blurred, t.blurredAt
	}

	if away {
		if wasAway {
			return
		}
		if kind == kindVisibility {
			t.hidden, t.hiddenAt = true, now
		} else {
			t.blurred, t.blurredAt = true, now
		}
		if t.state == StateRunning {
			t.interrupted = true
		}
		t.appendEventLocked(FocusEvent{
			Kind:       kind,
			Action:     awayAction(kind),
			At:         now,
			WasRunning: t.state == StateRunning,
			WasPaused:  t.state == StatePaused,
			ElapsedMs:  t.elapsed.Milliseconds(),
		})
		t.persistLocked(now)
		return
	}

	if !wasAway {
		return
	}
	if kind == kindVisibility {
		t.hidden = false
	} else {
		t.blurred = false
	}
	t.appendEventLocked(FocusEvent{
		Kind:       kind,
		Action:     backAction(kind),
		At:         now,
		Duration:   now.Sub(awayAt),
		WasRunning: t.state == StateRunning,
		WasPaused:  t.state == StatePaused,
		ElapsedMs:  t.elapsed.Milliseconds(),
	})
	if t.state == StateRunning {
		t.expected = now.Add(t.interval)
		t.gen++
		t.cancelPendingLocked()
		t.scheduleLocked(t.interval)
	}
	t.persistLocked(now)
}

func awayAction(kind string) string {
	if kind == kindVisibility {
		return actionHidden
	}
	return actionBlur
}

func backAction(kind string) string {
	if kind == kindVisibility {
		return actionVisible
	}
	return actionFocus
}

// WasInterrupted reports whether any interruption has been recorded since
// the last fresh Start or Reset.
func (t *Timer) WasInterrupted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interrupted
}

// State returns the current run state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Elapsed returns accumulated tick time, excluding paused spans.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Events returns a copy of the focus event log.
func (t *Timer) Events() []FocusEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FocusEvent, len(t.events))
	copy(out, t.events)
	return out
}

func (t *Timer) appendEventLocked(ev FocusEvent) {
	t.events = append(t.events, ev)
	if len(t.events) > maxFocusEvents {
		t.events = t.events[len(t.events)-maxFocusEvents:]
	}
}

func (t *Timer) scheduleLocked(d time.Duration) {
	gen := t.gen
	t.pending = t.schedule(d, func() { t.fire(gen) })
}

func (t *Timer) cancelPendingLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
