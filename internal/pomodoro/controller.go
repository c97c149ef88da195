// Package pomodoro drives the focus/break phase cycle: it owns the countdown
// for the active phase and, on completion, feeds the session ledger, the
// archive and the achievement engine in that order, so achievement checks
// always see the just-added session.
package pomodoro

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/achieve"
	"github.com/eralp/pomotron/internal/archive"
	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/ledger"
	"github.com/eralp/pomotron/internal/storage"
	"github.com/eralp/pomotron/internal/timer"
)

// Phase is the active segment of the pomodoro cycle.
type Phase int

const (
	PhaseFocus Phase = iota
	PhaseShortBreak
	PhaseLongBreak
)

var phaseNames = []string{"focus", "short break", "long break"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

func (p Phase) sessionType() ledger.SessionType {
	switch p {
	case PhaseShortBreak:
		return ledger.TypeShortBreak
	case PhaseLongBreak:
		return ledger.TypeLongBreak
	default:
		return ledger.TypeFocus
	}
}

// Storage keys owned by the controller.
const (
	snapshotKey      = "timer_state"
	activeSessionKey = "active_session"
)

// EventKind tags controller events delivered to the UI sink.
type EventKind int

const (
	EventTick EventKind = iota
	EventPhaseChange
	EventSessionRecorded
	EventInterrupted
	EventSound
	EventRecovered
)

// Event is the controller-to-UI message. The controller never waits on the
// sink.
type Event struct {
	Kind      EventKind
	Phase     Phase
	Remaining int
	Running   bool
	Session   *ledger.Session
	Sound     string
}

// activeRun is the durable record of which phase the countdown was serving,
// persisted so crash recovery knows what the snapshot means.
type activeRun struct {
	Phase           Phase  `json:"phase"`
	DurationMinutes int    `json:"duration_minutes"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	CycleCount      int    `json:"cycle_count"`
}

// Controller owns one pomodoro cycle. All methods are safe for concurrent
// use from the UI loop and timer callbacks.
type Controller struct {
	mu sync.Mutex

	store  storage.Store
	clk    clock.Clock
	log    *zap.Logger
	ledger *ledger.Ledger
	arch   *archive.Archive
	engine *achieve.Engine

	settings   Settings
	phase      Phase
	cycleCount int // completed focus sessions since the last long break
	remaining  int
	running    bool
	run        *activeRun

	cd   *timer.Countdown
	sink func(Event)

	unsubscribe func()
}

// NewController wires the core together and attempts crash recovery. The
// archive may be nil (reports and export degrade, the cycle still works).
func NewController(store storage.Store, arch *archive.Archive, clk clock.Clock, log *zap.Logger) *Controller {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Controller{
		store:    store,
		clk:      clk,
		log:      log,
		arch:     arch,
		settings: LoadSettings(store),
		phase:    PhaseFocus,
	}
	c.ledger = ledger.New(store, clk, log)
	c.engine = achieve.NewEngine(store, clk, log)
	c.remaining = c.settings.FocusMinutes * 60

	if store != nil {
		c.unsubscribe = store.Subscribe(c.onStorageChange)
	}

	c.recover()
	return c
}

// SetSink installs the UI event receiver and forwards achievement
// notifications through it as sound-free events handled by the UI layer.
func (c *Controller) SetSink(fn func(Event)) {
	c.mu.Lock()
	c.sink = fn
	c.mu.Unlock()
}

// Engine exposes the achievement engine for the UI layer (claims, progress,
// notification queue).
func (c *Controller) Engine() *achieve.Engine { return c.engine }

// Ledger exposes the session ledger for the UI layer (aggregates, history).
func (c *Controller) Ledger() *ledger.Ledger { return c.ledger }

// Archive exposes the uncapped history, possibly nil.
func (c *Controller) Archive() *archive.Archive { return c.arch }

// Settings returns the current snapshot.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings persists and adopts a new snapshot. New durations apply to
// the next run; an in-flight countdown is left alone.
func (c *Controller) UpdateSettings(s Settings) {
	c.mu.Lock()
	c.settings = s
	if !c.running {
		c.remaining = c.phaseDurationLocked(c.phase) * 60
	}
	c.mu.Unlock()
	if !SaveSettings(c.store, s) {
		c.log.Warn("settings not persisted")
	}
}

// Start begins (or restarts) the current phase for its full duration.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	phase := c.phase
	minutes := c.phaseDurationLocked(phase)
	now := c.clk.Now()
	run := &activeRun{
		Phase:           phase,
		DurationMinutes: minutes,
		Date:            now.Format(ledger.DateLayout),
		StartTime:       now.Format(ledger.TimeLayout),
		CycleCount:      c.cycleCount,
	}
	c.run = run
	c.running = true
	c.remaining = minutes * 60
	c.rebuildCountdownLocked(minutes * 60)
	cd := c.cd
	c.mu.Unlock()

	if c.store != nil && !c.store.Set(activeSessionKey, run) {
		c.log.Warn("active run not persisted, recovery degraded")
	}
	cd.Start()
	c.emit(Event{Kind: EventPhaseChange, Phase: phase, Remaining: minutes * 60, Running: true})
}

// Pause freezes the active countdown.
func (c *Controller) Pause() {
	c.mu.Lock()
	cd := c.cd
	c.mu.Unlock()
	if cd != nil {
		cd.Pause()
	}
}

// Resume continues a paused countdown.
func (c *Controller) Resume() {
	c.mu.Lock()
	cd := c.cd
	c.mu.Unlock()
	if cd != nil {
		cd.Resume()
	}
}

// Stop abandons the active run without recording a session.
func (c *Controller) Stop() {
	c.mu.Lock()
	cd := c.cd
	c.running = false
	c.run = nil
	c.remaining = c.phaseDurationLocked(c.phase) * 60
	phase := c.phase
	remaining := c.remaining
	c.mu.Unlock()

	if cd != nil {
		cd.Stop()
	}
	c.clearRunState()
	c.emit(Event{Kind: EventPhaseChange, Phase: phase, Remaining: remaining, Running: false})
}

// Skip ends the current phase immediately, treating it as completed: a
// skipped focus run still records a session.
func (c *Controller) Skip() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cd := c.cd
	c.mu.Unlock()

	if cd != nil {
		cd.Stop()
	}
	c.completePhase()
}

// ReportVisibility forwards host visibility transitions to the active timer.
func (c *Controller) ReportVisibility(hidden bool) {
	c.mu.Lock()
	cd := c.cd
	c.mu.Unlock()
	if cd != nil {
		cd.ReportVisibility(hidden)
	}
}

// ReportFocus forwards window focus transitions to the active timer.
func (c *Controller) ReportFocus(focused bool) {
	c.mu.Lock()
	cd := c.cd
	c.mu.Unlock()
	if cd != nil {
		cd.ReportFocus(focused)
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Remaining returns seconds left in the current phase.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a countdown is active (running or paused).
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Paused reports whether the active countdown is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	cd := c.cd
	running := c.running
	c.mu.Unlock()
	return running && cd != nil && cd.Paused()
}

// CycleCount reports completed focus sessions since the last long break.
func (c *Controller) CycleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycleCount
}

// ResetData wipes sessions, achievements and the archive, preserving user
// settings.
func (c *Controller) ResetData() {
	c.Stop()
	c.ledger.Reset()
	c.engine.Reset()
	if c.arch != nil {
		if err := c.arch.Reset(); err != nil {
			c.log.Warn("archive reset failed", zap.Error(err))
		}
	}
	c.mu.Lock()
	c.cycleCount = 0
	c.phase = PhaseFocus
	c.remaining = c.settings.FocusMinutes * 60
	c.mu.Unlock()
}

// Close releases subscriptions and stops any active countdown without
// clearing the recovery snapshot, so the run can resume after restart.
func (c *Controller) Close() {
	c.mu.Lock()
	cd := c.cd
	unsub := c.unsubscribe
	c.mu.Unlock()
	if cd != nil {
		cd.Pause() // persists the paused snapshot Detach leaves in place
		cd.Detach()
	}
	if unsub != nil {
		unsub()
	}
}

func (c *Controller) rebuildCountdownLocked(durationSeconds int) {
	if c.cd != nil {
		c.cd.Destroy()
	}
	c.cd = timer.NewCountdown(timer.CountdownConfig{
		DurationSeconds: durationSeconds,
		OnTick:          c.onTick,
		OnComplete:      c.completePhase,
		OnInterruption:  c.onInterruption,
		Clock:           c.clk,
		Store:           c.store,
		Log:             c.log,
		SnapshotKey:     snapshotKey,
	})
}

func (c *Controller) onTick(remaining int) {
	c.mu.Lock()
	c.remaining = remaining
	phase := c.phase
	c.mu.Unlock()
	c.emit(Event{Kind: EventTick, Phase: phase, Remaining: remaining, Running: true})
}

func (c *Controller) onInterruption() {
	c.mu.Lock()
	phase := c.phase
	remaining := c.remaining
	c.mu.Unlock()
	c.emit(Event{Kind: EventInterrupted, Phase: phase, Remaining: remaining, Running: true})
}

// completePhase records the finished run (focus only), advances the cycle
// and arms the next phase. Ledger persistence happens before achievement
// evaluation.
func (c *Controller) completePhase() {
	c.mu.Lock()
	run := c.run
	cd := c.cd
	phase := c.phase
	c.running = false
	c.run = nil
	c.mu.Unlock()

	c.clearRunState()

	var recorded *ledger.Session
	if phase == PhaseFocus && run != nil {
		s := ledger.Session{
			Type:            ledger.TypeFocus,
			DurationMinutes: run.DurationMinutes,
			Date:            run.Date,
			StartTime:       run.StartTime,
			Completed:       true,
		}
		if cd != nil {
			s.Interrupted = cd.WasInterrupted()
			s.FocusEvents = cd.Events()
		}
		recorded = c.recordSession(s)
	}

	c.mu.Lock()
	var next Phase
	if phase == PhaseFocus {
		c.cycleCount++
		if c.settings.SessionsBeforeLongBreak > 0 && c.cycleCount%c.settings.SessionsBeforeLongBreak == 0 {
			next = PhaseLongBreak
		} else {
			next = PhaseShortBreak
		}
	} else {
		next = PhaseFocus
		if phase == PhaseLongBreak {
			c.cycleCount = 0
		}
	}
	c.phase = next
	c.remaining = c.phaseDurationLocked(next) * 60
	autoStart := (phase == PhaseFocus && c.settings.AutoStartBreaks) ||
		(phase != PhaseFocus && c.settings.AutoStartPomodoros)
	settings := c.settings
	remaining := c.remaining
	c.mu.Unlock()

	if settings.NotificationsEnabled {
		c.engine.Push(achieve.KindTimerComplete,
			"Timer Complete",
			fmt.Sprintf("%s session completed", phaseTitle(phase)),
			phaseIcon(phase))
	}
	if settings.SoundEnabled {
		c.emit(Event{Kind: EventSound, Phase: phase, Sound: "digital"})
	}
	if recorded != nil {
		c.emit(Event{Kind: EventSessionRecorded, Phase: phase, Session: recorded})
	}
	c.emit(Event{Kind: EventPhaseChange, Phase: next, Remaining: remaining, Running: autoStart})

	if autoStart {
		c.Start()
	}
}

// recordSession appends to the ledger, mirrors to the archive, then runs
// achievement evaluation against the fresh aggregates.
func (c *Controller) recordSession(s ledger.Session) *ledger.Session {
	stored, err := c.ledger.Add(s)
	if err != nil {
		c.log.Warn("session rejected by ledger", zap.Error(err))
		return nil
	}
	if c.arch != nil {
		if err := c.arch.Insert(stored); err != nil {
			c.log.Warn("session not archived", zap.String("id", stored.ID), zap.Error(err))
		}
	}
	c.engine.Evaluate(c.ledger.Aggregates())
	return &stored
}

// recover consults the persisted active run and timer snapshot. A run that
// finished while the process was gone is recorded as completed and
// interrupted; a run with time left resumes.
func (c *Controller) recover() {
	if c.store == nil {
		return
	}
	var run activeRun
	if !c.store.Get(activeSessionKey, &run) {
		return
	}
	if run.DurationMinutes <= 0 {
		c.clearRunState()
		return
	}

	c.mu.Lock()
	c.phase = run.Phase
	c.cycleCount = run.CycleCount
	c.run = &run
	c.rebuildCountdownLocked(run.DurationMinutes * 60)
	cd := c.cd
	c.mu.Unlock()

	switch cd.Recover() {
	case timer.RecoverResumed:
		c.mu.Lock()
		c.running = true
		c.remaining = cd.TimeLeft()
		c.mu.Unlock()
		c.log.Info("resumed interrupted run",
			zap.String("phase", run.Phase.String()),
			zap.Int("remaining_s", cd.TimeLeft()))
		c.emit(Event{Kind: EventRecovered, Phase: run.Phase, Remaining: cd.TimeLeft(), Running: true})

	case timer.RecoverCompletedAway:
		c.mu.Lock()
		c.running = false
		c.run = &run
		c.mu.Unlock()
		c.log.Info("run completed while away, recording it",
			zap.String("phase", run.Phase.String()))
		c.completePhase()

	default:
		c.mu.Lock()
		c.running = false
		c.run = nil
		c.remaining = c.phaseDurationLocked(c.phase) * 60
		c.mu.Unlock()
		c.clearRunState()
	}
}

func (c *Controller) clearRunState() {
	if c.store != nil {
		c.store.Remove(activeSessionKey)
	}
}

// onStorageChange reloads settings when another process writes them.
func (c *Controller) onStorageChange(ch storage.Change) {
	if !ch.External || ch.Key != SettingsKey || ch.Removed {
		return
	}
	s := LoadSettings(c.store)
	c.mu.Lock()
	c.settings = s
	if !c.running {
		c.remaining = c.phaseDurationLocked(c.phase) * 60
	}
	c.mu.Unlock()
	c.log.Info("settings reloaded after external change")
}

func (c *Controller) phaseDurationLocked(p Phase) int {
	switch p {
	case PhaseShortBreak:
		return c.settings.ShortBreakMinutes
	case PhaseLongBreak:
		return c.settings.LongBreakMinutes
	default:
		return c.settings.FocusMinutes
	}
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func phaseTitle(p Phase) string {
	switch p {
	case PhaseShortBreak, PhaseLongBreak:
		return "Break"
	default:
		return "Focus"
	}
}

func phaseIcon(p Phase) string {
	switch p {
	case PhaseShortBreak, PhaseLongBreak:
		return "☕"
	default:
		return "🎯"
	}
}
