package pomodoro

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/eralp/pomotron/internal/archive"
	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/ledger"
	"github.com/eralp/pomotron/internal/storage"
	"github.com/eralp/pomotron/internal/timer"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventRecorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func newTestController(t *testing.T, store storage.Store) (*Controller, *eventRecorder) {
	t.Helper()
	c := NewController(store, nil, clock.NewFake(testStart), nil)
	t.Cleanup(c.Close)
	rec := &eventRecorder{}
	c.SetSink(rec.sink)
	return c, rec
}

// ==== lifecycle ====

func TestControllerDefaults(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	if c.Phase() != PhaseFocus {
		t.Fatalf("phase %v", c.Phase())
	}
	if c.Remaining() != 25*60 {
		t.Fatalf("remaining %d", c.Remaining())
	}
	if c.Running() || c.Paused() {
		t.Fatal("fresh controller already running")
	}
	if c.CycleCount() != 0 {
		t.Fatalf("cycle count %d", c.CycleCount())
	}
}

func TestControllerStart(t *testing.T) {
	store := storage.NewMem()
	c, rec := newTestController(t, store)
	c.Start()

	if !c.Running() {
		t.Fatal("not running after start")
	}
	ev, ok := rec.last(EventPhaseChange)
	if !ok || ev.Phase != PhaseFocus || ev.Remaining != 25*60 || !ev.Running {
		t.Fatalf("phase event %+v", ev)
	}

	var run activeRun
	if !store.Get(activeSessionKey, &run) {
		t.Fatal("active run not persisted")
	}
	if run.Phase != PhaseFocus || run.DurationMinutes != 25 {
		t.Fatalf("persisted run %+v", run)
	}
	if run.Date != "2024-03-01" || run.StartTime != "09:00" {
		t.Fatalf("run timestamps %q %q", run.Date, run.StartTime)
	}
}

func TestControllerStartWhileRunning(t *testing.T) {
	c, rec := newTestController(t, storage.NewMem())
	c.Start()
	before := len(rec.kinds())
	c.Start()
	if len(rec.kinds()) != before {
		t.Fatal("second start emitted events")
	}
}

func TestControllerPauseResume(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	c.Start()
	c.Pause()
	if !c.Paused() {
		t.Fatal("not paused")
	}
	if !c.Running() {
		t.Fatal("paused run should still count as active")
	}
	c.Resume()
	if c.Paused() {
		t.Fatal("still paused after resume")
	}
}

func TestControllerStopAbandonsRun(t *testing.T) {
	store := storage.NewMem()
	c, rec := newTestController(t, store)
	c.Start()
	c.Stop()

	if c.Running() {
		t.Fatal("still running")
	}
	if c.Remaining() != 25*60 {
		t.Fatalf("remaining %d after stop", c.Remaining())
	}
	if got := c.Ledger().Sessions(); len(got) != 0 {
		t.Fatalf("abandoned run recorded %d sessions", len(got))
	}
	var run activeRun
	if store.Get(activeSessionKey, &run) {
		t.Fatal("active run survived stop")
	}
	ev, _ := rec.last(EventPhaseChange)
	if ev.Running {
		t.Fatalf("stop event %+v", ev)
	}
}

// ==== phase cycle ====

func TestControllerSkipRecordsFocusSession(t *testing.T) {
	c, rec := newTestController(t, storage.NewMem())
	c.Start()
	c.Skip()

	sessions := c.Ledger().Sessions()
	if len(sessions) != 1 {
		t.Fatalf("recorded %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.Type != ledger.TypeFocus || !s.Completed || s.DurationMinutes != 25 {
		t.Fatalf("session %+v", s)
	}
	if s.Date != "2024-03-01" || s.StartTime != "09:00" {
		t.Fatalf("session timestamps %q %q", s.Date, s.StartTime)
	}

	if c.Phase() != PhaseShortBreak {
		t.Fatalf("phase %v after first focus", c.Phase())
	}
	if c.CycleCount() != 1 {
		t.Fatalf("cycle count %d", c.CycleCount())
	}
	if c.Remaining() != 5*60 {
		t.Fatalf("remaining %d", c.Remaining())
	}
	if c.Running() {
		t.Fatal("break auto-started without the setting")
	}

	if _, ok := rec.last(EventSessionRecorded); !ok {
		t.Fatal("no session-recorded event")
	}
	if _, ok := rec.last(EventSound); !ok {
		t.Fatal("no sound event with sound enabled")
	}
}

func TestControllerSkipWhenIdle(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	c.Skip()
	if len(c.Ledger().Sessions()) != 0 {
		t.Fatal("idle skip recorded a session")
	}
	if c.Phase() != PhaseFocus {
		t.Fatalf("idle skip advanced phase to %v", c.Phase())
	}
}

func TestControllerBreaksAreNotRecorded(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	c.Start()
	c.Skip() // focus done, now short break
	c.Start()
	c.Skip() // break done

	if got := c.Ledger().Sessions(); len(got) != 1 {
		t.Fatalf("recorded %d sessions, want 1 (breaks are not ledger entries)", len(got))
	}
	if c.Phase() != PhaseFocus {
		t.Fatalf("phase %v after break", c.Phase())
	}
}

func TestControllerLongBreakCadence(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	s := c.Settings()
	s.SessionsBeforeLongBreak = 2
	c.UpdateSettings(s)

	finishPhase := func() {
		c.Start()
		c.Skip()
	}

	finishPhase() // focus #1
	if c.Phase() != PhaseShortBreak {
		t.Fatalf("after focus 1: %v", c.Phase())
	}
	finishPhase() // short break
	finishPhase() // focus #2
	if c.Phase() != PhaseLongBreak {
		t.Fatalf("after focus 2: %v", c.Phase())
	}
	if c.Remaining() != 15*60 {
		t.Fatalf("long break remaining %d", c.Remaining())
	}
	finishPhase() // long break
	if c.Phase() != PhaseFocus {
		t.Fatalf("after long break: %v", c.Phase())
	}
	if c.CycleCount() != 0 {
		t.Fatalf("cycle count %d after long break, want 0", c.CycleCount())
	}
}

func TestControllerAutoStartBreaks(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	s := c.Settings()
	s.AutoStartBreaks = true
	c.UpdateSettings(s)

	c.Start()
	c.Skip()

	if c.Phase() != PhaseShortBreak {
		t.Fatalf("phase %v", c.Phase())
	}
	if !c.Running() {
		t.Fatal("break did not auto-start")
	}
}

func TestControllerEventOrderOnCompletion(t *testing.T) {
	c, rec := newTestController(t, storage.NewMem())
	c.Start()
	c.Skip()

	kinds := rec.kinds()
	var order []EventKind
	for _, k := range kinds {
		if k == EventSound || k == EventSessionRecorded || k == EventPhaseChange {
			order = append(order, k)
		}
	}
	// start phase-change, then completion: sound, recorded, next phase.
	want := []EventKind{EventPhaseChange, EventSound, EventSessionRecorded, EventPhaseChange}
	if len(order) != len(want) {
		t.Fatalf("events %v", kinds)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("event order %v, want %v", order, want)
		}
	}
}

func TestControllerCompletionFeedsAchievements(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	c.Start()
	c.Skip()

	// Notifications queue got the timer-complete push.
	notes := c.Engine().Notifications()
	if len(notes) == 0 {
		t.Fatal("no timer-complete notification")
	}
}

// ==== archive integration ====

func TestControllerArchivesSessions(t *testing.T) {
	arch, err := archive.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	c := NewController(storage.NewMem(), arch, clock.NewFake(testStart), nil)
	t.Cleanup(func() {
		c.Close()
		arch.Close()
	})

	c.Start()
	c.Skip()

	got, err := arch.List(archive.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DurationMinutes != 25 {
		t.Fatalf("archived %+v", got)
	}
	if got[0].ID != c.Ledger().Sessions()[0].ID {
		t.Fatal("archive and ledger disagree on session id")
	}
}

// ==== settings ====

func TestControllerUpdateSettingsWhileIdle(t *testing.T) {
	store := storage.NewMem()
	c, _ := newTestController(t, store)
	s := c.Settings()
	s.FocusMinutes = 50
	c.UpdateSettings(s)

	if c.Remaining() != 50*60 {
		t.Fatalf("remaining %d", c.Remaining())
	}
	if got := LoadSettings(store); got.FocusMinutes != 50 {
		t.Fatalf("persisted settings %+v", got)
	}
}

func TestControllerUpdateSettingsLeavesActiveRun(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	c.Start()
	s := c.Settings()
	s.FocusMinutes = 50
	c.UpdateSettings(s)

	if c.Remaining() != 25*60 {
		t.Fatalf("in-flight run rescaled to %d", c.Remaining())
	}
}

func TestControllerReloadsExternalSettings(t *testing.T) {
	store := storage.NewMem()
	c, _ := newTestController(t, store)

	raw, _ := json.Marshal(Settings{
		FocusMinutes: 30, ShortBreakMinutes: 5, LongBreakMinutes: 15,
		SessionsBeforeLongBreak: 4,
	})
	store.Inject(SettingsKey, raw)

	if got := c.Settings().FocusMinutes; got != 30 {
		t.Fatalf("settings not reloaded, focus %d", got)
	}
	if c.Remaining() != 30*60 {
		t.Fatalf("idle remaining %d", c.Remaining())
	}
}

func TestLoadSettingsFallsBack(t *testing.T) {
	if got := LoadSettings(nil); got != DefaultSettings() {
		t.Fatalf("nil store settings %+v", got)
	}
	store := storage.NewMem()
	store.Inject(SettingsKey, json.RawMessage(`{"focus_minutes":0}`))
	if got := LoadSettings(store); got != DefaultSettings() {
		t.Fatalf("unusable stored settings accepted: %+v", got)
	}
}

// ==== reset ====

func TestControllerResetDataPreservesSettings(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	s := c.Settings()
	s.FocusMinutes = 30
	c.UpdateSettings(s)
	c.Start()
	c.Skip()

	c.ResetData()

	if len(c.Ledger().Sessions()) != 0 {
		t.Fatal("sessions survived reset")
	}
	if len(c.Engine().Unlocks()) != 0 || len(c.Engine().Notifications()) != 0 {
		t.Fatal("achievement state survived reset")
	}
	if c.CycleCount() != 0 || c.Phase() != PhaseFocus {
		t.Fatalf("cycle state %d/%v", c.CycleCount(), c.Phase())
	}
	if c.Settings().FocusMinutes != 30 {
		t.Fatal("settings wiped by data reset")
	}
	if c.Remaining() != 30*60 {
		t.Fatalf("remaining %d", c.Remaining())
	}
}

// ==== recovery ====

func TestControllerRecoverResumesRun(t *testing.T) {
	store := storage.NewMem()
	store.Set(activeSessionKey, activeRun{
		Phase: PhaseFocus, DurationMinutes: 25,
		Date: "2024-03-01", StartTime: "08:30", CycleCount: 1,
	})
	store.Set(snapshotKey, timer.Snapshot{
		Running:    true,
		IntervalMs: 1000,
		StartedAt:  testStart.Add(-10 * time.Minute),
		SavedAt:    testStart.Add(-30 * time.Second),
		ElapsedMs:  10 * 60 * 1000,
	})

	c, _ := newTestController(t, store)

	if !c.Running() {
		t.Fatal("run not resumed")
	}
	if c.Phase() != PhaseFocus {
		t.Fatalf("phase %v", c.Phase())
	}
	// 10 minutes elapsed plus 30 seconds away.
	if got := c.Remaining(); got != 25*60-630 {
		t.Fatalf("remaining %d, want %d", got, 25*60-630)
	}
	if c.CycleCount() != 1 {
		t.Fatalf("cycle count %d", c.CycleCount())
	}
}

func TestControllerRecoverCompletedAway(t *testing.T) {
	store := storage.NewMem()
	store.Set(activeSessionKey, activeRun{
		Phase: PhaseFocus, DurationMinutes: 1,
		Date: "2024-03-01", StartTime: "08:58",
	})
	store.Set(snapshotKey, timer.Snapshot{
		Running:    true,
		IntervalMs: 1000,
		StartedAt:  testStart.Add(-70 * time.Second),
		SavedAt:    testStart.Add(-40 * time.Second),
		ElapsedMs:  30 * 1000,
	})

	c, _ := newTestController(t, store)

	if c.Running() {
		t.Fatal("finished run left running")
	}
	sessions := c.Ledger().Sessions()
	if len(sessions) != 1 {
		t.Fatalf("recorded %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if !s.Completed || !s.Interrupted {
		t.Fatalf("session %+v, want completed and interrupted", s)
	}
	if s.DurationMinutes != 1 || s.StartTime != "08:58" {
		t.Fatalf("session %+v", s)
	}
	if c.Phase() != PhaseShortBreak {
		t.Fatalf("phase %v after away completion", c.Phase())
	}
	var run activeRun
	if store.Get(activeSessionKey, &run) {
		t.Fatal("active run not cleared")
	}
}

func TestControllerCloseAllowsResume(t *testing.T) {
	store := storage.NewMem()
	first, _ := newTestController(t, store)
	first.Start()
	first.Close()

	var snap timer.Snapshot
	if !store.Get(snapshotKey, &snap) {
		t.Fatal("close erased the recovery snapshot")
	}
	if !snap.Paused {
		t.Fatalf("snapshot %+v, want paused", snap)
	}
	var run activeRun
	if !store.Get(activeSessionKey, &run) {
		t.Fatal("close erased the active run")
	}

	second, _ := newTestController(t, store)
	if !second.Running() {
		t.Fatal("run did not resume after a clean quit")
	}
	if second.Phase() != PhaseFocus {
		t.Fatalf("phase %v", second.Phase())
	}
	if second.Remaining() != 25*60 {
		t.Fatalf("remaining %d", second.Remaining())
	}
}

func TestControllerRecoverDiscardsGarbageRun(t *testing.T) {
	store := storage.NewMem()
	store.Set(activeSessionKey, activeRun{Phase: PhaseFocus, DurationMinutes: 0})

	c, _ := newTestController(t, store)

	if c.Running() {
		t.Fatal("garbage run resumed")
	}
	var run activeRun
	if store.Get(activeSessionKey, &run) {
		t.Fatal("garbage run not cleared")
	}
}

func TestControllerRecoverNothingSaved(t *testing.T) {
	c, _ := newTestController(t, storage.NewMem())
	if c.Running() {
		t.Fatal("running with nothing to recover")
	}
	if c.Remaining() != 25*60 {
		t.Fatalf("remaining %d", c.Remaining())
	}
}

// ==== phases ====

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseFocus:      "focus",
		PhaseShortBreak: "short break",
		PhaseLongBreak:  "long break",
		Phase(9):        "unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", p, got, want)
		}
	}
}

func TestPhaseSessionType(t *testing.T) {
	if PhaseFocus.sessionType() != ledger.TypeFocus {
		t.Error("focus")
	}
	if PhaseShortBreak.sessionType() != ledger.TypeShortBreak {
		t.Error("short break")
	}
	if PhaseLongBreak.sessionType() != ledger.TypeLongBreak {
		t.Error("long break")
	}
}
