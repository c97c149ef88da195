package timer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/storage"
)

// Recovery is the outcome of consulting a saved countdown snapshot.
type Recovery int

const (
	// RecoverNone means no usable snapshot existed; start fresh.
	RecoverNone Recovery = iota
	// RecoverResumed means the countdown picked up mid-run with time left.
	RecoverResumed
	// RecoverCompletedAway means the countdown ran out while the process was
	// gone; the caller should record a completed (and interrupted) session.
	RecoverCompletedAway
)

// CountdownConfig configures a bounded-duration countdown session.
type CountdownConfig struct {
	DurationSeconds int
	OnTick          func(remaining int)
	OnComplete      func()
	OnInterruption  func()
	Interval        time.Duration
	Clock           clock.Clock
	Store           storage.Store
	Log             *zap.Logger
	SnapshotKey     string
}

// Countdown converts precision-timer ticks into seconds remaining for one
// session. It stops itself before invoking OnComplete, and surfaces
// OnInterruption at most once per interruption window via a one-second poll.
type Countdown struct {
	mu sync.Mutex

	t        *Timer
	clk      clock.Clock
	store    storage.Store
	log      *zap.Logger
	key      string
	interval time.Duration

	duration int
	left     int

	onTick         func(int)
	onComplete     func()
	onInterruption func()
	notified       bool

	pollGen     uint64
	pollPending *time.Timer
	schedule    func(d time.Duration, fn func()) *time.Timer
}

// NewCountdown builds a countdown. Nothing runs until Start or Recover.
func NewCountdown(cfg CountdownConfig) *Countdown {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	c := &Countdown{
		clk:            cfg.Clock,
		store:          cfg.Store,
		log:            cfg.Log,
		key:            cfg.SnapshotKey,
		interval:       cfg.Interval,
		duration:       cfg.DurationSeconds,
		left:           cfg.DurationSeconds,
		onTick:         cfg.OnTick,
		onComplete:     cfg.OnComplete,
		onInterruption: cfg.OnInterruption,
		schedule:       time.AfterFunc,
	}
	c.t = New(Config{
		Interval:    cfg.Interval,
		Callback:    c.tick,
		Clock:       cfg.Clock,
		Store:       cfg.Store,
		Log:         cfg.Log,
		SnapshotKey: cfg.SnapshotKey,
	})
	return c
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.left <= 0 {
		c.mu.Unlock()
		return
	}
	c.left--
	left := c.left
	onTick := c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(left)
	}
	if left <= 0 {
		c.stopInternal()
		c.mu.Lock()
		onComplete := c.onComplete
		c.mu.Unlock()
		if onComplete != nil {
			onComplete()
		}
	}
}

// Start begins a fresh run of the full duration.
func (c *Countdown) Start() {
	c.mu.Lock()
	c.left = c.duration
	c.notified = false
	c.mu.Unlock()
	c.t.Start(true)
	c.startPoll()
}

// Recover consults the saved snapshot, if any. On RecoverResumed the
// countdown is running again with the away time already charged; on
// RecoverCompletedAway the snapshot is cleared and nothing runs.
func (c *Countdown) Recover() Recovery {
	snap, ok := Recover(c.store, c.key, c.interval, c.clk, c.log)
	if !ok {
		return RecoverNone
	}

	elapsedSec := int(snap.ElapsedMs / 1000)
	left := c.duration - elapsedSec
	if left <= 0 {
		if c.store != nil {
			c.store.Remove(c.key)
		}
		c.mu.Lock()
		c.left = 0
		c.mu.Unlock()
		// The run was not observed to its end; carry the interruption latch
		// and the saved focus log so the recorded session reflects that.
		c.t.mu.Lock()
		c.t.interrupted = true
		c.t.events = snap.Events
		c.t.mu.Unlock()
		return RecoverCompletedAway
	}

	c.mu.Lock()
	c.left = left
	c.notified = false
	c.mu.Unlock()
	c.t.Restore(snap)
	c.startPoll()
	return RecoverResumed
}

func (c *Countdown) Pause()  { c.t.Pause() }
func (c *Countdown) Resume() { c.t.Resume() }

// Stop cancels the run and the interruption poll.
func (c *Countdown) Stop() {
	c.stopInternal()
}

func (c *Countdown) stopInternal() {
	c.t.Stop()
	c.mu.Lock()
	c.pollGen++
	if c.pollPending != nil {
		c.pollPending.Stop()
		c.pollPending = nil
	}
	c.mu.Unlock()
}

// Reset stops the run and rearms the countdown at newDuration seconds (pass
// 0 to keep the configured duration). OnTick observes the new remaining
// value immediately.
func (c *Countdown) Reset(newDuration int) {
	c.stopInternal()
	c.t.Reset()
	c.mu.Lock()
	if newDuration > 0 {
		c.duration = newDuration
	}
	c.left = c.duration
	c.notified = false
	left := c.left
	onTick := c.onTick
	c.mu.Unlock()
	if onTick != nil {
		onTick(left)
	}
}

// TimeLeft reports the remaining whole seconds.
func (c *Countdown) TimeLeft() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

// Running reports whether the underlying timer is running or paused.
func (c *Countdown) Running() bool {
	st := c.t.State()
	return st == StateRunning || st == StatePaused
}

// Paused reports whether the run is paused.
func (c *Countdown) Paused() bool {
	return c.t.State() == StatePaused
}

// WasInterrupted mirrors the underlying timer's interruption latch.
func (c *Countdown) WasInterrupted() bool {
	return c.t.WasInterrupted()
}

// ReportVisibility forwards host visibility transitions.
func (c *Countdown) ReportVisibility(hidden bool) {
	c.t.ReportVisibility(hidden)
}

// ReportFocus forwards window focus transitions.
func (c *Countdown) ReportFocus(focused bool) {
	c.t.ReportFocus(focused)
}

// Events exposes the focus event log for session annotation.
func (c *Countdown) Events() []FocusEvent {
	return c.t.Events()
}

// Destroy stops everything. No callback fires after it returns.
func (c *Countdown) Destroy() {
	c.stopInternal()
	c.t.Destroy()
}

// Detach silences the countdown while leaving the persisted snapshot in
// place, so a suspended run can resume through Recover after a restart.
func (c *Countdown) Detach() {
	c.mu.Lock()
	c.pollGen++
	if c.pollPending != nil {
		c.pollPending.Stop()
		c.pollPending = nil
	}
	c.mu.Unlock()
	c.t.Detach()
}

func (c *Countdown) startPoll() {
	c.mu.Lock()
	c.pollGen++
	gen := c.pollGen
	c.pollPending = c.schedule(time.Second, func() { c.poll(gen) })
	c.mu.Unlock()
}

// poll checks the interruption latch once a second and surfaces it to the
// host exactly once per interruption window.
func (c *Countdown) poll(gen uint64) {
	c.mu.Lock()
	if gen != c.pollGen {
		c.mu.Unlock()
		return
	}
	var fire func()
	if c.t.WasInterrupted() && !c.notified {
		c.notified = true
		fire = c.onInterruption
	}
	c.pollPending = c.schedule(time.Second, func() { c.poll(gen) })
	c.mu.Unlock()

	if fire != nil {
		fire()
	}
}
