package achieve

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/ledger"
	"github.com/eralp/pomotron/internal/storage"
)

// StorageKey is where unlock and notification state persists.
const StorageKey = "achievements"

// recentCap bounds the recent-unlock list shown on the dashboard.
const recentCap = 5

// ErrInvalidClaim reports a claim against a non-existent or already-claimed
// unlock. The call mutates nothing.
var ErrInvalidClaim = errors.New("invalid claim")

// Notification kinds delivered to the UI sink.
const (
	KindUnlocked      = "unlocked"
	KindClaimed       = "claimed"
	KindTimerComplete = "timerComplete"
)

// Unlock records one tier crossing. Unlocks are monotonic: once created they
// are never removed or re-locked, even if edits to historical sessions would
// drop the metric back below the requirement.
type Unlock struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Level      int       `json:"level"`
	Title      string    `json:"title"`
	Icon       string    `json:"icon"`
	Reward     string    `json:"reward"`
	UnlockedAt time.Time `json:"unlocked_at"`
	Claimed    bool      `json:"claimed"`
}

// Notification is one pending UI event.
type Notification struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Icon    string    `json:"icon"`
	At      time.Time `json:"at"`
}

// Progress describes how far a metric is toward one tier.
type Progress struct {
	Current    float64
	Required   float64
	Percentage float64 // clamped to [0,100]
}

type persisted struct {
	Unlocks       []Unlock       `json:"unlocked"`
	Recent        []Unlock       `json:"recent"`
	Notifications []Notification `json:"notifications"`
}

// Engine compares live aggregates against the catalog. It is safe for
// concurrent use; the notification sink is called without locks held.
type Engine struct {
	mu    sync.Mutex
	store storage.Store
	clk   clock.Clock
	log   *zap.Logger

	unlocks       []Unlock
	recent        []Unlock
	notifications []Notification
	sink          func(Notification)
	seq           int
}

// NewEngine loads persisted unlock state. A missing or unreadable key starts
// with everything locked.
func NewEngine(store storage.Store, clk clock.Clock, log *zap.Logger) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{store: store, clk: clk, log: log}

	var p persisted
	if store != nil && store.Get(StorageKey, &p) {
		e.unlocks = p.Unlocks
		e.recent = p.Recent
		e.notifications = p.Notifications
	}
	return e
}

// SetSink installs the notification receiver (the UI layer). The core never
// waits for acknowledgment.
func (e *Engine) SetSink(fn func(Notification)) {
	e.mu.Lock()
	e.sink = fn
	e.mu.Unlock()
}

// Evaluate checks every not-yet-unlocked (type, tier) pair against agg and
// unlocks all whose requirement is met, in ascending level order per type.
// Each new unlock gets its own record and its own notification. The return
// lists only the unlocks created by this call.
func (e *Engine) Evaluate(agg ledger.Aggregates) []Unlock {
	e.mu.Lock()

	now := e.clk.Now()
	var created []Unlock
	var notes []Notification
	for _, def := range Catalog {
		metric := metricFor(def.Type, agg)
		for _, t := range def.Tiers {
			id := UnlockID(def.Type, t.Level)
			if e.unlockedLocked(id) || metric < t.Requirement {
				continue
			}
			u := Unlock{
				ID:         id,
				Type:       def.Type,
				Level:      t.Level,
				Title:      def.Title,
				Icon:       def.Icon,
				Reward:     t.Reward,
				UnlockedAt: now,
			}
			e.unlocks = append(e.unlocks, u)
			created = append(created, u)

			e.recent = append([]Unlock{u}, e.recent...)
			if len(e.recent) > recentCap {
				e.recent = e.recent[:recentCap]
			}

			n := Notification{
				ID:      e.noteIDLocked(now),
				Kind:    KindUnlocked,
				Title:   fmt.Sprintf("%s — Level %d", def.Title, t.Level),
				Message: fmt.Sprintf("Unlocked: %s", t.Reward),
				Icon:    def.Icon,
				At:      now,
			}
			e.notifications = append(e.notifications, n)
			notes = append(notes, n)
		}
	}

	if len(created) > 0 {
		e.persistLocked()
	}
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		for _, n := range notes {
			sink(n)
		}
	}
	return created
}

// Claim flips the claimed flag of an existing, unclaimed unlock and emits a
// "claimed" notification. Claiming an unknown or already-claimed ID returns
// ErrInvalidClaim and mutates nothing.
func (e *Engine) Claim(id string) error {
	e.mu.Lock()

	idx := -1
	for i := range e.unlocks {
		if e.unlocks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || e.unlocks[idx].Claimed {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidClaim, id)
	}

	e.unlocks[idx].Claimed = true
	now := e.clk.Now()
	n := Notification{
		ID:      e.noteIDLocked(now),
		Kind:    KindClaimed,
		Title:   e.unlocks[idx].Title,
		Message: fmt.Sprintf("Claimed: %s", e.unlocks[idx].Reward),
		Icon:    e.unlocks[idx].Icon,
		At:      now,
	}
	e.notifications = append(e.notifications, n)
	e.persistLocked()
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink(n)
	}
	return nil
}

// Push queues an externally produced notification (e.g. timer completion)
// through the same queue and sink as achievement events.
func (e *Engine) Push(kind, title, message, icon string) {
	e.mu.Lock()
	n := Notification{
		ID:      e.noteIDLocked(e.clk.Now()),
		Kind:    kind,
		Title:   title,
		Message: message,
		Icon:    icon,
		At:      e.clk.Now(),
	}
	e.notifications = append(e.notifications, n)
	e.persistLocked()
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink(n)
	}
}

// DismissNotification removes one entry from the pending queue. Unlock and
// claim state are untouched.
func (e *Engine) DismissNotification(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.notifications {
		if e.notifications[i].ID == id {
			e.notifications = append(e.notifications[:i], e.notifications[i+1:]...)
			e.persistLocked()
			return
		}
	}
}

// ClearAllNotifications empties the pending queue.
func (e *Engine) ClearAllNotifications() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.notifications) == 0 {
		return
	}
	e.notifications = nil
	e.persistLocked()
}

// ProgressFor reports metric progress toward (typeID, level), using the same
// metric computation Evaluate uses.
func (e *Engine) ProgressFor(typeID string, level int, agg ledger.Aggregates) Progress {
	t, ok := tier(typeID, level)
	if !ok {
		return Progress{}
	}
	cur := metricFor(typeID, agg)
	pct := cur / t.Requirement * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return Progress{Current: cur, Required: t.Requirement, Percentage: pct}
}

// Unlocks returns a copy of all unlock records.
func (e *Engine) Unlocks() []Unlock {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Unlock, len(e.unlocks))
	copy(out, e.unlocks)
	return out
}

// Recent returns the most recent unlocks, newest first.
func (e *Engine) Recent() []Unlock {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Unlock, len(e.recent))
	copy(out, e.recent)
	return out
}

// Notifications returns a copy of the pending queue, oldest first.
func (e *Engine) Notifications() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Notification, len(e.notifications))
	copy(out, e.notifications)
	return out
}

// Reset wipes unlocks and notifications and clears persisted state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unlocks = nil
	e.recent = nil
	e.notifications = nil
	if e.store != nil {
		e.store.Remove(StorageKey)
	}
}

func (e *Engine) unlockedLocked(id string) bool {
	for _, u := range e.unlocks {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) noteIDLocked(now time.Time) string {
	e.seq++
	return fmt.Sprintf("n_%d_%d", now.UnixMilli(), e.seq)
}

func (e *Engine) persistLocked() {
	if e.store == nil {
		return
	}
	p := persisted{Unlocks: e.unlocks, Recent: e.recent, Notifications: e.notifications}
	if !e.store.Set(StorageKey, p) {
		e.log.Warn("achievement state not persisted, memory remains authoritative")
	}
}

// metricFor maps an achievement type to its live aggregate value.
func metricFor(typeID string, agg ledger.Aggregates) float64 {
	switch typeID {
	case TypeFocusMaster:
		return float64(agg.TotalFocusMinutes) / 60
	case TypeStreakChampion:
		return float64(agg.CurrentStreak)
	case TypeConsistency:
		return float64(agg.CompletedSessions)
	case TypeFocusNinja:
		return float64(agg.UninterruptedSessions)
	case TypeEarlyBird:
		return float64(agg.EarlyBirdSessions)
	default:
		return 0
	}
}
