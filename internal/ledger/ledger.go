package ledger

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/clock"
	"github.com/eralp/pomotron/internal/storage"
)

// StorageKey is where the ledger persists its state.
const StorageKey = "sessions"

// HistoryCap bounds the visible session history. When a new session pushes
// the list past the cap the oldest entries are dropped, and because
// aggregates are computed from this same capped list, the cap is a real
// data-retention boundary: totals and streaks forget what falls off the end.
// The SQLite archive keeps the uncapped record for reporting.
const HistoryCap = 100

// persisted is the single serialized unit flushed to storage. Aggregates are
// stored as a convenience snapshot but are never trusted over recomputation.
type persisted struct {
	Sessions   []Session  `json:"sessions"`
	Aggregates Aggregates `json:"aggregates"`
}

// Ledger owns the session history. The in-memory state is authoritative;
// persistence failures are logged and retried wholesale on the next write.
type Ledger struct {
	mu       sync.Mutex
	store    storage.Store
	clk      clock.Clock
	log      *zap.Logger
	sessions []Session
}

// New loads any persisted history. Corrupt records are skipped individually
// with a warning; a missing or unreadable key starts an empty ledger.
func New(store storage.Store, clk clock.Clock, log *zap.Logger) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{store: store, clk: clk, log: log}

	var p persisted
	if store != nil && store.Get(StorageKey, &p) {
		for _, s := range p.Sessions {
			if err := s.Validate(); err != nil {
				log.Warn("skipping corrupt session record",
					zap.String("id", s.ID), zap.Error(err))
				continue
			}
			l.sessions = append(l.sessions, s)
		}
	}
	return l
}

// Add appends a session, evicting the oldest entries past HistoryCap,
// recomputes aggregates and flushes the full state. The stored session
// (with an assigned ID if none was set) is returned.
func (l *Ledger) Add(s Session) (Session, error) {
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	l.sessions = append(l.sessions, s)
	if len(l.sessions) > HistoryCap {
		l.sessions = l.sessions[len(l.sessions)-HistoryCap:]
	}
	l.persistLocked()
	return s, nil
}

// MarkInterrupted annotates a stored session after the fact. Counters stay
// consistent automatically because every aggregate read recomputes from the
// patched list. Returns false when the ID is unknown.
func (l *Ledger) MarkInterrupted(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.sessions {
		if l.sessions[i].ID == id {
			if !l.sessions[i].Interrupted {
				l.sessions[i].Interrupted = true
				l.persistLocked()
			}
			return true
		}
	}
	return false
}

// Sessions returns a copy of the visible history, oldest first.
func (l *Ledger) Sessions() []Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}

// Aggregates recomputes the derived statistics from the current history and
// the current calendar day.
func (l *Ledger) Aggregates() Aggregates {
	l.mu.Lock()
	sessions := make([]Session, len(l.sessions))
	copy(sessions, l.sessions)
	l.mu.Unlock()
	return Compute(sessions, l.clk.Now(), l.log)
}

// DailyProgress reports completed focus minutes for date as a percentage of
// goalMinutes, clamped to 100.
func (l *Ledger) DailyProgress(date string, goalMinutes int) float64 {
	if goalMinutes <= 0 {
		return 0
	}
	agg := l.Aggregates()
	return clampPct(float64(agg.DailyStats[date]) / float64(goalMinutes) * 100)
}

// WeeklyProgress reports completed focus minutes for the week containing
// today (Sunday start) as a percentage of goalMinutes, clamped to 100.
func (l *Ledger) WeeklyProgress(goalMinutes int) float64 {
	if goalMinutes <= 0 {
		return 0
	}
	agg := l.Aggregates()
	week := startOfWeek(l.clk.Now()).Format(DateLayout)
	return clampPct(float64(agg.WeeklyStats[week]) / float64(goalMinutes) * 100)
}

// Reset clears the history and removes the persisted state.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = nil
	if l.store != nil {
		l.store.Remove(StorageKey)
	}
}

// persistLocked flushes the complete current state. A failed write leaves
// memory authoritative; the next successful write carries everything, so
// storage never holds a partial delta.
func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	p := persisted{
		Sessions:   l.sessions,
		Aggregates: Compute(l.sessions, l.clk.Now(), l.log),
	}
	if !l.store.Set(StorageKey, p) {
		l.log.Warn("session history not persisted, memory remains authoritative",
			zap.Int("sessions", len(l.sessions)))
	}
}

func clampPct(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

// Today returns the current calendar date string, useful to callers
// constructing sessions.
func (l *Ledger) Today() string {
	return l.clk.Now().Format(DateLayout)
}
