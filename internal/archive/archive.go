// Package archive keeps the uncapped session record in SQLite. The ledger's
// in-memory history is bounded; the archive is the retention layer behind it,
// feeding reports and export.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/eralp/pomotron/internal/ledger"
)

const currentVersion = 1

type Archive struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

// NewMemory creates an in-memory archive for testing.
func NewMemory() (*Archive, error) {
	return New(":memory:")
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	var version int
	err := a.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := a.migrateV1(); err != nil {
			return err
		}
	}

	_, err = a.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (a *Archive) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS sessions (
		id               TEXT PRIMARY KEY,
		type             TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		date             TEXT NOT NULL,
		start_time       TEXT NOT NULL DEFAULT '',
		completed        INTEGER NOT NULL DEFAULT 0,
		interrupted      INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date);
	CREATE INDEX IF NOT EXISTS idx_sessions_type ON sessions(type);
	`
	_, err := a.db.Exec(ddl)
	return err
}

// Insert records one session. The archive is append-only apart from the
// interruption annotation.
func (a *Archive) Insert(s ledger.Session) error {
	_, err := a.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, type, duration_minutes, date, start_time, completed, interrupted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.Type), s.DurationMinutes, s.Date, s.StartTime,
		boolInt(s.Completed), boolInt(s.Interrupted),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// MarkInterrupted mirrors the ledger's after-the-fact annotation.
func (a *Archive) MarkInterrupted(id string) error {
	_, err := a.db.Exec(`UPDATE sessions SET interrupted = 1 WHERE id = ?`, id)
	return err
}

// Filter narrows List queries. Zero values mean "no constraint".
type Filter struct {
	From  string // inclusive date
	To    string // inclusive date
	Type  ledger.SessionType
	Limit int
}

// List returns archived sessions newest-first.
func (a *Archive) List(f Filter) ([]ledger.Session, error) {
	query := `SELECT id, type, duration_minutes, date, start_time, completed, interrupted FROM sessions WHERE 1=1`
	var args []any
	if f.From != "" {
		query += ` AND date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND date <= ?`
		args = append(args, f.To)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	query += ` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Session
	for rows.Next() {
		var s ledger.Session
		var typ string
		var completed, interrupted int
		if err := rows.Scan(&s.ID, &typ, &s.DurationMinutes, &s.Date, &s.StartTime, &completed, &interrupted); err != nil {
			return nil, err
		}
		s.Type = ledger.SessionType(typ)
		s.Completed = completed != 0
		s.Interrupted = interrupted != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// DaySummary aggregates one calendar day of completed focus time.
type DaySummary struct {
	Date         string
	FocusMinutes int
	Sessions     int
}

// DailySummary returns per-day completed focus totals over [from, to].
func (a *Archive) DailySummary(from, to string) ([]DaySummary, error) {
	rows, err := a.db.Query(`
		SELECT date, COALESCE(SUM(duration_minutes), 0), COUNT(*)
		FROM sessions
		WHERE completed = 1 AND type = 'focus' AND date >= ? AND date <= ?
		GROUP BY date
		ORDER BY date`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	var out []DaySummary
	for rows.Next() {
		var d DaySummary
		if err := rows.Scan(&d.Date, &d.FocusMinutes, &d.Sessions); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TotalFocusMinutes returns the uncapped all-time completed focus total.
func (a *Archive) TotalFocusMinutes() (int, error) {
	var total int
	err := a.db.QueryRow(
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM sessions WHERE completed = 1 AND type = 'focus'`,
	).Scan(&total)
	return total, err
}

// Reset deletes every archived session.
func (a *Archive) Reset() error {
	_, err := a.db.Exec(`DELETE FROM sessions`)
	return err
}

// DefaultDBPath returns ~/.config/pomotron/archive.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "pomotron", "archive.db"), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
