package archive

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/eralp/pomotron/internal/ledger"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewMemory()
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func focusSession(id, date string, mins int) ledger.Session {
	return ledger.Session{
		ID: id, Type: ledger.TypeFocus, DurationMinutes: mins, Date: date, Completed: true,
	}
}

// ==== insert and list ====

func TestArchiveInsertAndList(t *testing.T) {
	a := newTestArchive(t)
	s := focusSession("s-1", "2024-03-01", 25)
	s.StartTime = "09:15"
	if err := a.Insert(s); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := a.List(Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("listed %d sessions, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0], s) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got[0], s)
	}
}

func TestArchiveInsertIdempotent(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Insert(focusSession("s-1", "2024-03-01", 25)); err != nil {
		t.Fatal(err)
	}
	// A replayed insert with the same id is ignored, not an error.
	dup := focusSession("s-1", "2024-03-01", 99)
	if err := a.Insert(dup); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}

	got, _ := a.List(Filter{})
	if len(got) != 1 {
		t.Fatalf("listed %d sessions, want 1", len(got))
	}
	if got[0].DurationMinutes != 25 {
		t.Fatal("replay overwrote the original record")
	}
}

func TestArchiveListNewestFirst(t *testing.T) {
	a := newTestArchive(t)
	a.Insert(focusSession("s-1", "2024-03-01", 25))
	a.Insert(focusSession("s-2", "2024-03-03", 25))
	a.Insert(focusSession("s-3", "2024-03-02", 25))

	got, err := a.List(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "s-2" || got[2].ID != "s-1" {
		t.Fatalf("order %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestArchiveListFilters(t *testing.T) {
	a := newTestArchive(t)
	a.Insert(focusSession("s-1", "2024-03-01", 25))
	a.Insert(focusSession("s-2", "2024-03-02", 25))
	a.Insert(focusSession("s-3", "2024-03-03", 25))
	brk := ledger.Session{
		ID: "b-1", Type: ledger.TypeShortBreak, DurationMinutes: 5, Date: "2024-03-02", Completed: true,
	}
	a.Insert(brk)

	got, err := a.List(Filter{From: "2024-03-02", To: "2024-03-02"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("date filter returned %d, want 2", len(got))
	}

	got, _ = a.List(Filter{Type: ledger.TypeShortBreak})
	if len(got) != 1 || got[0].ID != "b-1" {
		t.Fatalf("type filter %+v", got)
	}

	got, _ = a.List(Filter{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("limit returned %d, want 2", len(got))
	}

	got, _ = a.List(Filter{From: "2025-01-01"})
	if len(got) != 0 {
		t.Fatalf("out-of-range filter returned %d", len(got))
	}
}

// ==== annotations ====

func TestArchiveMarkInterrupted(t *testing.T) {
	a := newTestArchive(t)
	a.Insert(focusSession("s-1", "2024-03-01", 25))

	if err := a.MarkInterrupted("s-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, _ := a.List(Filter{})
	if !got[0].Interrupted {
		t.Fatal("annotation not applied")
	}
	if err := a.MarkInterrupted("no-such-id"); err != nil {
		t.Fatalf("unknown id: %v", err)
	}
}

// ==== summaries ====

func TestArchiveDailySummary(t *testing.T) {
	a := newTestArchive(t)
	a.Insert(focusSession("s-1", "2024-03-01", 25))
	a.Insert(focusSession("s-2", "2024-03-01", 25))
	a.Insert(focusSession("s-3", "2024-03-02", 50))
	abandoned := focusSession("s-4", "2024-03-02", 25)
	abandoned.Completed = false
	a.Insert(abandoned)
	a.Insert(ledger.Session{
		ID: "b-1", Type: ledger.TypeShortBreak, DurationMinutes: 5, Date: "2024-03-01", Completed: true,
	})

	got, err := a.DailySummary("2024-03-01", "2024-03-07")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := []DaySummary{
		{Date: "2024-03-01", FocusMinutes: 50, Sessions: 2},
		{Date: "2024-03-02", FocusMinutes: 50, Sessions: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("summary %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("day %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestArchiveTotalFocusMinutes(t *testing.T) {
	a := newTestArchive(t)
	a.Insert(focusSession("s-1", "2024-03-01", 25))
	a.Insert(focusSession("s-2", "2024-03-02", 50))
	a.Insert(ledger.Session{
		ID: "b-1", Type: ledger.TypeLongBreak, DurationMinutes: 15, Date: "2024-03-01", Completed: true,
	})

	total, err := a.TotalFocusMinutes()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 75 {
		t.Fatalf("total %d, want 75", total)
	}
}

func TestArchiveTotalEmpty(t *testing.T) {
	a := newTestArchive(t)
	total, err := a.TotalFocusMinutes()
	if err != nil || total != 0 {
		t.Fatalf("total %d err %v, want 0 nil", total, err)
	}
}

// ==== lifecycle ====

func TestArchiveReset(t *testing.T) {
	a := newTestArchive(t)
	a.Insert(focusSession("s-1", "2024-03-01", 25))
	if err := a.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ := a.List(Filter{})
	if len(got) != 0 {
		t.Fatalf("%d sessions survived reset", len(got))
	}
}

func TestArchiveReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	a.Insert(focusSession("s-1", "2024-03-01", 25))
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	got, err := b.List(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("reopened archive has %d sessions, want 1", len(got))
	}
}
