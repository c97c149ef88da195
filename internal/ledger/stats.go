package ledger

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// StreakDay is one entry of the per-date run-length history used for
// graphing: the streak length as of that date, resetting to 1 on any gap of
// more than one day.
type StreakDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Aggregates are derived statistics, recomputed from the session list and
// never hand-mutated.
type Aggregates struct {
	TotalFocusMinutes     int            `json:"total_focus_minutes"`
	CurrentStreak         int            `json:"current_streak"`
	LongestStreak         int            `json:"longest_streak"`
	StreakHistory         []StreakDay    `json:"streak_history"`
	DailyStats            map[string]int `json:"daily_stats"`
	WeeklyStats           map[string]int `json:"weekly_stats"`
	MonthlyStats          map[string]int `json:"monthly_stats"`
	UninterruptedSessions int            `json:"uninterrupted_sessions"`
	InterruptedSessions   int            `json:"interrupted_sessions"`
	CompletedSessions     int            `json:"completed_sessions"`
	EarlyBirdSessions     int            `json:"early_bird_sessions"`
}

// Compute derives all aggregates from sessions, with "today" injected for
// deterministic current-streak results. Malformed records are skipped per
// item; one bad record never zeroes out the rest.
func Compute(sessions []Session, today time.Time, log *zap.Logger) Aggregates {
	if log == nil {
		log = zap.NewNop()
	}
	agg := Aggregates{
		DailyStats:   make(map[string]int),
		WeeklyStats:  make(map[string]int),
		MonthlyStats: make(map[string]int),
	}

	focusDates := make(map[string]bool)
	for _, s := range sessions {
		if s.Validate() != nil {
			log.Warn("skipping invalid session in aggregate computation", zap.String("id", s.ID))
			continue
		}
		if !s.Completed {
			continue
		}
		agg.CompletedSessions++

		if s.Type != TypeFocus {
			continue
		}
		agg.TotalFocusMinutes += s.DurationMinutes
		if s.Interrupted {
			agg.InterruptedSessions++
		} else {
			agg.UninterruptedSessions++
		}
		if s.startHour() < 10 {
			agg.EarlyBirdSessions++
		}
		focusDates[s.Date] = true

		day, err := time.Parse(DateLayout, s.Date)
		if err != nil {
			continue
		}
		agg.DailyStats[s.Date] += s.DurationMinutes
		agg.WeeklyStats[startOfWeek(day).Format(DateLayout)] += s.DurationMinutes
		agg.MonthlyStats[day.Format("2006-01")] += s.DurationMinutes
	}

	dates := make([]string, 0, len(focusDates))
	for d := range focusDates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	agg.CurrentStreak, agg.LongestStreak, agg.StreakHistory = streaks(dates, today)
	return agg
}

// streaks computes the current and longest runs of consecutive calendar days
// over the sorted distinct date list. The current streak counts only when
// the most recent date is today or yesterday; a two-day gap breaks it to 0.
func streaks(dates []string, today time.Time) (current, longest int, history []StreakDay) {
	if len(dates) == 0 {
		return 0, 0, []StreakDay{}
	}

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return 0, 0, []StreakDay{}
	}

	// History: run length as of each date, resetting on any gap > 1 day.
	history = make([]StreakDay, len(days))
	run := 1
	for i, d := range days {
		if i > 0 && dayDiff(days[i-1], d) == 1 {
			run++
		} else if i > 0 {
			run = 1
		}
		history[i] = StreakDay{Date: d.Format(DateLayout), Count: run}
		if run > longest {
			longest = run
		}
	}

	// Current streak: anchored on the most recent date, which must be today
	// or yesterday.
	last := days[len(days)-1]
	gap := dayDiff(last, midnight(today))
	if gap != 0 && gap != 1 {
		return 0, longest, history
	}
	current = history[len(history)-1].Count
	return current, longest, history
}

// dayDiff returns the whole calendar days from a to b.
func dayDiff(a, b time.Time) int {
	return int(midnight(b).Sub(midnight(a)).Hours() / 24)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the Sunday on or before d (calendar-day subtraction by
// weekday, matching the analytics bucketing rule).
func startOfWeek(d time.Time) time.Time {
	return midnight(d).AddDate(0, 0, -int(d.Weekday()))
}
