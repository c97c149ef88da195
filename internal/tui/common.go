package tui

import (
	"fmt"

	"github.com/eralp/pomotron/internal/pomodoro"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewStats
	viewAchievements
	viewSettings
)

var viewNames = []string{"Timer", "Stats", "Achievements", "Settings"}

// --- Messages ---

// coreEventMsg wraps one controller event pulled off the sink channel.
type coreEventMsg struct {
	event pomodoro.Event
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg struct{}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

// formatClock renders remaining seconds as MM:SS, spilling into hours for
// long custom durations.
func formatClock(secs int) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatFocusTotal(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%.1fh", float64(minutes)/60)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
