package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/eralp/pomotron/internal/pomodoro"
)

// timerModel is the live countdown view. All timing state lives in the
// controller; this model only renders it and translates keys.
type timerModel struct {
	ctrl   *pomodoro.Controller
	width  int
	height int

	interrupted bool // shown until the next phase change
	recovered   bool
	lastSession *pomodoro.Event
}

func newTimerModel(c *pomodoro.Controller) timerModel {
	return timerModel{ctrl: c}
}

func (t *timerModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

func (t timerModel) update(msg tea.Msg) (timerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case coreEventMsg:
		switch msg.event.Kind {
		case pomodoro.EventPhaseChange:
			t.interrupted = false
		case pomodoro.EventInterrupted:
			t.interrupted = true
		case pomodoro.EventSessionRecorded:
			ev := msg.event
			t.lastSession = &ev
		case pomodoro.EventRecovered:
			t.recovered = true
		}
		return t, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Start):
			if !t.ctrl.Running() {
				t.recovered = false
				t.interrupted = false
				t.ctrl.Start()
			}
			return t, nil
		case key.Matches(msg, keys.Pause):
			if t.ctrl.Paused() {
				t.ctrl.Resume()
			} else if t.ctrl.Running() {
				t.ctrl.Pause()
			}
			return t, nil
		case key.Matches(msg, keys.Stop):
			if t.ctrl.Running() {
				t.ctrl.Stop()
				t.interrupted = false
				return t, func() tea.Msg {
					return statusMsg{text: "Timer stopped"}
				}
			}
			return t, nil
		case key.Matches(msg, keys.Skip):
			if t.ctrl.Running() {
				t.ctrl.Skip()
			}
			return t, nil
		}
	}
	return t, nil
}

func (t timerModel) view() string {
	if t.width < 20 {
		return "Terminal too small"
	}
	w := t.width - 4

	clockPanel := t.renderClockPanel(w)
	goalPanel := t.renderGoalPanel(w)

	return lipgloss.JoinVertical(lipgloss.Left, clockPanel, goalPanel)
}

func (t timerModel) renderClockPanel(w int) string {
	phase := t.ctrl.Phase()
	remaining := t.ctrl.Remaining()
	running := t.ctrl.Running()
	paused := t.ctrl.Paused()

	clockStr := formatClock(remaining)

	var clock, label, hint string
	switch {
	case !running:
		clock = clockIdleStyle.Width(w - 6).Render(clockStr)
		label = mutedStyle.Render("■  " + strings.ToUpper(phase.String()))
		hint = mutedStyle.Render("Press s to start")
	case paused:
		clock = clockPausedStyle.Width(w - 6).Render(clockStr)
		label = warningStyle.Render("⏸  PAUSED")
		hint = mutedStyle.Render("space: resume  x: stop  n: skip")
	case phase == pomodoro.PhaseFocus:
		clock = clockFocusStyle.Width(w - 6).Render(clockStr)
		label = clockFocusStyle.Render("●  FOCUS")
		hint = mutedStyle.Render("space: pause  x: stop  n: skip")
	default:
		clock = clockBreakStyle.Width(w - 6).Render(clockStr)
		label = clockBreakStyle.Render("●  " + strings.ToUpper(phase.String()))
		hint = mutedStyle.Render("space: pause  x: stop  n: skip")
	}

	rows := []string{clock, label, t.renderCycleDots(), ""}

	if t.recovered {
		rows = append(rows, warningStyle.Render("Resumed after restart"))
	}
	if t.interrupted {
		rows = append(rows, warningStyle.Render("⚠  Interruption detected"))
	}
	if t.lastSession != nil && t.lastSession.Session != nil {
		s := t.lastSession.Session
		rows = append(rows, successStyle.Render(
			fmt.Sprintf("✓  Recorded %d min %s session", s.DurationMinutes, s.Type)))
	}
	rows = append(rows, hint)

	content := lipgloss.JoinVertical(lipgloss.Center, rows...)
	if running {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

// renderCycleDots shows progress toward the long break, the filled dots
// being focus sessions completed in the current cycle.
func (t timerModel) renderCycleDots() string {
	target := t.ctrl.Settings().SessionsBeforeLongBreak
	if target <= 0 {
		return ""
	}
	done := t.ctrl.CycleCount()

	var parts []string
	for i := 0; i < target; i++ {
		switch {
		case i < done:
			parts = append(parts, successStyle.Render("●"))
		case i == done && t.ctrl.Running() && t.ctrl.Phase() == pomodoro.PhaseFocus:
			parts = append(parts, clockFocusStyle.Render("◐"))
		default:
			parts = append(parts, mutedStyle.Render("○"))
		}
	}
	counter := mutedStyle.Render(fmt.Sprintf("  %d/%d", done, target))
	return strings.Join(parts, " ") + counter
}

func (t timerModel) renderGoalPanel(w int) string {
	led := t.ctrl.Ledger()
	settings := t.ctrl.Settings()
	agg := led.Aggregates()
	today := led.Today()

	todayMinutes := agg.DailyStats[today]
	title := titleStyle.Render("Today") + "  " +
		highlightStyle.Render(formatFocusTotal(todayMinutes))

	barWidth := min(w-30, 40)
	if barWidth < 10 {
		barWidth = 10
	}

	daily := fmt.Sprintf("  %-12s %s %5.1f%%", "Daily goal",
		renderBar(led.DailyProgress(today, settings.DailyGoalMinutes), barWidth),
		led.DailyProgress(today, settings.DailyGoalMinutes))
	weekly := fmt.Sprintf("  %-12s %s %5.1f%%", "Weekly goal",
		renderBar(led.WeeklyProgress(settings.WeeklyGoalMinutes), barWidth),
		led.WeeklyProgress(settings.WeeklyGoalMinutes))

	streak := fmt.Sprintf("  %-12s %s", "Streak",
		highlightStyle.Render(fmt.Sprintf("%d day(s)", agg.CurrentStreak)))

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, "", daily, weekly, streak),
	)
}

func renderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if pct >= 100 {
		return successStyle.Render(bar)
	}
	return highlightStyle.Render(bar)
}
