package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/eralp/pomotron/internal/pomodoro"
)

type settingsModel struct {
	ctrl   *pomodoro.Controller
	width  int
	height int

	formActive bool
	form       *huh.Form

	confirmReset bool

	// Form values as pointers (survive value copies)
	focusMin      *string
	shortBreakMin *string
	longBreakMin  *string
	cycleLen      *string
	dailyGoal     *string
	weeklyGoal    *string
	autoBreaks    *bool
	autoFocus     *bool
	notifications *bool
	sound         *bool
}

func newSettingsModel(c *pomodoro.Controller) settingsModel {
	fm, sb, lb, cl, dg, wg := "", "", "", "", "", ""
	ab, af, nt, snd := false, false, false, false
	return settingsModel{
		ctrl:          c,
		focusMin:      &fm,
		shortBreakMin: &sb,
		longBreakMin:  &lb,
		cycleLen:      &cl,
		dailyGoal:     &dg,
		weeklyGoal:    &wg,
		autoBreaks:    &ab,
		autoFocus:     &af,
		notifications: &nt,
		sound:         &snd,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s.confirmReset {
			switch msg.String() {
			case "y", "Y":
				s.confirmReset = false
				s.ctrl.ResetData()
				return s, func() tea.Msg {
					return statusMsg{text: "All session data and achievements cleared"}
				}
			default:
				s.confirmReset = false
				return s, nil
			}
		}

		switch {
		case key.Matches(msg, keys.Enter):
			return s.showForm()
		case msg.String() == "r":
			s.confirmReset = true
			return s, nil
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	cur := s.ctrl.Settings()
	*s.focusMin = strconv.Itoa(cur.FocusMinutes)
	*s.shortBreakMin = strconv.Itoa(cur.ShortBreakMinutes)
	*s.longBreakMin = strconv.Itoa(cur.LongBreakMinutes)
	*s.cycleLen = strconv.Itoa(cur.SessionsBeforeLongBreak)
	*s.dailyGoal = strconv.Itoa(cur.DailyGoalMinutes)
	*s.weeklyGoal = strconv.Itoa(cur.WeeklyGoalMinutes)
	*s.autoBreaks = cur.AutoStartBreaks
	*s.autoFocus = cur.AutoStartPomodoros
	*s.notifications = cur.NotificationsEnabled
	*s.sound = cur.SoundEnabled

	validatePositive := func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("enter a positive whole number")
		}
		return nil
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Focus length (min)").Value(s.focusMin).Validate(validatePositive),
			huh.NewInput().Title("Short break (min)").Value(s.shortBreakMin).Validate(validatePositive),
			huh.NewInput().Title("Long break (min)").Value(s.longBreakMin).Validate(validatePositive),
			huh.NewInput().Title("Sessions before long break").Value(s.cycleLen).Validate(validatePositive),
		).Title("Durations"),
		huh.NewGroup(
			huh.NewConfirm().Title("Auto-start breaks").Value(s.autoBreaks),
			huh.NewConfirm().Title("Auto-start focus sessions").Value(s.autoFocus),
			huh.NewConfirm().Title("Notifications").Value(s.notifications),
			huh.NewConfirm().Title("Sound").Value(s.sound),
		).Title("Behavior"),
		huh.NewGroup(
			huh.NewInput().Title("Daily goal (min)").Value(s.dailyGoal).Validate(validatePositive),
			huh.NewInput().Title("Weekly goal (min)").Value(s.weeklyGoal).Validate(validatePositive),
		).Title("Goals"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.saveSettings()
		return s, func() tea.Msg {
			return statusMsg{text: "Settings saved"}
		}
	}

	return s, cmd
}

func (s settingsModel) saveSettings() {
	next := s.ctrl.Settings()
	next.FocusMinutes = atoiOr(*s.focusMin, next.FocusMinutes)
	next.ShortBreakMinutes = atoiOr(*s.shortBreakMin, next.ShortBreakMinutes)
	next.LongBreakMinutes = atoiOr(*s.longBreakMin, next.LongBreakMinutes)
	next.SessionsBeforeLongBreak = atoiOr(*s.cycleLen, next.SessionsBeforeLongBreak)
	next.DailyGoalMinutes = atoiOr(*s.dailyGoal, next.DailyGoalMinutes)
	next.WeeklyGoalMinutes = atoiOr(*s.weeklyGoal, next.WeeklyGoalMinutes)
	next.AutoStartBreaks = *s.autoBreaks
	next.AutoStartPomodoros = *s.autoFocus
	next.NotificationsEnabled = *s.notifications
	next.SoundEnabled = *s.sound
	s.ctrl.UpdateSettings(next)
}

func atoiOr(v string, fallback int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return fallback
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	cur := s.ctrl.Settings()

	var rows []string
	rows = append(rows, titleStyle.Render("Settings"))
	rows = append(rows, "")
	rows = append(rows, settingRow("Focus length", fmt.Sprintf("%d min", cur.FocusMinutes)))
	rows = append(rows, settingRow("Short break", fmt.Sprintf("%d min", cur.ShortBreakMinutes)))
	rows = append(rows, settingRow("Long break", fmt.Sprintf("%d min", cur.LongBreakMinutes)))
	rows = append(rows, settingRow("Sessions before long break", strconv.Itoa(cur.SessionsBeforeLongBreak)))
	rows = append(rows, settingRow("Auto-start breaks", onOff(cur.AutoStartBreaks)))
	rows = append(rows, settingRow("Auto-start focus", onOff(cur.AutoStartPomodoros)))
	rows = append(rows, settingRow("Notifications", onOff(cur.NotificationsEnabled)))
	rows = append(rows, settingRow("Sound", onOff(cur.SoundEnabled)))
	rows = append(rows, settingRow("Daily goal", fmt.Sprintf("%d min", cur.DailyGoalMinutes)))
	rows = append(rows, settingRow("Weekly goal", fmt.Sprintf("%d min", cur.WeeklyGoalMinutes)))
	rows = append(rows, "")

	if s.confirmReset {
		rows = append(rows, errorStyle.Render("  Erase all sessions and achievements? (y/n)"))
	} else {
		rows = append(rows, mutedStyle.Render("  enter: edit  r: reset all data"))
	}

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func settingRow(label, value string) string {
	l := lipgloss.NewStyle().Width(28).Render(label)
	return fmt.Sprintf("  %s %s", l, highlightStyle.Render(value))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
