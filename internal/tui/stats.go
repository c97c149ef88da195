package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/eralp/pomotron/internal/archive"
	"github.com/eralp/pomotron/internal/ledger"
	"github.com/eralp/pomotron/internal/pomodoro"
)

type statsRange int

const (
	statsWeek statsRange = iota
	statsMonth
)

type statsModel struct {
	ctrl   *pomodoro.Controller
	width  int
	height int

	mode      statsRange
	offset    int // weeks or months back from today (0 = current)
	summaries []archive.DaySummary
	agg       ledger.Aggregates

	chart barchart.Model
}

func newStatsModel(c *pomodoro.Controller) statsModel {
	return statsModel{
		ctrl:  c,
		chart: barchart.New(60, 12),
	}
}

func (s *statsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type statsDataMsg struct {
	summaries []archive.DaySummary
	agg       ledger.Aggregates
}

func (s statsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		from, to := s.dateRange()
		var summaries []archive.DaySummary
		if arch := s.ctrl.Archive(); arch != nil {
			summaries, _ = arch.DailySummary(
				from.Format(ledger.DateLayout),
				to.Format(ledger.DateLayout),
			)
		}
		return statsDataMsg{
			summaries: summaries,
			agg:       s.ctrl.Ledger().Aggregates(),
		}
	}
}

// dateRange returns the inclusive [from, to] window for the current mode
// and offset.
func (s statsModel) dateRange() (time.Time, time.Time) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s.mode {
	case statsMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		first = first.AddDate(0, -s.offset, 0)
		last := first.AddDate(0, 1, -1)
		return first, last
	default:
		// Week starting Sunday, matching the weekly buckets.
		start := today.AddDate(0, 0, -int(today.Weekday()))
		start = start.AddDate(0, 0, -7*s.offset)
		return start, start.AddDate(0, 0, 6)
	}
}

func (s statsModel) update(msg tea.Msg) (statsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statsDataMsg:
		s.summaries = msg.summaries
		s.agg = msg.agg
		s.buildChart()
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			s.offset++
			return s, s.refresh()
		case key.Matches(msg, keys.Right):
			if s.offset > 0 {
				s.offset--
			}
			return s, s.refresh()
		case key.Matches(msg, keys.Tab):
			if s.mode == statsWeek {
				s.mode = statsMonth
			} else {
				s.mode = statsWeek
			}
			s.offset = 0
			return s, s.refresh()
		}
	}
	return s, nil
}

func (s *statsModel) buildChart() {
	chartWidth := s.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 10
	if s.height > 30 {
		chartHeight = 14
	}

	s.chart = barchart.New(chartWidth, chartHeight)

	byDate := make(map[string]archive.DaySummary, len(s.summaries))
	for _, d := range s.summaries {
		byDate[d.Date] = d
	}

	from, to := s.dateRange()
	var bars []barchart.BarData
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		label := d.Format("02")
		if s.mode == statsWeek {
			label = d.Format("Mon")
		}

		value := barchart.BarValue{
			Name:  "focus",
			Value: 0,
			Style: lipgloss.NewStyle().Foreground(colorSubtle),
		}
		if day, ok := byDate[d.Format(ledger.DateLayout)]; ok {
			value.Value = float64(day.FocusMinutes)
			value.Style = lipgloss.NewStyle().Foreground(colorFocus)
		}

		bars = append(bars, barchart.BarData{
			Label:  label,
			Values: []barchart.BarValue{value},
		})
	}

	s.chart.PushAll(bars)
	s.chart.Draw()
}

func (s statsModel) view() string {
	w := s.width - 4

	weekTab := inactiveTabStyle.Render("Week")
	monthTab := inactiveTabStyle.Render("Month")
	if s.mode == statsWeek {
		weekTab = activeTabStyle.Render("Week")
	} else {
		monthTab = activeTabStyle.Render("Month")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, weekTab, monthTab)

	from, to := s.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s — %s",
		from.Format("Jan 02"), to.Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Stats"), "  ", modeTabs, "  ", dateLabel,
	)

	chartView := mutedStyle.Render("  Focus minutes per day") + "\n" + s.chart.View()

	totals := s.renderTotals()

	nav := mutedStyle.Render("  ←/→: navigate  tab: week/month")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", chartView, "", totals, "", nav,
		),
	)
}

func (s statsModel) renderTotals() string {
	a := s.agg

	var rows []string
	rows = append(rows, titleStyle.Render("All time"))
	rows = append(rows, fmt.Sprintf("  %-22s %s", "Total focus",
		highlightStyle.Render(formatFocusTotal(a.TotalFocusMinutes))))
	rows = append(rows, fmt.Sprintf("  %-22s %s", "Completed sessions",
		highlightStyle.Render(fmt.Sprintf("%d", a.CompletedSessions))))
	rows = append(rows, fmt.Sprintf("  %-22s %s / %s", "Streak (now / best)",
		successStyle.Render(fmt.Sprintf("%d", a.CurrentStreak)),
		highlightStyle.Render(fmt.Sprintf("%d", a.LongestStreak))))
	rows = append(rows, fmt.Sprintf("  %-22s %s / %s", "Clean / interrupted",
		successStyle.Render(fmt.Sprintf("%d", a.UninterruptedSessions)),
		warningStyle.Render(fmt.Sprintf("%d", a.InterruptedSessions))))

	if len(a.StreakHistory) > 0 {
		rows = append(rows, "")
		rows = append(rows, titleStyle.Render("Recent streaks"))
		start := max(0, len(a.StreakHistory)-5)
		for _, day := range a.StreakHistory[start:] {
			bar := strings.Repeat("▪", min(day.Count, 30))
			rows = append(rows, fmt.Sprintf("  %s %s %d",
				mutedStyle.Render(day.Date), successStyle.Render(bar), day.Count))
		}
	}

	return strings.Join(rows, "\n")
}
