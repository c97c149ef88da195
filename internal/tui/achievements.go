package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/eralp/pomotron/internal/achieve"
	"github.com/eralp/pomotron/internal/ledger"
	"github.com/eralp/pomotron/internal/pomodoro"
)

// achieveRow is one selectable line: a specific tier of a catalog type.
type achieveRow struct {
	def  achieve.Definition
	tier achieve.Tier
}

type achievementsModel struct {
	ctrl   *pomodoro.Controller
	width  int
	height int

	rows   []achieveRow
	cursor int

	unlocks       map[string]achieve.Unlock
	agg           ledger.Aggregates
	notifications []achieve.Notification
}

func newAchievementsModel(c *pomodoro.Controller) achievementsModel {
	m := achievementsModel{ctrl: c, unlocks: map[string]achieve.Unlock{}}
	for _, def := range achieve.Catalog {
		for _, t := range def.Tiers {
			m.rows = append(m.rows, achieveRow{def: def, tier: t})
		}
	}
	return m
}

func (a *achievementsModel) setSize(w, h int) {
	a.width = w
	a.height = h
}

type achievementsDataMsg struct {
	unlocks       []achieve.Unlock
	agg           ledger.Aggregates
	notifications []achieve.Notification
}

func (a achievementsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		eng := a.ctrl.Engine()
		return achievementsDataMsg{
			unlocks:       eng.Unlocks(),
			agg:           a.ctrl.Ledger().Aggregates(),
			notifications: eng.Notifications(),
		}
	}
}

func (a achievementsModel) update(msg tea.Msg) (achievementsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case achievementsDataMsg:
		a.unlocks = make(map[string]achieve.Unlock, len(msg.unlocks))
		for _, u := range msg.unlocks {
			a.unlocks[u.ID] = u
		}
		a.agg = msg.agg
		a.notifications = msg.notifications
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if a.cursor > 0 {
				a.cursor--
			}
			return a, nil
		case key.Matches(msg, keys.Down):
			if a.cursor < len(a.rows)-1 {
				a.cursor++
			}
			return a, nil
		case key.Matches(msg, keys.Claim), key.Matches(msg, keys.Enter):
			return a.claimSelected()
		case key.Matches(msg, keys.Dismiss):
			if len(a.notifications) > 0 {
				a.ctrl.Engine().DismissNotification(a.notifications[0].ID)
				return a, a.refresh()
			}
			return a, nil
		case key.Matches(msg, keys.Back):
			if len(a.notifications) > 0 {
				a.ctrl.Engine().ClearAllNotifications()
				return a, a.refresh()
			}
			return a, nil
		}
	}
	return a, nil
}

func (a achievementsModel) claimSelected() (achievementsModel, tea.Cmd) {
	if a.cursor >= len(a.rows) {
		return a, nil
	}
	row := a.rows[a.cursor]
	id := achieve.UnlockID(row.def.Type, row.tier.Level)

	err := a.ctrl.Engine().Claim(id)
	if err != nil {
		text := "Nothing to claim here yet"
		if !errors.Is(err, achieve.ErrInvalidClaim) {
			text = fmt.Sprintf("Claim failed: %v", err)
		}
		return a, func() tea.Msg {
			return statusMsg{text: text, isError: true}
		}
	}
	return a, tea.Batch(
		a.refresh(),
		func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Claimed %s!", row.tier.Reward)}
		},
	)
}

func (a achievementsModel) view() string {
	w := a.width - 4

	var rows []string
	rows = append(rows, titleStyle.Render("Achievements"))
	rows = append(rows, "")

	if banner := a.renderNotifications(); banner != "" {
		rows = append(rows, banner, "")
	}

	barWidth := min(w-56, 24)
	if barWidth < 8 {
		barWidth = 8
	}

	lastType := ""
	for i, row := range a.rows {
		if row.def.Type != lastType {
			if lastType != "" {
				rows = append(rows, "")
			}
			rows = append(rows, titleStyle.Render(
				fmt.Sprintf("%s %s  ", row.def.Icon, row.def.Title))+
				mutedStyle.Render(row.def.Description))
			lastType = row.def.Type
		}
		rows = append(rows, a.renderRow(i, row, barWidth))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  ↑/↓: move  c: claim reward  d: dismiss notification"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a achievementsModel) renderRow(i int, row achieveRow, barWidth int) string {
	id := achieve.UnlockID(row.def.Type, row.tier.Level)
	unlock, unlocked := a.unlocks[id]
	prog := a.ctrl.Engine().ProgressFor(row.def.Type, row.tier.Level, a.agg)

	cursor := "  "
	style := normalItemStyle
	if i == a.cursor {
		cursor = "> "
		style = selectedItemStyle
	}

	var state string
	switch {
	case unlocked && unlock.Claimed:
		state = goldStyle.Render("★ claimed")
	case unlocked:
		state = successStyle.Render("✓ claim me")
	default:
		state = mutedStyle.Render(fmt.Sprintf("%.0f/%.0f", prog.Current, prog.Required))
	}

	bar := renderBar(prog.Percentage, barWidth)
	line := fmt.Sprintf("%sLevel %d  %-16s %s %s",
		cursor, row.tier.Level, row.tier.Reward, bar, state)
	return style.Render(line)
}

func (a achievementsModel) renderNotifications() string {
	if len(a.notifications) == 0 {
		return ""
	}
	n := a.notifications[0]
	extra := ""
	if len(a.notifications) > 1 {
		extra = mutedStyle.Render(fmt.Sprintf("  (+%d more)", len(a.notifications)-1))
	}
	body := fmt.Sprintf("%s %s — %s%s", n.Icon, n.Title, n.Message, extra)
	return activePanelStyle.Render(strings.TrimSpace(body))
}
