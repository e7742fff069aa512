package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danmuck/watchsync/internal/appsync"
)

var (
	faceStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2).
			Width(32)
	timeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	ampmStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	batteryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	weatherStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// View implements tea.Model.
func (m Model) View() string {
	v := m.view
	battery := batteryStyle.Render(v.Battery)
	clock := timeStyle.Render(strings.TrimLeft(v.Time, " ")) + " " + ampmStyle.Render(v.AMPM)
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(22).Render(clock),
		lipgloss.NewStyle().Width(6).Align(lipgloss.Right).Render(battery),
	)

	weather := "  " + v.Temperature
	if v.HasIcon {
		weather = v.Icon.Glyph + " " + v.Temperature
	}

	lines := []string{
		top,
		v.Date,
		dimStyle.Render(fmt.Sprintf("%s %s", v.ZoneLabel, strings.TrimLeft(v.ZoneTime, " "))),
		"",
		weatherStyle.Render(weather),
		dimStyle.Render(v.Location),
	}
	face := faceStyle.Render(strings.Join(lines, "\n"))

	footer := []string{dimStyle.Render(statusLine(m.syncStatus))}
	if m.refreshErr != nil {
		footer = append(footer, errStyle.Render("refresh: "+m.refreshErr.Error()))
	}
	footer = append(footer, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, face, strings.Join(footer, "\n"))
}

func statusLine(s appsync.Status) string {
	line := fmt.Sprintf("sync %s  sent %d  applied %d  dropped %d", s.State, s.RequestsSent, s.InboundApplied, s.InboundDropped)
	if !s.LastUpdate.IsZero() {
		line += "  updated " + s.LastUpdate.Format("15:04:05")
	}
	return line
}
