package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles for the dashboard TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	onlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // green

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // red

	daemonDeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

// renderView renders the entire view.
func (m Model) renderView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fleet Dashboard"))
	if m.snap != nil {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  %s", m.snap.Hostname)))
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if m.snap != nil {
		b.WriteString(fmt.Sprintf("%s  %s  %s",
			onlineStyle.Render(fmt.Sprintf("%d online", m.snap.Counts.Online)),
			offlineStyle.Render(fmt.Sprintf("%d offline", m.snap.Counts.Offline)),
			helpStyle.Render(fmt.Sprintf("%d flagged", m.snap.Counts.Flagged)),
		))
		if !m.snap.DaemonAlive {
			b.WriteString("  ")
			b.WriteString(daemonDeadStyle.Render("⚠ daemon not running"))
		}
		b.WriteString("\n\n")
	}

	if m.snap == nil && m.err == nil {
		b.WriteString("Loading...\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.View(m.keys))
	} else {
		b.WriteString(helpStyle.Render("j/k:navigate  r:refresh  q:quit  ?:help"))
	}

	return b.String()
}
