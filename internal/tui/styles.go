package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
)

var (
	// CI colors
	colorPassing = lipgloss.Color("46")  // green
	colorFailing = lipgloss.Color("196") // red
	colorPending = lipgloss.Color("214") // orange
	colorRunning = lipgloss.Color("33")  // blue
	colorMuted   = lipgloss.Color("240") // gray

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	treeRepoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("cyan"))

	treePRStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

// stateStyle colours a lifecycle label with its descriptor colour.
func stateStyle(color string) lipgloss.Style {
	if color == "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func ciIcon(ci monitor.CIStatus) string {
	switch ci {
	case monitor.CIPassing:
		return "✅"
	case monitor.CIFailing:
		return "🔨"
	case monitor.CIPending:
		return "⏸"
	case monitor.CIRunning:
		return "⚙️"
	case monitor.CINone:
		return "·"
	default:
		return "❓"
	}
}

func ciColor(ci monitor.CIStatus) lipgloss.Color {
	switch ci {
	case monitor.CIPassing:
		return colorPassing
	case monitor.CIFailing:
		return colorFailing
	case monitor.CIPending:
		return colorPending
	case monitor.CIRunning:
		return colorRunning
	default:
		return colorMuted
	}
}
