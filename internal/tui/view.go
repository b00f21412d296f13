package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
)

const titleWidth = 60

func renderListView(b *board, selected int, spin string, width int) string {
	var out strings.Builder

	st := b.status
	header := fmt.Sprintf("copilot-monitor │ %d PRs │ %d active%s │ %d working │ ⏱ %s",
		st.TotalItems, st.Active, activeCadence(st.ActiveInterval), st.Working, sessionTime(st.SessionTime))
	out.WriteString(headerStyle.Render(header))
	out.WriteString("\n")

	out.WriteString(sectionStyle.Render("📦 Copilot Pull Requests"))
	out.WriteString("\n")
	out.WriteString(renderTree(b.groups(), selected, width))

	if len(b.logs) > 0 {
		out.WriteString("\n")
		for _, l := range b.logs {
			out.WriteString(logStyle.Render(truncate(l, width)))
			out.WriteString("\n")
		}
	}

	footer := fmt.Sprintf("%s │ ↑↓ select  enter details  r:refresh  q:quit", refreshLine(st, spin))
	out.WriteString(footerStyle.Render(footer))
	return out.String()
}

func renderTree(groups []repoGroup, selected, width int) string {
	if len(groups) == 0 {
		return emptyStyle.Render("  (no Copilot pull requests found)") + "\n"
	}

	var b strings.Builder
	idx := 0
	for i, g := range groups {
		isLast := i == len(groups)-1
		prefix := "├─"
		childPrefix := "│  "
		if isLast {
			prefix = "└─"
			childPrefix = "   "
		}

		b.WriteString(treeRepoStyle.Render(fmt.Sprintf("%s 🔧 %s [%d PRs]", prefix, g.repo, len(g.items))))
		b.WriteString("\n")

		for j, it := range g.items {
			prPrefix := "├─"
			if j == len(g.items)-1 {
				prPrefix = "└─"
			}

			line := fmt.Sprintf("%s%s %s #%d %s", childPrefix, prPrefix, ciIcon(it.CI), it.Number, titleOf(it))
			if idx == selected {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(treePRStyle.Render(line))
			}
			b.WriteString("  ")
			b.WriteString(stateStyle(it.Descriptor.Color).Render(it.Descriptor.Icon + " " + it.Descriptor.Label))
			if it.SessionCount > 0 {
				b.WriteString(labelStyle.Render(fmt.Sprintf(" [%d sessions, %s]", it.SessionCount, monitor.FormatSessionTime(it.SessionTime))))
			}
			b.WriteString("\n")

			if it.Diagnostics != "" {
				b.WriteString(lipgloss.NewStyle().Foreground(colorFailing).Render(
					truncate(childPrefix+"     "+it.Diagnostics, width)))
				b.WriteString("\n")
			}
			idx++
		}
	}
	return b.String()
}

func renderDetailView(it monitor.ItemStatus) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s │ %s", it.Key, titleOf(it))))
	b.WriteString("\n\n")

	row := func(label, value string, style lipgloss.Style) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(style.Render(value))
		b.WriteString("\n")
	}

	plain := treePRStyle
	row("URL", it.URL, plain)
	prState := it.PRState
	if it.Draft {
		prState += " (draft)"
	}
	row("PR", prState, plain)
	row("Lifecycle", it.Descriptor.Icon+" "+it.Descriptor.Label, stateStyle(it.Descriptor.Color))
	row("", it.Descriptor.Message, labelStyle)
	row("CI", ciIcon(it.CI)+" "+string(it.CI), lipgloss.NewStyle().Foreground(ciColor(it.CI)))
	row("Refresh", string(it.Class), plain)
	row("Sessions", fmt.Sprintf("%d (%s)", it.SessionCount, monitor.FormatSessionTime(it.SessionTime)), plain)
	if !it.UpdatedAt.IsZero() {
		row("Updated", it.UpdatedAt.Local().Format(time.DateTime), plain)
	}
	if it.Diagnostics != "" {
		row("Failures", it.Diagnostics, lipgloss.NewStyle().Foreground(colorFailing))
	}

	b.WriteString(footerStyle.Render("esc:back  r:refresh  q:quit"))
	return b.String()
}

func refreshLine(st monitor.AggregateStatus, spin string) string {
	next := st.NextRefresh
	if next == "" {
		next = "waiting for first sync"
	}
	if spin != "" {
		next = spin + " " + next
	}
	if st.LastSync.IsZero() {
		return next
	}
	return fmt.Sprintf("Last sync: %s │ %s", st.LastSync.Local().Format(time.TimeOnly), next)
}

func activeCadence(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf(" (every %s)", d)
}

func sessionTime(s string) string {
	if s == "" {
		return "00:00:00"
	}
	return s
}

func titleOf(it monitor.ItemStatus) string {
	title := it.Title
	if title == "" {
		title = "(untitled)"
	}
	if runewidth.StringWidth(title) > titleWidth {
		title = runewidth.Truncate(title, titleWidth-3, "...")
	}
	return title
}

func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
