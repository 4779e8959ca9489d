package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tabstone-dev/tabstone/internal/session"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	windowStyle  = lipgloss.NewStyle().Bold(true)
	closedStyle  = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// Summary renders a styled terminal overview of the recovered session.
func Summary(m *session.Model) string {
	var b strings.Builder

	windows := m.Windows()
	tabs := m.Tabs()
	navCount := 0
	for _, t := range tabs {
		navCount += len(t.Navigations())
	}
	b.WriteString(headingStyle.Render("Recovered session"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d windows, %d tabs, %d navigations",
		len(windows), len(tabs), navCount)))
	b.WriteString("\n\n")

	attached := make(map[session.TabID]bool)
	for _, w := range windows {
		name := fmt.Sprintf("Window %d", w.ID)
		if w.AppName != "" {
			name += " (" + w.AppName + ")"
		}
		line := windowStyle.Render(name)
		if w.Closed {
			line = closedStyle.Render(name + " [closed]")
		}
		if w.Active {
			line += dimStyle.Render(" active")
		}
		b.WriteString(line + "\n")

		for _, id := range w.TabIDs {
			attached[id] = true
			writeTabLine(&b, m.Tab(id), "  ")
		}
	}

	orphans := 0
	for _, t := range tabs {
		if !attached[t.ID] {
			orphans++
		}
	}
	if orphans > 0 {
		b.WriteString(windowStyle.Render(fmt.Sprintf("Orphan tabs (%d)", orphans)) +
			dimStyle.Render("  no window assignment observed") + "\n")
		for _, t := range tabs {
			if !attached[t.ID] {
				writeTabLine(&b, t, "  ")
			}
		}
	}

	if diags := m.Diagnostics(); len(diags) > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("%d record(s) skipped", len(diags))) + "\n")
		for _, d := range diags {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  offset %d: %s %s", d.Offset, d.Kind, d.Detail)) + "\n")
		}
	}

	return b.String()
}

func writeTabLine(b *strings.Builder, t *session.Tab, indent string) {
	if t == nil {
		return
	}
	current := currentURL(t)
	label := fmt.Sprintf("Tab %d", t.ID)
	if t.Pinned {
		label += " [pinned]"
	}
	if t.Closed {
		label = closedStyle.Render(label + " [closed]")
	}
	b.WriteString(fmt.Sprintf("%s%s  %s %s\n",
		indent, label, urlStyle.Render(current),
		dimStyle.Render(fmt.Sprintf("(%d navigations)", len(t.Navigations())))))
}

// currentURL picks the active navigation's URL, falling back to the highest
// recorded index when no selection command was observed.
func currentURL(t *session.Tab) string {
	if e := t.NavigationAt(t.ActiveNavigation); e != nil {
		return e.URL
	}
	navs := t.Navigations()
	if len(navs) == 0 {
		return "(no navigations recovered)"
	}
	return navs[len(navs)-1].URL
}
