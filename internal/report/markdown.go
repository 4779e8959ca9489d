package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/tabstone-dev/tabstone/internal/session"
)

// Markdown builds a markdown report of the recovered session, suitable for
// writing to disk or rendering with RenderMarkdown.
func Markdown(m *session.Model) string {
	var b strings.Builder

	b.WriteString("# Session report\n\n")
	b.WriteString(fmt.Sprintf("- Windows: %d\n", len(m.Windows())))
	b.WriteString(fmt.Sprintf("- Tabs: %d\n", len(m.Tabs())))
	b.WriteString(fmt.Sprintf("- Skipped records: %d\n\n", len(m.Diagnostics())))

	for _, w := range m.Windows() {
		title := fmt.Sprintf("## Window %d", w.ID)
		if w.Closed {
			title += " (closed)"
		}
		b.WriteString(title + "\n\n")
		if w.AppName != "" {
			b.WriteString(fmt.Sprintf("App name: `%s`\n\n", w.AppName))
		}
		for _, id := range w.TabIDs {
			writeTabSection(&b, m.Tab(id))
		}
	}

	attached := make(map[session.TabID]bool)
	for _, w := range m.Windows() {
		for _, id := range w.TabIDs {
			attached[id] = true
		}
	}
	var orphans []*session.Tab
	for _, t := range m.Tabs() {
		if !attached[t.ID] {
			orphans = append(orphans, t)
		}
	}
	if len(orphans) > 0 {
		b.WriteString("## Orphan tabs\n\n")
		for _, t := range orphans {
			writeTabSection(&b, t)
		}
	}

	if diags := m.Diagnostics(); len(diags) > 0 {
		b.WriteString("## Skipped records\n\n")
		b.WriteString("| Offset | Kind | Detail |\n|---|---|---|\n")
		for _, d := range diags {
			b.WriteString(fmt.Sprintf("| %d | %s | %s |\n", d.Offset, d.Kind, d.Detail))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeTabSection(b *strings.Builder, t *session.Tab) {
	if t == nil {
		return
	}
	heading := fmt.Sprintf("### Tab %d", t.ID)
	if t.Closed {
		heading += " (closed)"
	}
	b.WriteString(heading + "\n\n")
	navs := t.Navigations()
	if len(navs) == 0 {
		b.WriteString("No navigations recovered.\n\n")
		return
	}
	b.WriteString("| Index | Title | URL | Timestamp |\n|---|---|---|---|\n")
	for _, e := range navs {
		marker := ""
		if e.Index == t.ActiveNavigation {
			marker = " **(current)**"
		}
		b.WriteString(fmt.Sprintf("| %d%s | %s | %s | %s |\n",
			e.Index, marker, escapeCell(e.Title), escapeCell(e.URL), formatTime(e.Timestamp)))
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}

// RenderMarkdown renders markdown for terminal display. On renderer failure
// the raw markdown is returned so the report is never lost.
func RenderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(110),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
