package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type providerStats struct {
	name     string
	sent     int
	failed   int
	degraded int
}

// OverviewModel shows delivery totals and a per-provider breakdown.
type OverviewModel struct {
	sent, failed, degraded int
	providers              []providerStats
	width, height          int
}

// SetEntries recomputes the totals.
func (o *OverviewModel) SetEntries(entries []entryView) {
	o.sent, o.failed, o.degraded = 0, 0, 0
	byName := map[string]*providerStats{}
	for _, e := range entries {
		ps, ok := byName[e.provider]
		if !ok {
			ps = &providerStats{name: e.provider}
			byName[e.provider] = ps
		}
		if e.ok {
			o.sent++
			ps.sent++
		} else {
			o.failed++
			ps.failed++
		}
		if e.degraded {
			o.degraded++
			ps.degraded++
		}
	}
	o.providers = o.providers[:0]
	for _, ps := range byName {
		o.providers = append(o.providers, *ps)
	}
	sort.Slice(o.providers, func(i, j int) bool { return o.providers[i].name < o.providers[j].name })
}

func (o *OverviewModel) SetSize(w, h int) {
	o.width = w
	o.height = h
}

func (o OverviewModel) View() string {
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		counter("Sent", o.sent, okStyle),
		counter("Failed", o.failed, failStyle),
		counter("Degraded", o.degraded, degradedStyle),
	)

	var b strings.Builder
	for _, ps := range o.providers {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(16).Foreground(ink).Render(truncate(ps.name, 15)),
			lipgloss.NewStyle().Width(10).Render(okStyle.Render(fmt.Sprintf("%d", ps.sent))),
			lipgloss.NewStyle().Width(10).Render(failStyle.Render(fmt.Sprintf("%d", ps.failed))),
			degradedStyle.Render(fmt.Sprintf("%d", ps.degraded)),
		))
		b.WriteString("\n")
	}
	rows := b.String()
	if rows == "" {
		rows = dimStyle.Render("No deliveries yet. Run: tasknotify serve\n")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, o.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("By Provider"),
				dimStyle.Render("Provider        Sent      Failed    Degraded"),
				rows,
			),
		),
	)
}

func counter(label string, n int, style lipgloss.Style) string {
	return boxStyle.Width(18).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Render(fmt.Sprintf("%d", n)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}
