package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DeliveriesModel lists individual deliveries with a failed-only filter.
type DeliveriesModel struct {
	entries    []entryView
	onlyFailed bool
	cursor     int
	width      int
	height     int
}

func (d *DeliveriesModel) SetEntries(entries []entryView) {
	d.entries = entries
	d.clamp()
}

func (d *DeliveriesModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

// HandleKey applies navigation and filter keys.
func (d DeliveriesModel) HandleKey(key string) DeliveriesModel {
	switch key {
	case "j", "down":
		d.cursor++
	case "k", "up":
		d.cursor--
	case "f":
		d.onlyFailed = true
		d.cursor = 0
	case "0":
		d.onlyFailed = false
		d.cursor = 0
	}
	d.clamp()
	return d
}

func (d DeliveriesModel) visible() []entryView {
	if !d.onlyFailed {
		return d.entries
	}
	out := make([]entryView, 0, len(d.entries))
	for _, e := range d.entries {
		if !e.ok {
			out = append(out, e)
		}
	}
	return out
}

func (d *DeliveriesModel) clamp() {
	n := len(d.visible())
	if d.cursor >= n {
		d.cursor = n - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

func (d DeliveriesModel) View() string {
	rows := d.visible()
	limit := max(5, d.height-10)
	start := 0
	if d.cursor >= limit {
		start = d.cursor - limit + 1
	}

	var b strings.Builder
	for i := start; i < len(rows) && i < start+limit; i++ {
		b.WriteString(d.renderRow(i, rows[i]))
	}
	body := b.String()
	if body == "" {
		body = dimStyle.Render("Nothing to show.\n")
	}

	failed := 0
	for _, e := range d.entries {
		if !e.ok {
			failed++
		}
	}
	filterBar := lipgloss.JoinHorizontal(lipgloss.Left,
		d.chip(fmt.Sprintf("All %d", len(d.entries)), !d.onlyFailed, "0"),
		" ",
		d.chip(fmt.Sprintf("Failed %d", failed), d.onlyFailed, "f"),
		"  ",
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
	)

	return panelStyle.Width(max(20, d.width-2)).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("Deliveries"),
			filterBar,
			"",
			dimStyle.Render("  Time                 Event                        Provider    Result     Detail"),
			body,
			"",
			dimStyle.Render("j/k navigate  f failed  0 all"),
		),
	)
}

func (d DeliveriesModel) renderRow(idx int, e entryView) string {
	cursor := " "
	if idx == d.cursor {
		cursor = "▌"
	}
	label, style := outcome(e)
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(2).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(21).Foreground(slate).Render(truncate(e.when, 19)),
		lipgloss.NewStyle().Width(29).Foreground(ink).Render(truncate(e.event, 27)),
		lipgloss.NewStyle().Width(12).Foreground(slate).Render(truncate(e.provider, 11)),
		lipgloss.NewStyle().Width(11).Render(style.Render(label)),
		dimStyle.Render(truncate(e.detail, 48)),
	)
	if idx == d.cursor {
		return selectedRowStyle.Width(max(20, d.width-6)).Render(row) + "\n"
	}
	return row + "\n"
}

func (d DeliveriesModel) chip(text string, active bool, key string) string {
	if active {
		return activeChipStyle.Render(text)
	}
	return chipStyle.Render(text + " [" + key + "]")
}
