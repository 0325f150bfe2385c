package cmd

import "github.com/charmbracelet/lipgloss"

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var failStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

// status renders a fixed-width OK/FAIL/WARN marker.
func status(ok bool) string {
	if ok {
		return successStyle.Render("OK  ")
	}
	return failStyle.Render("FAIL")
}
