// Package tui is the terminal dashboard over the delivery history.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source is the read side of the delivery history.
type Source interface {
	List(ctx context.Context, f history.Filter) ([]history.Entry, error)
}

// Tab represents a TUI navigation tab.
type Tab int

const (
	TabOverview Tab = iota
	TabDeliveries
)

var tabNames = []string{"Overview", "Deliveries"}

const (
	refreshEvery = 10 * time.Second
	loadLimit    = 500
)

// entryView is the display form of one history row.
type entryView struct {
	when     string
	event    string
	provider string
	ok       bool
	degraded bool
	detail   string
}

type loadedMsg struct {
	entries []entryView
	err     error
	at      time.Time
}

type tickMsg struct{}

// App is the root bubbletea model.
type App struct {
	src       Source
	width     int
	height    int
	activeTab Tab
	overview  OverviewModel
	list      DeliveriesModel
	loadErr   error
	lastLoad  time.Time
}

// NewApp creates the TUI application.
func NewApp(src Source) *App {
	return &App{src: src}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.loadCmd()
}

func (a *App) loadCmd() tea.Cmd {
	src := a.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rows, err := src.List(ctx, history.Filter{Limit: loadLimit})
		if err != nil {
			return loadedMsg{err: err, at: time.Now()}
		}
		out := make([]entryView, 0, len(rows))
		for _, e := range rows {
			out = append(out, entryView{
				when:     e.CreatedAt,
				event:    e.EventName,
				provider: e.ProviderType,
				ok:       e.Succeeded(),
				degraded: e.IsDegraded(),
				detail:   detailOf(e),
			})
		}
		return loadedMsg{entries: out, at: time.Now()}
	}
}

func detailOf(e history.Entry) string {
	if !e.Succeeded() {
		return e.ErrorDetail
	}
	if e.IsDegraded() {
		return "missing: " + e.Missing
	}
	return ""
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		w := max(20, msg.Width-2)
		h := max(8, msg.Height-7)
		a.overview.SetSize(w, h)
		a.list.SetSize(w, h)
		return a, nil

	case loadedMsg:
		a.lastLoad = msg.at
		a.loadErr = msg.err
		if msg.err == nil {
			a.overview.SetEntries(msg.entries)
			a.list.SetEntries(msg.entries)
		}
		return a, tea.Tick(refreshEvery, func(time.Time) tea.Msg { return tickMsg{} })

	case tickMsg:
		return a, a.loadCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "r":
			return a, a.loadCmd()
		case "1":
			a.activeTab = TabOverview
			return a, nil
		case "2":
			a.activeTab = TabDeliveries
			return a, nil
		case "tab", "shift+tab":
			a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
			return a, nil
		}
		if a.activeTab == TabDeliveries {
			a.list = a.list.HandleKey(msg.String())
		}
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var content string
	switch a.activeTab {
	case TabDeliveries:
		content = a.list.View()
	default:
		content = a.overview.View()
	}

	updated := "never"
	if !a.lastLoad.IsZero() {
		updated = a.lastLoad.Format("15:04:05")
	}
	statusText := "tab switch  1-2 jump  r refresh  q quit   updated " + updated
	if a.loadErr != nil {
		statusText = failStyle.Render("load failed: "+a.loadErr.Error()) + "   " + statusText
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		lipgloss.NewStyle().Width(a.width).Padding(0, 1).Render(a.renderTabs()),
		lipgloss.NewStyle().Width(a.width).Padding(0, 1).MaxHeight(max(1, a.height-4)).Render(content),
		lipgloss.NewStyle().Width(a.width).Padding(0, 1).Foreground(slateDim).Render(statusText),
	)
}

func (a *App) renderHeader() string {
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("tasknotify"),
		"  ",
		dimStyle.Render("delivery history"),
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func (a *App) renderTabs() string {
	parts := make([]string, 0, 2*len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d:%s", i+1, name)
		if Tab(i) == a.activeTab {
			parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(label))
		} else {
			parts = append(parts, dimStyle.Render(label))
		}
		if i < len(tabNames)-1 {
			parts = append(parts, dimStyle.Render("  ·  "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
