package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/charmbracelet/bubbletea"
)

type fakeSource struct {
	entries []history.Entry
	err     error
}

func (f fakeSource) List(context.Context, history.Filter) ([]history.Entry, error) {
	return f.entries, f.err
}

func sampleEntries() []history.Entry {
	return []history.Entry{
		{EventName: "task.created", ProviderType: "slack", Success: 1, CreatedAt: "2024-05-01T10:00:02.000000Z"},
		{EventName: "task.created", ProviderType: "email", Success: 0, ErrorDetail: "smtp: dial failed", CreatedAt: "2024-05-01T10:00:01.000000Z"},
		{EventName: "task.updated", ProviderType: "slack", Success: 1, Degraded: 1, Missing: "project", CreatedAt: "2024-05-01T10:00:00.000000Z"},
	}
}

func load(t *testing.T, a *App) {
	t.Helper()
	msg := a.loadCmd()()
	if _, ok := msg.(loadedMsg); !ok {
		t.Fatalf("load returned %T", msg)
	}
	a.Update(msg)
}

func TestOverviewCounts(t *testing.T) {
	a := NewApp(fakeSource{entries: sampleEntries()})
	load(t, a)

	o := a.overview
	if o.sent != 2 || o.failed != 1 || o.degraded != 1 {
		t.Fatalf("totals = %d/%d/%d, want 2/1/1", o.sent, o.failed, o.degraded)
	}
	if len(o.providers) != 2 || o.providers[0].name != "email" || o.providers[1].sent != 2 {
		t.Fatalf("providers = %+v", o.providers)
	}
}

func TestDeliveriesFilterAndCursor(t *testing.T) {
	a := NewApp(fakeSource{entries: sampleEntries()})
	load(t, a)
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	if a.activeTab != TabDeliveries {
		t.Fatalf("tab = %d", a.activeTab)
	}

	for i := 0; i < 5; i++ {
		a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	}
	if a.list.cursor != 2 {
		t.Fatalf("cursor = %d, want clamped to 2", a.list.cursor)
	}

	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if got := a.list.visible(); len(got) != 1 || got[0].provider != "email" || a.list.cursor != 0 {
		t.Fatalf("failed filter = %+v cursor %d", got, a.list.cursor)
	}
	if got := a.list.visible()[0].detail; got != "smtp: dial failed" {
		t.Fatalf("detail = %q", got)
	}

	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0")})
	if len(a.list.visible()) != 3 {
		t.Fatalf("all filter shows %d", len(a.list.visible()))
	}
}

func TestViewRendersRows(t *testing.T) {
	a := NewApp(fakeSource{entries: sampleEntries()})
	a.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	load(t, a)

	view := a.View()
	for _, want := range []string{"tasknotify", "By Provider", "email", "slack"} {
		if !strings.Contains(view, want) {
			t.Errorf("overview missing %q", want)
		}
	}

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	view = a.View()
	for _, want := range []string{"task.updated", "FAILED", "DEGRADED", "missing: project"} {
		if !strings.Contains(view, want) {
			t.Errorf("deliveries missing %q", want)
		}
	}
}

func TestLoadErrorKeepsPreviousRows(t *testing.T) {
	src := &fakeSource{entries: sampleEntries()}
	a := NewApp(src)
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	load(t, a)

	a.src = fakeSource{err: errors.New("database is locked")}
	load(t, a)
	if a.loadErr == nil || len(a.list.entries) != 3 {
		t.Fatalf("err=%v entries=%d", a.loadErr, len(a.list.entries))
	}
	if !strings.Contains(a.View(), "database is locked") {
		t.Fatalf("view does not show load error")
	}
}

func TestQuitKey(t *testing.T) {
	a := NewApp(fakeSource{})
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}
