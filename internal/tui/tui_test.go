package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/copilot-monitor/internal/activity"
	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
)

type countingRefresher struct{ calls int }

func (r *countingRefresher) RequestFullSync() { r.calls++ }

func item(repo string, n int, title string) monitor.ItemStatus {
	return monitor.ItemStatus{
		Key:        repo + "#" + string(rune('0'+n)),
		Repo:       repo,
		Number:     n,
		Title:      title,
		URL:        "https://github.com/" + repo + "/pull/" + string(rune('0'+n)),
		PRState:    "open",
		State:      activity.StateIdle,
		Descriptor: activity.Descriptor{Label: "Idle", Message: "Nothing to do", Icon: "💤", Color: "240"},
		CI:         monitor.CIPassing,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSnapshotRendersGroupedItems(t *testing.T) {
	m := NewModel(nil)
	m, _ = update(t, m, snapshotMsg{
		item("zeta/web", 2, "Add dark mode"),
		item("acme/api", 1, "Fix flaky test"),
	})
	m, _ = update(t, m, statusMsg{TotalItems: 2, SessionTime: "01:02:03", NextRefresh: "next sync in 4m0s", ActiveInterval: 30 * time.Second})

	view := m.View()
	for _, want := range []string{"acme/api", "zeta/web", "(every 30s)", "#1 Fix flaky test", "#2 Add dark mode", "01:02:03", "next sync in 4m0s", "Idle"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "acme/api") > strings.Index(view, "zeta/web") {
		t.Errorf("repositories not sorted:\n%s", view)
	}
}

func TestEmptyBoard(t *testing.T) {
	view := NewModel(nil).View()
	if !strings.Contains(view, "no Copilot pull requests found") || !strings.Contains(view, "waiting for first sync") {
		t.Fatalf("unexpected empty view:\n%s", view)
	}
}

func TestItemUpdateReplacesByKey(t *testing.T) {
	m := NewModel(nil)
	m, _ = update(t, m, snapshotMsg{item("acme/api", 1, "Old title")})
	m, _ = update(t, m, itemMsg(item("acme/api", 1, "New title")))
	m, _ = update(t, m, itemMsg(item("acme/api", 2, "Second")))

	if len(m.board.items) != 2 {
		t.Fatalf("items = %d, want 2", len(m.board.items))
	}
	view := m.View()
	if strings.Contains(view, "Old title") || !strings.Contains(view, "New title") {
		t.Fatalf("item not replaced:\n%s", view)
	}
}

func TestSelectionAndDetailView(t *testing.T) {
	m := NewModel(nil)
	failing := item("acme/api", 2, "Broken build")
	failing.CI = monitor.CIFailing
	failing.Diagnostics = "build: 1 diagnostic (1 error) from compiler"
	failing.SessionCount = 2
	failing.SessionTime = 90 * time.Second
	m, _ = update(t, m, snapshotMsg{item("acme/api", 1, "Fine"), failing})

	if m.selected != 0 {
		t.Fatalf("selected = %d, want first item", m.selected)
	}
	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("down"))
	if m.selected != 1 {
		t.Fatalf("selection must stop at the last item, got %d", m.selected)
	}

	m, _ = update(t, m, key("enter"))
	if m.mode != viewModeDetail {
		t.Fatal("enter must open the detail view")
	}
	view := m.View()
	for _, want := range []string{"https://github.com/acme/api/pull/2", "2 (00:01:30)", "1 diagnostic (1 error)", "failing"} {
		if !strings.Contains(view, want) {
			t.Errorf("detail missing %q:\n%s", want, view)
		}
	}

	m, _ = update(t, m, key("esc"))
	if m.mode != viewModeList {
		t.Fatal("esc must return to the list")
	}

	m, _ = update(t, m, snapshotMsg{item("acme/api", 1, "Fine")})
	if m.selected != 0 {
		t.Fatalf("selection not clamped after removal: %d", m.selected)
	}
}

func TestKeysQuitAndRefresh(t *testing.T) {
	r := &countingRefresher{}
	m := NewModel(r)

	m, cmd := update(t, m, key("r"))
	if r.calls != 1 || cmd != nil {
		t.Fatalf("refresh calls=%d cmd=%v", r.calls, cmd)
	}

	_, cmd = update(t, m, key("q"))
	if cmd == nil {
		t.Fatal("q must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q produced %T", cmd())
	}
}

func TestSpinnerRunsOnlyWhileSyncing(t *testing.T) {
	m := NewModel(nil)
	m, cmd := update(t, m, statusMsg{Syncing: true, NextRefresh: "syncing"})
	if cmd == nil || !m.spinning {
		t.Fatal("sync start must start the spinner")
	}
	if _, cmd = update(t, m, statusMsg{Syncing: true, NextRefresh: "syncing"}); cmd != nil {
		t.Fatal("a running spinner must not be started twice")
	}

	m, _ = update(t, m, statusMsg{NextRefresh: "next sync in 5m0s"})
	m, cmd = update(t, m, m.spinner.Tick())
	if cmd != nil || m.spinning {
		t.Fatal("spinner must stop once the sync ends")
	}
}

func TestLogKeepsLastLines(t *testing.T) {
	m := NewModel(nil)
	for i := 0; i < maxLogLines+2; i++ {
		m, _ = update(t, m, logMsg("WARN line "+string(rune('a'+i))))
	}
	if len(m.board.logs) != maxLogLines || m.board.logs[0] != "WARN line c" {
		t.Fatalf("logs = %q", m.board.logs)
	}
}

func TestSinkQueuesInOrder(t *testing.T) {
	s := NewSink()
	s.Status(monitor.AggregateStatus{Syncing: true})
	s.ItemUpdated(item("acme/api", 1, "One"))
	s.Snapshot([]monitor.ItemStatus{item("acme/api", 1, "One")})
	s.Log("WARN gone")

	want := []string{"tui.statusMsg", "tui.itemMsg", "tui.snapshotMsg", "tui.logMsg"}
	for _, w := range want {
		msg := <-s.msgs
		if got := typeName(msg); got != w {
			t.Fatalf("got %s, want %s", got, w)
		}
	}
}

func typeName(msg tea.Msg) string {
	switch msg.(type) {
	case statusMsg:
		return "tui.statusMsg"
	case itemMsg:
		return "tui.itemMsg"
	case snapshotMsg:
		return "tui.snapshotMsg"
	case logMsg:
		return "tui.logMsg"
	}
	return "unknown"
}
