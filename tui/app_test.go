// ABOUTME: Tests for the top-level AppModel message routing.
// ABOUTME: Drives Update directly with domain messages, no real terminal needed.

package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/spyglass/stream"
	"github.com/2389-research/spyglass/trace"
)

func testApp(t *testing.T) (AppModel, *trace.Store) {
	t.Helper()
	store := trace.NewStore(trace.StoreConfig{})
	m := NewAppModel(store, nil)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(AppModel), store
}

func TestAppRefreshesOnStoreUpdate(t *testing.T) {
	m, store := testApp(t)

	store.Apply(trace.StageEvent{
		TaskID: "t1", ThoughtID: "th1",
		Lane: trace.LaneThoughtStart, TaskDescription: "demo task",
	})
	model, _ := m.Update(StoreUpdateMsg{})
	m = model.(AppModel)

	if m.tasks.Len() != 1 {
		t.Fatalf("task panel not refreshed: %d tasks", m.tasks.Len())
	}
	if !strings.Contains(m.View(), "demo task") {
		t.Error("view should show the reconstructed task")
	}
	// Selection follows into the detail panel.
	if m.detail.task == nil || m.detail.task.ID != "t1" {
		t.Error("detail panel should show the selected task")
	}
}

func TestAppRoutesStatusAndErrors(t *testing.T) {
	m, _ := testApp(t)

	model, _ := m.Update(StatusMsg{Status: stream.StatusReconnecting, Detail: "attempt 1 in 1s"})
	m = model.(AppModel)
	model, _ = m.Update(StreamErrorMsg{Message: "overloaded"})
	m = model.(AppModel)

	view := m.View()
	if !strings.Contains(view, "reconnecting") {
		t.Error("status transition not rendered")
	}
	if !strings.Contains(view, "overloaded") {
		t.Error("stream error not rendered")
	}
}

func TestAppPulseRouting(t *testing.T) {
	m, store := testApp(t)
	store.Apply(trace.StageEvent{TaskID: "t1", ThoughtID: "th1", Lane: trace.LaneThoughtStart})
	model, _ := m.Update(StoreUpdateMsg{})
	m = model.(AppModel)

	model, _ = m.Update(LanePulseMsg{Lane: trace.LaneDMAResults})
	m = model.(AppModel)
	if m.tasks.pulse != trace.LaneDMAResults {
		t.Errorf("pulse not routed: %q", m.tasks.pulse)
	}

	model, _ = m.Update(LaneClearMsg{})
	m = model.(AppModel)
	if m.tasks.pulse != trace.LaneNone {
		t.Errorf("pulse not cleared: %q", m.tasks.pulse)
	}
}

func TestAppQuitKeys(t *testing.T) {
	m, _ := testApp(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should produce a quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("expected tea.Quit, got %T", msg)
	}
}

func TestAppSelectionKeys(t *testing.T) {
	m, store := testApp(t)
	store.Apply(trace.StageEvent{TaskID: "t1", ThoughtID: "th1", Lane: trace.LaneThoughtStart})
	store.Apply(trace.StageEvent{TaskID: "t2", ThoughtID: "th2", Lane: trace.LaneThoughtStart})
	model, _ := m.Update(StoreUpdateMsg{})
	m = model.(AppModel)

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(AppModel)
	if sel, _ := m.tasks.Selected(); sel.ID != "t2" {
		t.Errorf("down key selection = %s", sel.ID)
	}
	if m.detail.task == nil || m.detail.task.ID != "t2" {
		t.Error("detail should track the selection")
	}
}
