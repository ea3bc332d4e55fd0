// ABOUTME: Tests for the Bridge that injects pipeline callbacks into the message loop.
// ABOUTME: Uses a captured send function instead of a running tea.Program.

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/spyglass/stream"
	"github.com/2389-research/spyglass/trace"
)

func TestBridgeWrapsCallbacks(t *testing.T) {
	var got []tea.Msg
	b := NewBridge(func(msg tea.Msg) { got = append(got, msg) })

	b.OnUpdate(trace.Update{Kind: trace.UpdateTaskCreated, TaskID: "t1"})
	b.OnLane(trace.LaneDMAResults)
	b.OnClear()
	b.OnStatus(stream.StatusConnected, "")
	b.OnStreamError("oops")

	if len(got) != 5 {
		t.Fatalf("got %d messages, want 5", len(got))
	}
	if u, ok := got[0].(StoreUpdateMsg); !ok || u.Update.TaskID != "t1" {
		t.Errorf("message 0 = %#v", got[0])
	}
	if p, ok := got[1].(LanePulseMsg); !ok || p.Lane != trace.LaneDMAResults {
		t.Errorf("message 1 = %#v", got[1])
	}
	if _, ok := got[2].(LaneClearMsg); !ok {
		t.Errorf("message 2 = %#v", got[2])
	}
	if s, ok := got[3].(StatusMsg); !ok || s.Status != stream.StatusConnected {
		t.Errorf("message 3 = %#v", got[3])
	}
	if e, ok := got[4].(StreamErrorMsg); !ok || e.Message != "oops" {
		t.Errorf("message 4 = %#v", got[4])
	}
}

func TestPumpUpdatesCmdForwardsAndStops(t *testing.T) {
	ch := make(chan trace.Update, 1)
	ch <- trace.Update{Kind: trace.UpdateStage, TaskID: "t1"}

	msg := PumpUpdatesCmd(ch)()
	u, ok := msg.(StoreUpdateMsg)
	if !ok || u.Update.TaskID != "t1" {
		t.Fatalf("unexpected message: %#v", msg)
	}

	close(ch)
	if msg := PumpUpdatesCmd(ch)(); msg != nil {
		t.Errorf("closed channel should yield nil, got %#v", msg)
	}
}
