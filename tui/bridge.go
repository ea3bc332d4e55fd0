// ABOUTME: Bridge connecting the ingestion pipeline to the Bubble Tea message loop.
// ABOUTME: Its methods match the store, scheduler, and stream client callback signatures so wiring is direct.

package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/spyglass/stream"
	"github.com/2389-research/spyglass/trace"
)

// Bridge wraps a tea.Program's Send method for injecting pipeline events
// into the Bubble Tea message loop. Typically constructed with program.Send.
type Bridge struct {
	send func(msg tea.Msg)
}

// NewBridge creates a Bridge that sends messages via the given function.
func NewBridge(send func(msg tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

// OnUpdate forwards a store update. Wire to a Store subscription.
func (b *Bridge) OnUpdate(u trace.Update) {
	b.send(StoreUpdateMsg{Update: u})
}

// OnLane forwards a playback highlight. Matches SchedulerConfig.OnLane.
func (b *Bridge) OnLane(lane trace.Lane) {
	b.send(LanePulseMsg{Lane: lane})
}

// OnClear forwards the end of a playback sequence. Matches SchedulerConfig.OnClear.
func (b *Bridge) OnClear() {
	b.send(LaneClearMsg{})
}

// OnStatus forwards a connectivity transition. Matches stream.Config.OnStatus.
func (b *Bridge) OnStatus(s stream.Status, detail string) {
	b.send(StatusMsg{Status: s, Detail: detail})
}

// OnStreamError forwards a server stream error. Matches stream.Config.OnStreamError.
func (b *Bridge) OnStreamError(message string) {
	b.send(StreamErrorMsg{Message: message})
}

// PumpUpdatesCmd returns a tea.Cmd that blocks on a store subscription and
// forwards the next update, re-arming itself until the channel closes.
func PumpUpdatesCmd(ch <-chan trace.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return StoreUpdateMsg{Update: u}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(interval)
		return TickMsg{Time: time.Now()}
	}
}
