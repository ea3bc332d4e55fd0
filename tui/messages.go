// ABOUTME: Bubble Tea message types used in the viewer message loop.
// ABOUTME: Each type wraps a domain event for the tea.Msg interface (which is interface{}).

package tui

import (
	"time"

	"github.com/2389-research/spyglass/stream"
	"github.com/2389-research/spyglass/trace"
)

// StoreUpdateMsg signals that the reconstruction store changed.
type StoreUpdateMsg struct {
	Update trace.Update
}

// LanePulseMsg highlights one pipeline lane during animation playback.
type LanePulseMsg struct {
	Lane trace.Lane
}

// LaneClearMsg ends a playback sequence and clears the highlight.
type LaneClearMsg struct{}

// StatusMsg carries a stream connectivity transition.
type StatusMsg struct {
	Status stream.Status
	Detail string
}

// StreamErrorMsg carries a server-reported stream-level error.
type StreamErrorMsg struct {
	Message string
}

// TickMsg is sent periodically to refresh relative timestamps.
type TickMsg struct {
	Time time.Time
}
