// ABOUTME: Single-line status bar showing stream connectivity, task counts, and the last stream error.
// ABOUTME: Connectivity is surfaced as text state transitions, never as a crash of the viewer.

package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/spyglass/stream"
)

// StatusBarModel displays connection and reconstruction state in one line.
type StatusBarModel struct {
	status    stream.Status
	detail    string
	tasks     int
	completed int
	lastError string
	width     int
}

// NewStatusBarModel creates a status bar in the connecting state.
func NewStatusBarModel() StatusBarModel {
	return StatusBarModel{status: stream.StatusConnecting}
}

// SetStatus updates the connectivity state.
func (m *StatusBarModel) SetStatus(s stream.Status, detail string) {
	m.status = s
	m.detail = detail
}

// SetCounts updates the task totals.
func (m *StatusBarModel) SetCounts(tasks, completed int) {
	m.tasks = tasks
	m.completed = completed
}

// SetError records the most recent server stream error.
func (m *StatusBarModel) SetError(msg string) {
	m.lastError = msg
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Status returns the current connectivity state.
func (m StatusBarModel) Status() stream.Status {
	return m.status
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	state := string(m.status)
	if m.detail != "" {
		state = fmt.Sprintf("%s (%s)", state, m.detail)
	}

	content := fmt.Sprintf("Stream: %s | %d tasks, %d done", state, m.tasks, m.completed)
	if m.lastError != "" {
		content += " | " + ErrorStyle.Render("err: "+truncate(m.lastError, 40))
	}

	style := StatusBarStyle.Width(m.width)
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
