// ABOUTME: Scrollable task list panel showing each task's color tag, description, and lane bar.
// ABOUTME: The lane bar reflects reached checkpoints; playback pulses highlight one lane at a time.

package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/spyglass/trace"
)

// laneGlyphs abbreviates the canonical lanes for the bar display.
var laneGlyphs = map[trace.Lane]string{
	trace.LaneThoughtStart:     "TS",
	trace.LaneSnapshotContext:  "SC",
	trace.LaneDMAResults:       "DM",
	trace.LaneASPDMAResult:     "AS",
	trace.LaneConscienceResult: "CO",
	trace.LaneActionResult:     "AR",
}

// TaskPanelModel lists reconstructed tasks with their pipeline progress.
type TaskPanelModel struct {
	tasks    []trace.TaskSnapshot
	selected int
	pulse    trace.Lane
	focused  bool
	width    int
	height   int
}

// NewTaskPanelModel creates an empty task panel.
func NewTaskPanelModel() TaskPanelModel {
	return TaskPanelModel{pulse: trace.LaneNone, focused: true}
}

// SetTasks replaces the task list, keeping the selection on the same task
// where possible.
func (m *TaskPanelModel) SetTasks(tasks []trace.TaskSnapshot) {
	var selectedID string
	if m.selected >= 0 && m.selected < len(m.tasks) {
		selectedID = m.tasks[m.selected].ID
	}
	m.tasks = tasks
	m.selected = 0
	for i, t := range tasks {
		if t.ID == selectedID {
			m.selected = i
			break
		}
	}
}

// Len returns the number of listed tasks.
func (m TaskPanelModel) Len() int {
	return len(m.tasks)
}

// Selected returns the currently selected task, if any.
func (m TaskPanelModel) Selected() (trace.TaskSnapshot, bool) {
	if m.selected < 0 || m.selected >= len(m.tasks) {
		return trace.TaskSnapshot{}, false
	}
	return m.tasks[m.selected], true
}

// MoveUp moves the selection one row up.
func (m *TaskPanelModel) MoveUp() {
	if m.selected > 0 {
		m.selected--
	}
}

// MoveDown moves the selection one row down.
func (m *TaskPanelModel) MoveDown() {
	if m.selected < len(m.tasks)-1 {
		m.selected++
	}
}

// SetPulse highlights one lane across all lane bars.
func (m *TaskPanelModel) SetPulse(lane trace.Lane) {
	m.pulse = lane
}

// ClearPulse removes the playback highlight.
func (m *TaskPanelModel) ClearPulse() {
	m.pulse = trace.LaneNone
}

// SetFocused sets whether this panel accepts keyboard input.
func (m *TaskPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// SetSize sets the available dimensions.
func (m *TaskPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// View renders the task panel.
func (m TaskPanelModel) View() string {
	title := "TASKS"
	if m.focused {
		title = "TASKS (focused)"
	}

	var rows []string
	if len(m.tasks) == 0 {
		rows = append(rows, DimStyle.Render("no tasks observed yet"))
	}
	for i, t := range m.tasks {
		row := m.renderRow(t)
		if i == m.selected {
			row = SelectedStyle.Render(row)
		}
		rows = append(rows, row)
	}

	content := TitleStyle.Render(title) + "\n" + strings.Join(rows, "\n")
	return BorderStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPanelModel) renderRow(t trace.TaskSnapshot) string {
	dot := TaskColorStyle(t.Color).Render("●")
	bar := m.renderLaneBar(reachedLanes(t))

	badges := ""
	if t.LocallyOriginated {
		badges += " " + LocalBadgeStyle.Render("local")
	}
	if t.Completed {
		badges += " " + DoneBadgeStyle.Render("done")
	}

	desc := t.Description
	if desc == "" {
		desc = DimStyle.Render("(no description)")
	}
	desc = truncate(desc, 40)

	return fmt.Sprintf("%s %s  %s  %s%s", dot, truncate(t.ID, 12), bar, desc, badges)
}

// renderLaneBar draws one cell per canonical lane: dim when unreached, green
// when reached, and amber when it is the current playback pulse.
func (m TaskPanelModel) renderLaneBar(reached map[trace.Lane]bool) string {
	cells := make([]string, 0, len(trace.CanonicalLanes))
	for _, lane := range trace.CanonicalLanes {
		glyph := laneGlyphs[lane]
		switch {
		case lane == m.pulse:
			cells = append(cells, LanePulseStyle.Render(glyph))
		case reached[lane]:
			cells = append(cells, LaneReachedStyle.Render(glyph))
		default:
			cells = append(cells, LaneIdleStyle.Render(glyph))
		}
	}
	return strings.Join(cells, " ")
}

// reachedLanes unions lane progress across all of a task's thoughts.
func reachedLanes(t trace.TaskSnapshot) map[trace.Lane]bool {
	out := make(map[trace.Lane]bool)
	for _, th := range t.Thoughts {
		for _, lane := range th.LanesReached {
			out[lane] = true
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
