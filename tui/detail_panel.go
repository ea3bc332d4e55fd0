// ABOUTME: Detail panel showing the selected task's thoughts, stages, and last payloads.
// ABOUTME: Uses the bubbles viewport component for scrollable content.

package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/2389-research/spyglass/trace"
)

// DetailPanelModel shows the reconstruction detail of one task.
type DetailPanelModel struct {
	task     *trace.TaskSnapshot
	viewport viewport.Model
	width    int
	height   int
}

// NewDetailPanelModel creates an empty detail panel.
func NewDetailPanelModel() DetailPanelModel {
	return DetailPanelModel{viewport: viewport.New(80, 10)}
}

// SetTask updates the displayed task. A nil task clears the panel.
func (m *DetailPanelModel) SetTask(t *trace.TaskSnapshot) {
	m.task = t
	m.syncViewport()
}

// SetSize sets the available dimensions and updates the viewport.
func (m *DetailPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	vpWidth := w - 2
	vpHeight := h - 3
	if vpWidth < 1 {
		vpWidth = 1
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.syncViewport()
}

// ScrollUp scrolls the viewport up one line.
func (m *DetailPanelModel) ScrollUp() {
	m.viewport.SetYOffset(m.viewport.YOffset - 1)
}

// ScrollDown scrolls the viewport down one line.
func (m *DetailPanelModel) ScrollDown() {
	m.viewport.SetYOffset(m.viewport.YOffset + 1)
}

// View renders the detail panel.
func (m DetailPanelModel) View() string {
	title := "DETAIL"
	if m.task != nil {
		title = "DETAIL: " + truncate(m.task.ID, 24)
	}

	var content string
	if m.task == nil {
		content = DimStyle.Render("select a task")
	} else {
		content = m.viewport.View()
	}

	rendered := TitleStyle.Render(title) + "\n" + content
	return BorderStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(rendered)
}

// syncViewport rebuilds the viewport content from the current task.
func (m *DetailPanelModel) syncViewport() {
	if m.task == nil {
		m.viewport.SetContent("")
		return
	}

	var lines []string
	lines = append(lines, LabelStyle.Render("desc")+m.task.Description)
	lines = append(lines, LabelStyle.Render("color")+m.task.Color)
	lines = append(lines, LabelStyle.Render("status")+taskStatus(*m.task))

	for _, th := range m.task.Thoughts {
		lines = append(lines, "")
		lines = append(lines, TitleStyle.Render("thought "+truncate(th.ID, 24)))
		lines = append(lines, LabelStyle.Render("stage")+th.CurrentStage)

		reached := make([]string, 0, len(th.LanesReached))
		for _, lane := range th.LanesReached {
			reached = append(reached, laneGlyphs[lane])
		}
		lines = append(lines, LabelStyle.Render("lanes")+strings.Join(reached, " > "))

		if len(th.LastPayload) > 0 {
			lines = append(lines, LabelStyle.Render("payload")+formatPayload(th.LastPayload))
		}
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func taskStatus(t trace.TaskSnapshot) string {
	parts := []string{"active"}
	if t.Completed {
		parts[0] = "completed"
	}
	if t.LocallyOriginated {
		parts = append(parts, "local")
	}
	return strings.Join(parts, ", ")
}

// formatPayload renders payload fields as compact sorted key=value pairs.
func formatPayload(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return strings.Join(pairs, " ")
}
