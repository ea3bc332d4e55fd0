// ABOUTME: Top-level Bubble Tea AppModel composing the task list, detail panel, and status bar.
// ABOUTME: Implements tea.Model (Init, Update, View) and refreshes from the store on update messages.

package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/spyglass/trace"
)

// AppModel is the top-level Bubble Tea model for the live viewer.
type AppModel struct {
	store   *trace.Store
	updates <-chan trace.Update

	tasks     TaskPanelModel
	detail    DetailPanelModel
	statusBar StatusBarModel

	width  int
	height int
}

// NewAppModel creates the viewer over the given store. The updates channel is
// a store subscription pumped into the message loop; it may be nil when the
// owner injects StoreUpdateMsg via a Bridge instead.
func NewAppModel(store *trace.Store, updates <-chan trace.Update) AppModel {
	return AppModel{
		store:     store,
		updates:   updates,
		tasks:     NewTaskPanelModel(),
		detail:    NewDetailPanelModel(),
		statusBar: NewStatusBarModel(),
	}
}

// Init starts the update pump and the refresh tick.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{TickCmd(time.Second)}
	if m.updates != nil {
		cmds = append(cmds, PumpUpdatesCmd(m.updates))
	}
	return tea.Batch(cmds...)
}

// Update routes messages to the sub-panels.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.tasks.MoveUp()
			m.syncDetail()
		case "down", "j":
			m.tasks.MoveDown()
			m.syncDetail()
		case "pgup":
			m.detail.ScrollUp()
		case "pgdown":
			m.detail.ScrollDown()
		}
		return m, nil

	case StoreUpdateMsg:
		m.refresh()
		if m.updates != nil {
			return m, PumpUpdatesCmd(m.updates)
		}
		return m, nil

	case LanePulseMsg:
		m.tasks.SetPulse(msg.Lane)
		return m, nil

	case LaneClearMsg:
		m.tasks.ClearPulse()
		return m, nil

	case StatusMsg:
		m.statusBar.SetStatus(msg.Status, msg.Detail)
		return m, nil

	case StreamErrorMsg:
		m.statusBar.SetError(msg.Message)
		return m, nil

	case TickMsg:
		return m, TickCmd(time.Second)
	}

	return m, nil
}

// View renders the full layout: task list and detail side by side, status
// bar at the bottom.
func (m AppModel) View() string {
	if m.width == 0 {
		return "starting viewer..."
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.tasks.View(), m.detail.View())
	return top + "\n" + m.statusBar.View()
}

// refresh re-snapshots the store into the panels.
func (m *AppModel) refresh() {
	snap := m.store.Snapshot()
	m.tasks.SetTasks(snap)

	completed := 0
	for _, t := range snap {
		if t.Completed {
			completed++
		}
	}
	m.statusBar.SetCounts(len(snap), completed)
	m.syncDetail()
}

func (m *AppModel) syncDetail() {
	if sel, ok := m.tasks.Selected(); ok {
		m.detail.SetTask(&sel)
		return
	}
	m.detail.SetTask(nil)
}

func (m *AppModel) layout() {
	barHeight := 1
	panelHeight := m.height - barHeight
	listWidth := m.width * 3 / 5

	m.tasks.SetSize(listWidth, panelHeight)
	m.detail.SetSize(m.width-listWidth, panelHeight)
	m.statusBar.SetWidth(m.width)
}
