package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/copilot-monitor/internal/monitor"
)

// Refresher is asked for an immediate full sync when the user presses r.
type Refresher interface {
	RequestFullSync()
}

type viewMode int

const (
	viewModeList viewMode = iota
	viewModeDetail
)

type Model struct {
	refresher Refresher
	board     board
	mode      viewMode
	selected  int // -1 = none, otherwise index in board.ordered()
	spinner   spinner.Model
	spinning  bool
	width     int
}

func NewModel(refresher Refresher) Model {
	return Model{
		refresher: refresher,
		mode:      viewModeList,
		selected:  -1,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.board.replace(msg)
		m.clampSelection()

	case itemMsg:
		m.board.upsert(monitor.ItemStatus(msg))
		m.clampSelection()

	case statusMsg:
		m.board.status = monitor.AggregateStatus(msg)
		if m.board.status.Syncing && !m.spinning {
			m.spinning = true
			return m, m.spinner.Tick
		}

	case logMsg:
		m.board.log(string(msg))

	case spinner.TickMsg:
		if !m.board.status.Syncing {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		if m.refresher != nil {
			m.refresher.RequestFullSync()
		}
		return m, nil
	}

	items := m.board.ordered()
	switch m.mode {
	case viewModeList:
		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(items)-1 {
				m.selected++
			}
		case "enter", " ":
			if m.selected >= 0 && m.selected < len(items) {
				m.mode = viewModeDetail
			}
		}

	case viewModeDetail:
		switch msg.String() {
		case "esc", "enter", " ":
			m.mode = viewModeList
		}
	}
	return m, nil
}

// clampSelection keeps the selection on an existing item.
func (m *Model) clampSelection() {
	n := len(m.board.items)
	if m.selected == -1 && n > 0 {
		m.selected = 0
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.mode = viewModeList
	}
}

func (m Model) View() string {
	items := m.board.ordered()
	if m.mode == viewModeDetail && m.selected >= 0 && m.selected < len(items) {
		return renderDetailView(items[m.selected])
	}
	return renderListView(&m.board, m.selected, m.spinnerView(), m.width)
}

func (m Model) spinnerView() string {
	if !m.board.status.Syncing {
		return ""
	}
	return m.spinner.View()
}
