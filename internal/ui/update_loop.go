package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/nagd/internal/model"
)

type NotificationMsg struct {
	Event model.NotificationEvent
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type refreshMsg time.Time

func waitForNotificationCmd(ch <-chan model.NotificationEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return NotificationMsg{Event: ev}
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForNotificationCmd(m.events), refreshCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		if h := typed.Height - 10; h > 3 {
			m.taskTable.SetHeight(h)
		}
		m.helpModel.Width = typed.Width
		return m, nil
	case tea.KeyMsg:
		if m.CommandMode {
			return m.handleCommandKey(typed)
		}
		return m.handleKey(typed)
	case NotificationMsg:
		m.pushFeed(typed.Event)
		m.refreshRows()
		return m, waitForNotificationCmd(m.events)
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case refreshMsg:
		m.refreshRows()
		return m, refreshCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Command):
		m.CommandMode = true
		m.commandInput.SetValue("")
		return m, m.commandInput.Focus()
	case key.Matches(msg, m.keys.Help):
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case key.Matches(msg, m.keys.Notify):
		return m.run("notify")
	case key.Matches(msg, m.keys.Toggle):
		t, ok := m.selectedTask()
		if !ok {
			m.Status = StatusBar{Text: "no task selected", IsError: true}
			return m, nil
		}
		if t.IsDone() {
			return m.run("undo " + t.ID)
		}
		return m.run("done " + t.ID)
	}
	var cmd tea.Cmd
	m.taskTable, cmd = m.taskTable.Update(msg)
	return m, cmd
}

func (m Model) handleCommandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.CommandMode = false
		m.commandInput.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		line := m.commandInput.Value()
		m.CommandMode = false
		m.commandInput.Blur()
		m.commandInput.SetValue("")
		return m.run(line)
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	return m, cmd
}

func (m Model) run(line string) (tea.Model, tea.Cmd) {
	if m.ctrl == nil {
		m.Status = StatusBar{Text: "no controller", IsError: true}
		return m, nil
	}
	res, err := m.ctrl.Execute(m.ctx, line)
	m.refreshRows()
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message}
	if res.Quit {
		m.Quitting = true
		return m, tea.Quit
	}
	return m, nil
}
