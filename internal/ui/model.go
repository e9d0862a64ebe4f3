package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sandeepkv93/nagd/internal/commands"
	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/views"
)

const (
	feedLimit       = 40
	feedShown       = 6
	refreshInterval = 30 * time.Second
)

// Controller is the application side of the TUI. Commands typed in the
// command bar and key actions are both routed through Execute.
type Controller interface {
	Tasks() []model.Task
	Location() *time.Location
	Execute(ctx context.Context, line string) (commands.Result, error)
}

type StatusBar struct {
	Text    string
	IsError bool
}

type Model struct {
	Feed        []views.FeedItem
	Status      StatusBar
	CommandMode bool
	HelpVisible bool
	Quitting    bool

	ctx    context.Context
	ctrl   Controller
	events <-chan model.NotificationEvent
	now    func() time.Time
	keys   keyMap

	taskTable    table.Model
	commandInput textinput.Model
	helpModel    help.Model
}

type Option func(*Model)

func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// New builds the TUI model. events may be nil when no notification feed is
// wired.
func New(ctx context.Context, ctrl Controller, events <-chan model.NotificationEvent, opts ...Option) Model {
	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		events: events,
		now:    time.Now,
		keys:   defaultKeyMap(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	cols := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "State", Width: 8},
		{Title: "Task", Width: 32},
		{Title: "Due", Width: 16},
	}
	m.taskTable = table.New(table.WithColumns(cols), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(12))

	m.commandInput = textinput.New()
	m.commandInput.Prompt = ":"
	m.commandInput.Placeholder = "done 1 | note text | tz Asia/Kolkata"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.helpModel = help.New()
	m.refreshRows()
	return m
}

func (m *Model) refreshRows() {
	if m.ctrl == nil {
		return
	}
	loc := m.ctrl.Location()
	now := m.now()
	tasks := m.ctrl.Tasks()
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, table.Row{
			t.ID,
			views.StatusBadge(t.IsDone(), t.Due, now),
			t.Title,
			t.Due.In(loc).Format("Mon Jan 2 15:04"),
		})
	}
	m.taskTable.SetRows(rows)
}

func (m *Model) selectedTask() (model.Task, bool) {
	row := m.taskTable.SelectedRow()
	if len(row) == 0 || m.ctrl == nil {
		return model.Task{}, false
	}
	for _, t := range m.ctrl.Tasks() {
		if t.ID == row[0] {
			return t, true
		}
	}
	return model.Task{}, false
}

func (m *Model) pushFeed(ev model.NotificationEvent) {
	m.Feed = append(m.Feed, views.FeedItem{
		Kind:    string(ev.Kind),
		Title:   ev.Title,
		Message: ev.Message,
		At:      ev.At,
	})
	if len(m.Feed) > feedLimit {
		m.Feed = m.Feed[len(m.Feed)-feedLimit:]
	}
}

func (m Model) counts() (pending, done int) {
	if m.ctrl == nil {
		return 0, 0
	}
	for _, t := range m.ctrl.Tasks() {
		if t.IsDone() {
			done++
		} else {
			pending++
		}
	}
	return pending, done
}

func (m Model) View() string {
	if m.Quitting {
		return "writing journal...\n"
	}
	pending, done := m.counts()
	zone := "Local"
	if m.ctrl != nil {
		zone = m.ctrl.Location().String()
	}

	taskPane := m.taskTable.View()
	if bar := views.RenderCommandBar(m.CommandMode, m.commandInput.View()); bar != "" {
		taskPane += "\n" + bar
	}
	side := views.RenderFeed(m.Feed, feedShown)
	if m.HelpVisible {
		side += "\n\n" + views.RenderHelpPanel(strings.Split(commands.Usage(), "\n"), m.helpModel.FullHelpView(m.keys.FullHelp()))
	}

	return views.RenderApp(views.AppData{
		Header:     fmt.Sprintf("nagd | %s", views.RenderSummaryLine(pending, done, zone)),
		TaskPane:   taskPane,
		SidePane:   side,
		StatusLine: m.Status.Text,
		IsError:    m.Status.IsError,
		Footer:     m.helpModel.ShortHelpView(m.keys.ShortHelp()),
	})
}
