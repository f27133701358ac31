package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
)

const refreshInterval = time.Second

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TaskListView ViewState = iota
	InputView
)

// Controller is the part of the scheduler the TUI drives.
type Controller interface {
	Submit(url string, opts tasks.SubmitOptions) (*models.Task, error)
	Cancel(url string) error
	Retry(url string) error
	RetryMissing(url string) error
	Remove(url string) error
	Clear() int
	List() []*models.Task
}

// Model represents the TUI application state.
type Model struct {
	engine   Controller
	updates  <-chan tasks.ProgressUpdate
	opts     tasks.SubmitOptions
	view     ViewState
	width    int
	height   int
	input    textinput.Model
	taskList list.Model
	status   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model. updates is the channel the scheduler publishes to;
// opts applies to every URL submitted from the input box.
func NewModel(engine Controller, updates <-chan tasks.ProgressUpdate, opts tasks.SubmitOptions) *Model {
	input := textinput.New()
	input.Placeholder = "https://www.youtube.com/watch?v=..."
	input.Prompt = "URL ❯ "
	input.CharLimit = 2048

	taskList := list.New(toItems(engine.List()), newTaskDelegate(), 0, 0)
	taskList.Title = "Downloads"
	taskList.SetShowHelp(false)
	taskList.SetFilteringEnabled(false)
	taskList.DisableQuitKeybindings()

	return &Model{
		engine:   engine,
		updates:  updates,
		opts:     opts,
		view:     TaskListView,
		input:    input,
		taskList: taskList,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts listening for scheduler updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForProgress(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskList.SetSize(msg.Width-4, msg.Height-8)
		m.input.Width = max(10, msg.Width-12)
		return m, nil

	case tea.KeyMsg:
		if m.view == InputView {
			return m.handleInputKeys(msg)
		}
		return m.handleListKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.status = update.Message
		m.refresh()
		return m, m.waitForProgress()

	case MsgUpdatesClosed:
		m.updates = nil
		return m, nil

	case MsgSubmitted:
		data := msg.data.(struct {
			task *models.Task
			err  error
		})
		m.err = data.err
		if data.err == nil {
			m.status = fmt.Sprintf("Queued %s", data.task.URL)
		}
		m.refresh()
		return m, nil

	case MsgActionDone:
		data := msg.data.(struct {
			status string
			err    error
		})
		m.err = data.err
		if data.err == nil {
			m.status = data.status
		}
		m.refresh()
		return m, nil

	case MsgTick:
		m.refresh()
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.closeInput()
		return m, nil
	case key.Matches(msg, m.keys.submit):
		url := strings.TrimSpace(m.input.Value())
		m.closeInput()
		if url == "" {
			return m, nil
		}
		return m, m.submit(url)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.add):
		m.view = InputView
		m.err = nil
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.cancel):
		return m, m.act("Cancelled", m.engine.Cancel)
	case key.Matches(msg, m.keys.retry):
		return m, m.act("Retrying", m.engine.Retry)
	case key.Matches(msg, m.keys.missing):
		return m, m.act("Retrying missing items of", m.engine.RetryMissing)
	case key.Matches(msg, m.keys.remove):
		return m, m.act("Removed", m.engine.Remove)
	case key.Matches(msg, m.keys.clear):
		return m, func() tea.Msg {
			n := m.engine.Clear()
			return actionDoneMsg(fmt.Sprintf("Cleared %d finished tasks", n), nil)
		}
	}
	return m.updateList(msg)
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.input.Blur()
	m.input.Reset()
	m.view = TaskListView
}

// refresh reloads the list from the scheduler, keeping the cursor where it was.
func (m *Model) refresh() {
	m.taskList.SetItems(toItems(m.engine.List()))
}

func (m *Model) selected() (*models.Task, bool) {
	item, ok := m.taskList.SelectedItem().(taskItem)
	if !ok {
		return nil, false
	}
	return item.task, true
}

func (m *Model) submit(url string) tea.Cmd {
	opts := m.opts
	return func() tea.Msg {
		t, err := m.engine.Submit(url, opts)
		return submittedMsg(t, err)
	}
}

// act runs fn against the selected task.
func (m *Model) act(verb string, fn func(url string) error) tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}
	url, name := t.URL, t.DisplayName()
	return func() tea.Msg {
		if err := fn(url); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg(fmt.Sprintf("%s %s", verb, name), nil)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.updates
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return updatesClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg() })
}

// View renders the task list with the input box and status line.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.taskList.View())
	b.WriteString("\n\n")

	if m.view == InputView {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.back}))
		return b.String()
	}

	if line := m.statusLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) statusLine() string {
	switch {
	case m.err == nil:
		return styles.help.Render(m.status)
	case errors.Is(m.err, shared.ErrAlreadyRecorded):
		return styles.warn.Render(fmt.Sprintf("%v (use the get command with --force to download again)", m.err))
	default:
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
}
