// Package tui is the terminal shell: a Bubble Tea program that renders the
// sign-in form or the task list according to the observed session.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"supatodo/internal/output"
	"supatodo/internal/service"
	"supatodo/internal/session"
	"supatodo/internal/shell"
	"supatodo/internal/tasklist"
)

// Messages fed back into Update.
type (
	sessionMsg    struct{ session session.Session }
	sessionEndMsg struct{}
	alertMsg      struct{ text string }

	// syncedMsg reports that an operation on sync finished; its outcome is
	// already reflected in sync's collection.
	syncedMsg struct{ sync *tasklist.Synchronizer }

	addedMsg struct {
		sync  *tasklist.Synchronizer
		added bool
	}

	signInDoneMsg  struct{}
	signOutDoneMsg struct{}
)

// taskItem adapts service.Task to list.Item.
type taskItem struct {
	task service.Task
}

func (i taskItem) Title() string       { return i.task.Title }
func (i taskItem) Description() string { return "" }
func (i taskItem) FilterValue() string { return i.task.Title }

// itemDelegate renders one task per line.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(taskItem)
	title := output.Title(it.task.Title)

	box := mutedStyle.Render(boxUnchecked)
	if it.task.Completed {
		box = successStyle.Render(boxChecked)
		title = doneStyle.Render(title)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+box+" "+title)
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx     context.Context
	auth    service.Auth
	shell   *shell.Shell
	notify  tasklist.Notifier
	updates <-chan session.Session
	alerts  <-chan string

	route shell.Route
	tasks *tasklist.Synchronizer

	// sign-in form
	email     textinput.Model
	password  textinput.Model
	signingIn bool

	// task list
	list   list.Model
	input  textinput.Model
	adding bool

	spinner spinner.Model
	modal   string
	width   int
	height  int
}

// New builds the model. updates is the session stream of an Observer.
func New(ctx context.Context, be *service.Backend, updates <-chan session.Session) Model {
	alerts := make(chan string, 16)
	notify := tasklist.NotifierFunc(func(msg string) {
		select {
		case alerts <- msg:
		case <-ctx.Done():
		}
	})

	email := textinput.New()
	email.Prompt = "Email    "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Prompt = "Password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "What needs to be done?"
	input.CharLimit = 500

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = titleStyle.Render("Todos")
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("task", "tasks")
	extra := func() []key.Binding {
		return []key.Binding{keys.Add, keys.Toggle, keys.Delete, keys.SignOut, keys.Quit}
	}
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle))

	return Model{
		ctx:      ctx,
		auth:     be.Auth,
		shell:    shell.New(be.Store, notify),
		notify:   notify,
		updates:  updates,
		alerts:   alerts,
		route:    shell.RouteSignIn,
		email:    email,
		password: password,
		list:     l,
		input:    input,
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

func waitSession(updates <-chan session.Session) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return sessionEndMsg{}
		}
		return sessionMsg{session: s}
	}
}

func waitAlert(alerts <-chan string) tea.Cmd {
	return func() tea.Msg {
		return alertMsg{text: <-alerts}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitSession(m.updates), waitAlert(m.alerts), textinput.Blink)
}

// busy reports whether the spinner should run.
func (m Model) busy() bool {
	return m.signingIn || (m.tasks != nil && m.tasks.Loading())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case sessionMsg:
		return m.applySession(msg.session)

	case sessionEndMsg:
		return m, tea.Quit

	case alertMsg:
		// The next alert is read only after this one is dismissed.
		m.modal = msg.text
		return m, nil

	case syncedMsg:
		if !m.shell.IsMounted(msg.sync) {
			return m, nil
		}
		cmd := m.refresh()
		return m, cmd

	case addedMsg:
		if !m.shell.IsMounted(msg.sync) {
			return m, nil
		}
		if msg.added {
			m.input.SetValue("")
			m.input.Blur()
			m.adding = false
		}
		cmd := m.refresh()
		return m, cmd

	case signInDoneMsg:
		m.signingIn = false
		m.password.SetValue("")
		return m, nil

	case signOutDoneMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, forceQuit) {
			return m, tea.Quit
		}
		if m.modal != "" {
			if key.Matches(msg, keys.Dismiss) {
				m.modal = ""
				return m, waitAlert(m.alerts)
			}
			return m, nil
		}
		if m.route == shell.RouteSignIn {
			return m.updateSignIn(msg)
		}
		return m.updateTasks(msg)
	}

	return m.forward(msg)
}

// forward passes other messages (cursor blink and the like) to the focused
// component.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.route == shell.RouteSignIn && m.email.Focused():
		m.email, cmd = m.email.Update(msg)
	case m.route == shell.RouteSignIn:
		m.password, cmd = m.password.Update(msg)
	case m.adding:
		m.input, cmd = m.input.Update(msg)
	default:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// applySession routes on s and starts the initial load of a newly mounted
// task list.
func (m Model) applySession(s session.Session) (tea.Model, tea.Cmd) {
	route, mounted := m.shell.Apply(s)
	m.route = route
	next := waitSession(m.updates)

	if route == shell.RouteSignIn {
		m.tasks = nil
		m.adding = false
		m.input.SetValue("")
		m.list.SetItems(nil)
		focus := m.email.Focus()
		return m, tea.Batch(next, focus)
	}
	if mounted == nil {
		return m, next
	}

	log.WithField("user", mounted.UserID()).Debug("loading tasks")
	m.tasks = mounted
	m.adding = false
	m.list.SetItems(nil)
	m.email.Blur()
	m.password.Blur()
	return m, tea.Batch(next, loadTasks(m.ctx, mounted), m.spinner.Tick)
}

func (m Model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.signingIn {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Next):
		var focus tea.Cmd
		if m.email.Focused() {
			m.email.Blur()
			focus = m.password.Focus()
		} else {
			m.password.Blur()
			focus = m.email.Focus()
		}
		return m, focus

	case key.Matches(msg, keys.Submit):
		email := strings.TrimSpace(m.email.Value())
		if email == "" || m.password.Value() == "" {
			return m, nil
		}
		m.signingIn = true
		creds := service.Credentials{Email: email, Password: m.password.Value()}
		return m, tea.Batch(signIn(m.ctx, m.auth, creds, m.notify), m.spinner.Tick)
	}
	return m.forward(msg)
}

func (m Model) updateTasks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.tasks == nil {
		return m, nil
	}

	if m.adding {
		switch {
		case key.Matches(msg, keys.Submit):
			if strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			return m, addTask(m.ctx, m.tasks, m.input.Value())
		case key.Matches(msg, keys.Cancel):
			m.adding = false
			m.input.SetValue("")
			m.input.Blur()
			return m, nil
		}
		return m.forward(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.SignOut):
		return m, signOut(m.ctx, m.auth, m.notify)
	}

	if m.tasks.Loading() {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Add):
		m.adding = true
		focus := m.input.Focus()
		return m, focus
	case key.Matches(msg, keys.Toggle):
		if it, ok := m.list.SelectedItem().(taskItem); ok {
			return m, toggleTask(m.ctx, m.tasks, it.task)
		}
		return m, nil
	case key.Matches(msg, keys.Delete):
		if it, ok := m.list.SelectedItem().(taskItem); ok {
			return m, deleteTask(m.ctx, m.tasks, it.task.ID)
		}
		return m, nil
	}
	return m.forward(msg)
}

// refresh copies the mounted collection into the list.
func (m *Model) refresh() tea.Cmd {
	if m.tasks == nil {
		return nil
	}
	tasks := m.tasks.Tasks()
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{task: t}
	}
	done, pending := output.Tally(tasks)
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), len(tasks),
	)
	return m.list.SetItems(items)
}

func (m Model) View() string {
	var content string
	switch {
	case m.route == shell.RouteSignIn:
		content = m.signInView()
	case m.tasks == nil || m.tasks.Loading():
		content = m.spinner.View() + " Loading tasks..."
	default:
		content = m.list.View()
		if m.adding {
			bar := panelStyle.Render("Add task\n" + m.input.View())
			content += "\n" + bar
		}
	}

	if m.modal != "" {
		box := modalStyle.Render(errorStyle.Render("Error") + "\n\n" + m.modal + "\n\n" + helpStyle.Render("enter to dismiss"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return panelStyle.Render(content)
}

func (m Model) signInView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("supatodo") + "\n")
	b.WriteString(mutedStyle.Render("Sign in to see your tasks") + "\n\n")
	b.WriteString(m.email.View() + "\n")
	b.WriteString(m.password.View() + "\n\n")
	if m.signingIn {
		b.WriteString(m.spinner.View() + " Signing in...")
	} else {
		b.WriteString(helpStyle.Render("tab next field • enter sign in • ctrl+c quit"))
	}
	return b.String()
}
