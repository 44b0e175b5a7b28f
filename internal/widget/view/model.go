// Package view is the terminal presentation of the chat widget. It only reads
// conversation state and forwards user intent to the controller.
package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/controller"
)

const (
	headerHeight = 1
	inputHeight  = 3
	footerHeight = 2
	toastTTL     = 4 * time.Second
)

// Controller is what the view needs from the conversation controller.
type Controller interface {
	State() conversation.State
	Busy() bool
	UpdateInput(text string)
	Initialize(ctx context.Context) error
	Send(ctx context.Context) error
	EditLast(ctx context.Context) error
	DeleteLast(ctx context.Context) error
	PickSuggestionAt(ctx context.Context, n int) error
}

// Options configures the presentation.
type Options struct {
	Title string
	// SurfaceErrors shows a transient notice when an action fails. When off,
	// failures are only logged.
	SurfaceErrors bool
	Markdown      bool
	// DisableSendWhileBusy ignores the send key while a request is outstanding.
	DisableSendWhileBusy bool
	Styles               Styles
}

// KeyMap lists the widget key bindings.
type KeyMap struct {
	Send       key.Binding
	EditLast   key.Binding
	DeleteLast key.Binding
	Suggest    key.Binding
	Reconnect  key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		EditLast:   key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "edit last")),
		DeleteLast: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete last")),
		Suggest: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9"),
			key.WithHelp("alt+1-9", "suggestion"),
		),
		Reconnect:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reconnect")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// actionDoneMsg carries the outcome of one controller action.
type actionDoneMsg struct {
	action string
	err    error
}

// stateMsg delivers a store update.
type stateMsg conversation.State

type clearToastMsg struct {
	seq int
}

// Model is the Bubble Tea model of the widget.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	updates <-chan conversation.State
	opts    Options
	keys    KeyMap

	input    textarea.Model
	viewport viewport.Model
	markdown MarkdownRenderer

	state    conversation.State
	toast    string
	toastSeq int
	pending  int
	width    int
	height   int
	ready    bool
}

// New builds the widget model. updates is a store subscription; ctx bounds
// every network action started from the UI.
func New(ctx context.Context, ctrl Controller, updates <-chan conversation.State, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Chatbot"
	}

	ta := textarea.New()
	ta.Placeholder = "Type a message…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		updates:  updates,
		opts:     opts,
		keys:     DefaultKeyMap(),
		input:    ta,
		viewport: viewport.New(80, 20),
		state:    ctrl.State(),
	}
}

// Init starts the session and begins listening for store updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.run("initialize", m.ctrl.Initialize), m.listen())
}

func (m Model) listen() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		state, ok := <-updates
		if !ok {
			return nil
		}
		return stateMsg(state)
	}
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

// Update handles input, store updates and action results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.ready = true
		m.refresh()

	case stateMsg:
		// The subscription is latest-wins, but a keystroke may already have
		// pulled a newer snapshot directly from the controller.
		if msg.Version > m.state.Version {
			m.setState(conversation.State(msg))
			m.refresh()
		}
		cmds = append(cmds, m.listen())

	case actionDoneMsg:
		if m.pending > 0 {
			m.pending--
		}
		m.setState(m.ctrl.State())
		m.refresh()
		if !m.Busy() {
			cmds = append(cmds, m.input.Focus())
		}
		if msg.err != nil && m.shouldSurface(msg.err) {
			cmds = append(cmds, m.showToast(describe(msg.action, msg.err)))
		}

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Send):
			return m.start("send", m.ctrl.Send)
		case key.Matches(msg, m.keys.EditLast):
			return m.start("edit", m.ctrl.EditLast)
		case key.Matches(msg, m.keys.DeleteLast):
			return m.start("delete", m.ctrl.DeleteLast)
		case key.Matches(msg, m.keys.Suggest):
			n := int(msg.String()[len(msg.String())-1] - '1')
			return m.start("suggestion", func(ctx context.Context) error {
				return m.ctrl.PickSuggestionAt(ctx, n)
			})
		case key.Matches(msg, m.keys.Reconnect):
			if !m.state.HasSession() {
				return m.start("initialize", m.ctrl.Initialize)
			}
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		// The input is read-only while a request is outstanding.
		if m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if value := m.input.Value(); value != m.state.PendingInput {
			m.ctrl.UpdateInput(value)
			m.state = m.ctrl.State()
		}

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// start launches a controller action.
func (m Model) start(action string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	if action == "send" && m.opts.DisableSendWhileBusy && m.Busy() {
		var cmd tea.Cmd
		if m.opts.SurfaceErrors {
			cmd = m.showToast("Still waiting for the previous reply.")
		}
		return m, cmd
	}
	m.pending++
	m.input.Blur()
	m.refresh()
	return m, m.run(action, fn)
}

// Busy reports whether the view is waiting for an action to finish.
func (m Model) Busy() bool {
	return m.pending > 0 || m.ctrl.Busy()
}

func (m *Model) showToast(text string) tea.Cmd {
	m.toastSeq++
	m.toast = text
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} })
}

// setState adopts a snapshot and mirrors its pending input into the text box.
func (m *Model) setState(state conversation.State) {
	m.state = state
	if state.PendingInput != m.input.Value() {
		m.input.SetValue(state.PendingInput)
	}
}

func (m Model) shouldSurface(err error) bool {
	if !m.opts.SurfaceErrors {
		return false
	}
	// A blank send is a no-op, not a failure.
	return !errors.Is(err, controller.ErrBlankInput)
}

func (m *Model) resize() {
	m.input.SetWidth(m.width)
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-headerHeight-inputHeight-footerHeight, 3)
	if m.opts.Markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(max(m.width*7/10-2, 20)),
		)
		if err == nil {
			m.markdown = r
		}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(RenderTranscript(m.state, RenderOptions{
		Width:    m.viewport.Width,
		Styles:   m.opts.Styles,
		Markdown: m.markdown,
		Busy:     m.Busy(),
	}))
	m.viewport.GotoBottom()
}

// View renders the widget.
func (m Model) View() string {
	if !m.ready {
		return "connecting…"
	}

	header := m.opts.Styles.Header.Width(m.width).Render(m.opts.Title)

	status := m.statusLine()
	if m.toast != "" {
		status = m.opts.Styles.Toast.Render(m.toast)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.input.View(),
		m.helpLine(),
	)
}

func (m Model) statusLine() string {
	switch {
	case !m.state.HasSession() && !m.Busy():
		return m.opts.Styles.Status.Render("not connected · ctrl+r to retry")
	case m.Busy():
		return m.opts.Styles.Status.Render("waiting for reply…")
	default:
		return m.opts.Styles.Status.Render(fmt.Sprintf("session %s · %d messages", shortID(m.state.SessionID), m.state.Len()))
	}
}

func (m Model) helpLine() string {
	bindings := []key.Binding{m.keys.Send, m.keys.EditLast, m.keys.DeleteLast, m.keys.Suggest, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.opts.Styles.Help.Render(strings.Join(parts, " · "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// describe turns an action failure into a short notice.
func describe(action string, err error) string {
	switch {
	case errors.Is(err, controller.ErrNoSession):
		return "Not connected to the chatbot yet. Press ctrl+r to retry."
	case errors.Is(err, controller.ErrBusy):
		return "Still waiting for the previous reply."
	case errors.Is(err, controller.ErrEmptyConversation):
		return "There is no message to " + action + "."
	case errors.Is(err, controller.ErrInertSuggestion):
		return "That suggestion is no longer available."
	case chatapi.IsNetwork(err):
		return "Could not reach the chatbot (" + action + " failed)."
	case chatapi.IsServer(err):
		return "The chatbot rejected the request (" + action + " failed)."
	default:
		return err.Error()
	}
}
