// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Layout constants.
const (
	sidebarWidth = 30
	headerHeight = 1
	footerHeight = 3 // input, status, help
)

// =============================================================================
// MODEL
// =============================================================================

// Options configures a chat model.
type Options struct {
	Controller *session.Controller
	Theme      *styles.Theme
	Export     *export.Options
	// Sidebar shows the conversation list on start.
	Sidebar bool
	// Now is the clock used for relative times. Defaults to time.Now.
	Now func() time.Time
	// Copy writes to the clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error
}

// Model is the Bubble Tea model for the chat screen. It only holds view
// state; conversations live in the ledger and are changed through the
// controller.
type Model struct {
	ctx    context.Context
	ctrl   *session.Controller
	ledger *ledger.Ledger
	theme  *styles.Theme
	opts   Options

	keys      KeyMap
	help      help.Model
	viewport  viewport.Model
	input     textinput.Model
	spinner   spinner.Model
	parser    *commands.Parser
	completer *commands.Completer

	// Finished messages of the shown conversation, already styled.
	blocks []string

	// Streaming bubble. It belongs to streamID and is only drawn while
	// that conversation is the active one.
	streaming    bool
	streamID     string
	streamMarkup string
	cancel       context.CancelFunc

	activeID     string
	pending      bool
	inputEnabled bool

	sidebar      bool
	focusSidebar bool
	cursor       int

	// confirmDelete is the id awaiting y/N.
	confirmDelete string

	status      string
	statusError bool

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates the chat model. ctx bounds every exchange.
func New(ctx context.Context, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Export == nil {
		opts.Export = export.DefaultOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message or /help"
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	parser := commands.NewParser(commands.NewRegistry())
	completer := commands.NewCompleter(parser.Registry())
	l := opts.Controller.Ledger()
	completer.ConversationsFn = l.Len

	return Model{
		ctx:          ctx,
		ctrl:         opts.Controller,
		ledger:       l,
		theme:        opts.Theme,
		opts:         opts,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		viewport:     viewport.New(80, 20),
		input:        ti,
		spinner:      sp,
		parser:       parser,
		completer:    completer,
		inputEnabled: true,
		sidebar:      opts.Sidebar,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init shows the restored conversation. The controller runs in a command
// because its presenter calls block until the event loop reads them.
func (m Model) Init() tea.Cmd {
	ctrl := m.ctrl
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		func() tea.Msg {
			ctrl.Start()
			return nil
		},
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.pending {
			m.refresh()
		}
		return m, cmd

	// Presenter calls.
	case clearMsg:
		m.blocks = nil
		m.activeID = m.ledger.Active()
		m.refresh()
		return m, nil

	case showMessageMsg:
		if msg.role == model.RoleSystem && m.streamVisible() {
			// A notice in the streaming conversation reports a failure;
			// keep what arrived so far above it.
			m.endStream(true)
		}
		m.blocks = append(m.blocks, m.theme.Message(msg.role, msg.markup))
		m.refresh()
		return m, nil

	case pendingMsg:
		m.pending = msg.visible
		m.refresh()
		return m, nil

	case beginAssistantMsg:
		m.streaming = true
		m.streamID = msg.conversationID
		m.streamMarkup = ""
		m.refresh()
		return m, nil

	case replaceAssistantMsg:
		m.streamMarkup = msg.markup
		m.refresh()
		return m, nil

	case scrollMsg:
		m.viewport.GotoBottom()
		return m, nil

	case inputEnabledMsg:
		m.inputEnabled = msg.enabled
		if msg.enabled {
			m.input.Placeholder = "Type a message or /help"
		} else {
			m.input.Placeholder = "Waiting for the answer..."
		}
		return m, nil

	case conversationsChangedMsg:
		m.activeID = m.ledger.Active()
		m.clampCursor()
		m.refresh()
		return m, nil

	// Command results.
	case sendDoneMsg:
		return m.handleSendDone(msg)

	case statusMsg:
		m.status = msg.text
		m.statusError = msg.isError
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.render()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete != "" {
		return m.handleConfirm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Back):
		if m.focusSidebar {
			m.focusSidebar = false
			m.refresh()
			return m, m.input.Focus()
		}
		return m.quit()

	case key.Matches(msg, m.keys.Prev):
		return m, m.step(-1)

	case key.Matches(msg, m.keys.Next):
		return m, m.step(1)

	case key.Matches(msg, m.keys.Rename):
		if conv, ok := m.ledger.Get(m.activeID); ok {
			m.focusSidebar = false
			m.input.SetValue(commands.Rename + " " + conv.Title)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Sidebar):
		m.sidebar = !m.sidebar
		if !m.sidebar && m.focusSidebar {
			m.focusSidebar = false
			m.input.Focus()
		}
		m.layout()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		return m.toggleFocus()

	case key.Matches(msg, m.keys.NewChat):
		return m, m.newConversation()

	case key.Matches(msg, m.keys.Delete):
		id := m.activeID
		if m.focusSidebar {
			id = m.selectedID()
		}
		return m.askDelete(id)

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastAnswer()

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focusSidebar {
		return m.handleSidebarKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Complete):
		m.complete()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.ledger.Len()-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Submit):
		if id := m.selectedID(); id != "" {
			m.focusSidebar = false
			m.input.Focus()
			m.refresh()
			return m, m.open(id)
		}
	}
	m.refresh()
	return m, nil
}

// step opens the conversation delta places away from the active one in
// the sidebar order.
func (m Model) step(delta int) tea.Cmd {
	list := m.ledger.List()
	if len(list) < 2 {
		return nil
	}
	i := m.activeIndex() + delta
	if i < 0 || i >= len(list) {
		return nil
	}
	return m.open(list[i].ID)
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirmDelete
	m.confirmDelete = ""
	if msg.String() == "y" || msg.String() == "Y" {
		m.status = ""
		return m, m.deleteConversation(id)
	}
	m.status = "Delete cancelled"
	m.statusError = false
	return m, nil
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focusSidebar {
		m.focusSidebar = false
		return m, m.input.Focus()
	}
	if !m.sidebar {
		m.sidebar = true
		m.layout()
	}
	m.focusSidebar = true
	m.input.Blur()
	m.cursor = m.activeIndex()
	m.refresh()
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.quitting = true
	return m, tea.Quit
}

// =============================================================================
// INPUT
// =============================================================================

// submit runs a slash command or sends the input as a message.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	if res := m.parser.Parse(text); res.IsCommand {
		m.input.Reset()
		return m.runCommand(res)
	}

	if !m.inputEnabled {
		m.status = "Still answering, wait for the reply"
		m.statusError = false
		return m, nil
	}

	m.input.Reset()
	m.status = ""
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	ctrl := m.ctrl
	return m, func() tea.Msg {
		res, err := ctrl.Send(ctx, text)
		return sendDoneMsg{result: res, err: err}
	}
}

// complete applies tab completion to a /command.
func (m *Model) complete() {
	candidates := m.completer.Complete(m.input.Value())
	switch len(candidates) {
	case 0:
		return
	case 1:
		m.input.SetValue(candidates[0] + " ")
	default:
		m.input.SetValue(commonPrefix(candidates))
		m.status = strings.Join(candidates, "  ")
		m.statusError = false
	}
	m.input.CursorEnd()
}

func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.streaming {
		m.endStream(msg.result.Committed)
	}

	switch {
	case errors.Is(msg.err, session.ErrBusy):
		m.status = "Still answering, wait for the reply"
		m.statusError = false
	case errors.Is(msg.err, context.Canceled):
		return m, nil
	case msg.err != nil:
		m.status = msg.err.Error()
		m.statusError = true
	case msg.result.Dropped:
		m.status = "Answer discarded: its conversation was deleted"
		m.statusError = false
	case msg.result.Err != nil:
		m.status = "Answer not saved: " + msg.result.Err.Error()
		m.statusError = true
	}
	m.refresh()
	return m, nil
}

// endStream retires the streaming bubble. A bubble that is on screen is
// kept as a finished block when keep is set.
func (m *Model) endStream(keep bool) {
	if keep && m.streamVisible() && m.streamMarkup != "" {
		m.blocks = append(m.blocks, m.theme.Message(model.RoleAssistant, m.streamMarkup))
	}
	m.streaming = false
	m.streamID = ""
	m.streamMarkup = ""
}

func (m Model) streamVisible() bool {
	return m.streaming && m.streamID == m.activeID
}

// =============================================================================
// SIDEBAR STATE
// =============================================================================

func (m Model) selectedID() string {
	list := m.ledger.List()
	if m.cursor < 0 || m.cursor >= len(list) {
		return ""
	}
	return list[m.cursor].ID
}

func (m Model) activeIndex() int {
	for i, conv := range m.ledger.List() {
		if conv.ID == m.activeID {
			return i
		}
	}
	return 0
}

func (m *Model) clampCursor() {
	if n := m.ledger.Len(); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// conversationAt returns the conversation at a 1-based /list position.
func (m Model) conversationAt(pos int) (*model.Conversation, error) {
	list := m.ledger.List()
	if pos < 1 || pos > len(list) {
		return nil, fmt.Errorf("no conversation at position %d (have %d)", pos, len(list))
	}
	return list[pos-1], nil
}

func (m Model) askDelete(id string) (tea.Model, tea.Cmd) {
	conv, ok := m.ledger.Get(id)
	if !ok {
		return m, nil
	}
	m.confirmDelete = id
	m.status = fmt.Sprintf("Delete %q? y/N", conv.Title)
	m.statusError = false
	return m, nil
}

// =============================================================================
// CONTROLLER COMMANDS
// =============================================================================

func (m Model) newConversation() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.NewConversation()
		return nil
	}
}

func (m Model) open(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Open(id); err != nil {
			return statusErr(err)
		}
		return nil
	}
}

func (m Model) rename(id, title string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Rename(id, title); err != nil {
			return statusErr(err)
		}
		return statusf("Renamed")
	}
}

func (m Model) deleteConversation(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Delete(id); err != nil {
			return statusErr(err)
		}
		return statusf("Conversation deleted")
	}
}

func (m Model) exportConversation(f export.Format) tea.Cmd {
	conv, ok := m.ledger.Get(m.activeID)
	opts := *m.opts.Export
	return func() tea.Msg {
		if !ok {
			return statusErr(export.ErrNilConversation)
		}
		path, err := export.ExportToFile(conv, export.ForFormat(f, &opts), &opts)
		if err != nil {
			return statusErr(err)
		}
		return statusf("Exported to " + path)
	}
}

// copyLastAnswer copies the newest stored answer of the active
// conversation.
func (m Model) copyLastAnswer() tea.Cmd {
	conv, ok := m.ledger.Get(m.activeID)
	copyFn := m.opts.Copy
	return func() tea.Msg {
		if !ok {
			return statusf("No response to copy")
		}
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			msg := conv.Messages[i]
			if msg.Role != model.RoleAssistant || msg.Content == "" {
				continue
			}
			if err := copyFn(msg.Content); err != nil {
				return statusErr(fmt.Errorf("copy to clipboard: %w", err))
			}
			return statusf(fmt.Sprintf("Copied %d chars", len([]rune(msg.Content))))
		}
		return statusf("No response to copy")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func commonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
