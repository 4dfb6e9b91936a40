// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/mentesa/internal/export"
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/session"
	"github.com/jeranaias/mentesa/internal/ui/styles"
)

// Session is the part of the session manager the view drives.
type Session interface {
	SendMessage(ctx context.Context, text string) error
	SelectConversation(id model.ConversationID)
	StartNewConversation()
	DeleteConversation(ctx context.Context, id model.ConversationID) error
	RenameConversation(ctx context.Context, id model.ConversationID, title string) error
	Subscribe(ctx context.Context) <-chan session.State
}

// Options configures the view. Zero values get defaults.
type Options struct {
	Theme *styles.Theme

	// Markdown renders bot replies. Defaults to PlainMarkdown.
	Markdown MarkdownFunc

	// ExportDir receives Ctrl+E exports. Defaults to ".".
	ExportDir string

	Now func() time.Time

	// FlashDuration is how long status confirmations stay visible.
	FlashDuration time.Duration
}

const (
	inputHeight    = 3
	headerHeight   = 1
	statusHeight   = 1
	dialogHeight   = 3
	defaultFlash   = 4 * time.Second
	inputCharLimit = 4000
)

// =============================================================================
// CHAT STATE
// =============================================================================

type focusArea int

const (
	focusInput focusArea = iota // typing a message
	focusList                   // moving through conversations
)

type mode int

const (
	modeChat          mode = iota
	modeRename             // editing a title
	modeConfirmDelete      // waiting for s/N
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx     context.Context
	session Session
	states  <-chan session.State
	state   session.State

	theme     *styles.Theme
	keys      KeyMap
	help      help.Model
	rendered  *renderCache
	exportDir string
	now       func() time.Time
	flashFor  time.Duration

	width    int
	height   int
	viewport viewport.Model
	input    textarea.Model
	title    textinput.Model
	spinner  spinner.Model
	spinning bool

	focus    focusArea
	mode     mode
	cursor   int
	target   model.ConversationID
	showHelp bool

	flash    string
	flashErr bool
	flashSeq int
	quitting bool
}

// New creates the view and subscribes to s for the lifetime of ctx.
func New(ctx context.Context, s Session, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Markdown == nil {
		opts.Markdown = PlainMarkdown
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FlashDuration <= 0 {
		opts.FlashDuration = defaultFlash
	}
	keys := DefaultKeyMap()

	in := textarea.New()
	in.Placeholder = "Como você está se sentindo?"
	in.ShowLineNumbers = false
	in.CharLimit = inputCharLimit
	in.SetHeight(inputHeight)
	in.KeyMap.InsertNewline = keys.Newline
	in.Focus()

	title := textinput.New()
	title.Prompt = "Novo título: "
	title.CharLimit = 120

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(opts.Theme.Spinner),
	)

	return Model{
		ctx:       ctx,
		session:   s,
		states:    s.Subscribe(ctx),
		theme:     opts.Theme,
		keys:      keys,
		help:      help.New(),
		rendered:  newRenderCache(opts.Markdown),
		exportDir: opts.ExportDir,
		now:       opts.Now,
		flashFor:  opts.FlashDuration,
		viewport:  viewport.New(80, 20),
		input:     in,
		title:     title,
		spinner:   sp,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts listening for session snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForState(m.states), textarea.Blink)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		m.refresh(true)
		return m, nil

	case stateMsg:
		return m.handleState(msg.State)

	case stateClosedMsg:
		return m, nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case flashExpiredMsg:
		if msg.Seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

// updateInputs forwards msg to the focused text field.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.mode == modeRename {
		m.title, cmd = m.title.Update(msg)
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SESSION EVENTS
// =============================================================================

func (m Model) handleState(s session.State) (tea.Model, tea.Cmd) {
	prevID := m.state.CurrentID
	prevCount := len(m.state.Messages)
	atBottom := m.viewport.AtBottom()

	m.state = s
	m.clampCursor()
	m.refresh(atBottom || s.CurrentID != prevID || len(s.Messages) != prevCount)

	cmds := []tea.Cmd{waitForState(m.states)}
	if m.loading() && !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		// Session failures are already published in State.Err.
		if msg.Op == opExport {
			return m.setFlash("Falha ao exportar: "+msg.Err.Error(), true)
		}
		return m, nil
	}

	switch msg.Op {
	case opRename:
		return m.setFlash("Conversa renomeada.", false)
	case opDelete:
		return m.setFlash("Conversa excluída.", false)
	case opExport:
		return m.setFlash("Exportada para "+msg.Path, false)
	}
	return m, nil
}

func (m Model) setFlash(text string, isErr bool) (Model, tea.Cmd) {
	m.flashSeq++
	m.flash = text
	m.flashErr = isErr
	return m, expireFlash(m.flashSeq, m.flashFor)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
		return m, nil
	}

	switch m.mode {
	case modeRename:
		return m.handleRenameKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	}
	if m.focus == focusList {
		return m.handleListKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if !m.loading() && strings.TrimSpace(text) != "" {
			m.input.Reset()
		}
		return m, sendCmd(m.ctx, m.session, text)

	case key.Matches(msg, m.keys.Focus):
		m.focus = focusList
		m.input.Blur()
		m.cursor = m.indexOf(m.state.CurrentID)
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.session.StartNewConversation()
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		return m.startRename(m.state.CurrentID)

	case key.Matches(msg, m.keys.Delete):
		return m.startDelete(m.state.CurrentID)

	case key.Matches(msg, m.keys.Export):
		return m.exportCurrent()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item, hasItem := m.itemAtCursor()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Conversations)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if hasItem {
			m.session.SelectConversation(item.ID)
		}
		return m.focusInput()
	case key.Matches(msg, m.keys.Focus), key.Matches(msg, m.keys.Cancel):
		return m.focusInput()
	case key.Matches(msg, m.keys.New):
		m.session.StartNewConversation()
		return m.focusInput()
	case key.Matches(msg, m.keys.Rename):
		if hasItem {
			return m.startRename(item.ID)
		}
	case key.Matches(msg, m.keys.Delete):
		if hasItem {
			return m.startDelete(item.ID)
		}
	case key.Matches(msg, m.keys.Export):
		return m.exportCurrent()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
	}
	return m, nil
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.closeDialog()
	case msg.Type == tea.KeyEnter:
		title := m.title.Value()
		target := m.target
		next, focus := m.closeDialog()
		return next, tea.Batch(focus, renameCmd(m.ctx, m.session, target, title))
	}

	var cmd tea.Cmd
	m.title, cmd = m.title.Update(msg)
	return m, cmd
}

// handleConfirmKey deletes on "s" (or "y"); any other key cancels.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.target
	next, focus := m.closeDialog()
	switch strings.ToLower(msg.String()) {
	case "s", "y":
		return next, tea.Batch(focus, deleteCmd(m.ctx, m.session, target))
	}
	return next, focus
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m Model) startRename(id model.ConversationID) (tea.Model, tea.Cmd) {
	if !id.IsReal() {
		return m.setFlash(session.ErrNotPersisted.Message, true)
	}
	m.mode = modeRename
	m.target = id
	m.input.Blur()
	m.title.SetValue(m.titleOf(id))
	m.title.CursorEnd()
	m.layout()
	cmd := m.title.Focus()
	return m, cmd
}

func (m Model) startDelete(id model.ConversationID) (tea.Model, tea.Cmd) {
	if !id.IsReal() {
		return m.setFlash(session.ErrNotPersisted.Message, true)
	}
	m.mode = modeConfirmDelete
	m.target = id
	m.input.Blur()
	m.layout()
	return m, nil
}

// closeDialog returns to the chat and refocuses what had focus.
func (m Model) closeDialog() (Model, tea.Cmd) {
	m.mode = modeChat
	m.target = model.NoConversation
	m.title.Blur()
	m.title.Reset()
	m.layout()
	if m.focus == focusInput {
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) focusInput() (tea.Model, tea.Cmd) {
	m.focus = focusInput
	cmd := m.input.Focus()
	return m, cmd
}

// exportCurrent writes the saved messages of the current conversation.
func (m Model) exportCurrent() (tea.Model, tea.Cmd) {
	id := m.state.CurrentID
	if !id.IsReal() {
		return m.setFlash(session.ErrNotPersisted.Message, true)
	}
	var saved []model.ChatMessage
	for _, msg := range m.state.Messages {
		if msg.ID > 0 {
			saved = append(saved, msg)
		}
	}
	if len(saved) == 0 {
		return m.setFlash("Nada para exportar ainda.", true)
	}

	opts := export.DefaultOptions()
	opts.OutputDir = m.exportDir
	t := export.NewTranscript(id, m.titleOf(id), saved, m.now())
	return m, exportCmd(t, opts)
}

// =============================================================================
// HELPERS
// =============================================================================

func (m Model) loading() bool {
	return m.state.Loading == model.Loading
}

// titleOf returns the listed title of id, or a stand-in while the list
// has not caught up.
func (m Model) titleOf(id model.ConversationID) string {
	if id.IsNew() {
		return model.NewConversationTitle
	}
	if item, ok := m.state.Conversation(id); ok {
		return item.DisplayTitle
	}
	if id.IsReal() {
		return model.FallbackTitle(id)
	}
	return ""
}

func (m Model) indexOf(id model.ConversationID) int {
	for i, item := range m.state.Conversations {
		if item.ID == id {
			return i
		}
	}
	return 0
}

func (m Model) itemAtCursor() (model.ConversationDisplayItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Conversations) {
		return model.ConversationDisplayItem{}, false
	}
	return m.state.Conversations[m.cursor], true
}

func (m *Model) clampCursor() {
	if n := len(m.state.Conversations); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// layout sizes the viewport and inputs to the window.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	chatWidth := m.chatWidth()

	m.help.Width = m.width
	vpHeight := m.height - headerHeight - statusHeight - lipgloss.Height(m.helpView()) - m.bottomHeight()
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = chatWidth
	m.viewport.Height = vpHeight

	m.input.SetWidth(max(chatWidth-2, 10))
	m.title.Width = max(chatWidth-4-lipgloss.Width(m.title.Prompt)-1, 10)
}

// refresh redraws the messages, scrolling to the end when follow is set.
func (m *Model) refresh(follow bool) {
	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) chatWidth() int {
	return max(m.width-m.theme.SidebarWidth(), 1)
}

func (m Model) bottomHeight() int {
	if m.mode == modeChat {
		return inputHeight + 2
	}
	return dialogHeight
}
