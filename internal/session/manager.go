// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/mentesa/internal/events"
	"github.com/jeranaias/mentesa/internal/llm"
	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// MessageStore is the message log the manager reads and appends to.
type MessageStore interface {
	Insert(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error)
	LastMessages(ctx context.Context, id model.ConversationID, n int) ([]model.ChatMessage, error)
	WatchMessages(ctx context.Context, id model.ConversationID) <-chan []model.ChatMessage
	Summaries(ctx context.Context, owner string) ([]model.ConversationSummary, error)
	WatchSummaries(ctx context.Context, owner string) <-chan []model.ConversationSummary
	FirstUserMessageText(ctx context.Context, id model.ConversationID) (string, bool, error)
	DeleteAll(ctx context.Context, id model.ConversationID) (int64, error)
}

// MetadataStore holds the optional custom titles.
type MetadataStore interface {
	Upsert(ctx context.Context, id model.ConversationID, title *string, owner string) error
	EnsureExists(ctx context.Context, id model.ConversationID, owner string) error
	Title(ctx context.Context, id model.ConversationID) (string, bool, error)
	Delete(ctx context.Context, id model.ConversationID) error
	WatchAllForOwner(ctx context.Context, owner string) <-chan []model.ConversationMetadata
}

// Identity supplies the owner of new conversations.
type Identity interface {
	CurrentUserID() string
	Changes(ctx context.Context) <-chan string
}

// TopicFilter screens user input and generated replies.
type TopicFilter interface {
	IsProhibitedTopic(text string) bool
	IsValidResponse(text string) bool
}

// Deps are the collaborators of a Manager. Clock and Logger are optional.
type Deps struct {
	Messages MessageStore
	Metadata MetadataStore
	Streamer llm.Streamer
	Identity Identity
	Filter   TopicFilter
	Clock    func() time.Time
	Logger   *log.Logger
}

// =============================================================================
// CONFIG
// =============================================================================

// Config holds tunables for the session manager.
type Config struct {
	// HistoryWindow is how many persisted messages are sent as context (default: 20)
	HistoryWindow int

	// SettleDelay is how long Run waits for the conversation list before
	// choosing an initial conversation anyway (default: 300ms)
	SettleDelay time.Duration

	// TitlePreviewRunes is the length of titles taken from the first message (default: 30)
	TitlePreviewRunes int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:     model.HistoryWindow,
		SettleDelay:       300 * time.Millisecond,
		TitlePreviewRunes: model.TitlePreviewRunes,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = def.HistoryWindow
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = def.SettleDelay
	}
	if c.TitlePreviewRunes <= 0 {
		c.TitlePreviewRunes = def.TitlePreviewRunes
	}
	return c
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the current conversation and publishes State snapshots.
type Manager struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	logger *log.Logger

	mu sync.Mutex

	// Selection
	owner       string
	current     model.ConversationID
	initialized bool

	// Messages of the watched conversation
	stored    []model.ChatMessage
	storedFor model.ConversationID

	// In-progress reply. Shown until the persisted reply (savedReply) shows
	// up in stored.
	streaming  bool
	streamFor  model.ConversationID
	streamText string
	streamAt   int64
	savedReply int64

	conversations []model.ConversationDisplayItem

	loading  model.LoadingState
	errText  string
	inFlight bool

	// First user message per conversation; immutable once it exists.
	firstText map[model.ConversationID]string

	// reselect wakes Run when current changes.
	reselect chan struct{}
	states   *events.Broker[State]
	wg       sync.WaitGroup
}

// NewManager creates a session manager. Nothing is selected until Run
// settles or an operation selects a conversation.
func NewManager(deps Deps, cfg Config) *Manager {
	m := &Manager{
		deps:      deps,
		cfg:       cfg.withDefaults(),
		now:       deps.Clock,
		logger:    deps.Logger,
		owner:     deps.Identity.CurrentUserID(),
		current:   model.NoConversation,
		firstText: make(map[model.ConversationID]string),
		reselect:  make(chan struct{}, 1),
		states:    events.NewBroker[State](),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	m.logger = m.logger.With("component", "session")

	m.mu.Lock()
	m.publishLocked()
	m.mu.Unlock()
	return m
}

// State returns the latest snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Only the newest unread snapshot is kept. The channel closes when ctx ends.
func (m *Manager) Subscribe(ctx context.Context) <-chan State {
	return m.states.Subscribe(ctx)
}

// Wait blocks until background work started by SendMessage has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// =============================================================================
// NAVIGATION
// =============================================================================

// SelectConversation makes id current. The NEW sentinel is logged and ignored.
func (m *Manager) SelectConversation(id model.ConversationID) {
	if id.IsNew() {
		m.logger.Warn("ignoring select of unsaved conversation")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == id {
		return
	}
	m.setCurrentLocked(id)
	m.errText = ""
	if !m.inFlight {
		m.loading = model.Idle
	}
	m.publishLocked()
}

// StartNewConversation switches to an unsaved conversation.
func (m *Manager) StartNewConversation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.IsNew() {
		return
	}
	m.setCurrentLocked(model.NewConversation)
	m.errText = ""
	if !m.inFlight {
		m.loading = model.Idle
	}
	m.publishLocked()
}

// setCurrentLocked changes the selection and wakes Run to follow it.
func (m *Manager) setCurrentLocked(id model.ConversationID) {
	m.current = id
	m.initialized = true
	select {
	case m.reselect <- struct{}{}:
	default:
	}
}

// =============================================================================
// STATE PUBLICATION
// =============================================================================

func (m *Manager) publishLocked() {
	m.states.Publish(m.snapshotLocked())
}

func (m *Manager) snapshotLocked() State {
	s := State{
		CurrentID:     m.current,
		Owner:         m.owner,
		Conversations: slices.Clone(m.conversations),
		Loading:       m.loading,
		Err:           m.errText,
	}

	var msgs []model.ChatMessage
	if m.current.IsReal() && m.storedFor == m.current {
		msgs = slices.Clone(m.stored)
	}
	if m.streaming && m.streamFor == m.current {
		msgs = append(msgs, model.ChatMessage{
			Text:           m.streamText,
			Sender:         model.SenderBot,
			ConversationID: m.current,
			Timestamp:      m.streamAt,
		})
	}
	if len(msgs) == 0 {
		msgs = []model.ChatMessage{model.WelcomeMessage()}
	}
	s.Messages = msgs
	s.Streaming = m.streaming && m.streamFor == m.current
	return s
}

// failLocked records a user-visible error and publishes it.
func (m *Manager) failLocked(text string) {
	m.errText = text
	m.publishLocked()
}

func (m *Manager) fail(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLocked(text)
}
