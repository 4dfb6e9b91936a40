// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentesa/internal/events"
	"github.com/jeranaias/mentesa/internal/identity"
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/storage"
	"github.com/jeranaias/mentesa/internal/topics"
)

// =============================================================================
// FAKES
// =============================================================================

type streamCall struct {
	history []model.HistoryEntry
	message string
}

// fakeStreamer replays fragments, optionally pausing on gate after
// pauseAfter fragments, then yields err if set.
type fakeStreamer struct {
	mu         sync.Mutex
	calls      []streamCall
	fragments  []string
	err        error
	gate       chan struct{}
	pauseAfter int
}

func (f *fakeStreamer) StartStream(ctx context.Context, history []model.HistoryEntry, message string) iter.Seq2[string, error] {
	f.mu.Lock()
	f.calls = append(f.calls, streamCall{history: history, message: message})
	fragments, err, gate, pauseAfter := f.fragments, f.err, f.gate, f.pauseAfter
	f.mu.Unlock()

	return func(yield func(string, error) bool) {
		for i := 0; i <= len(fragments); i++ {
			if gate != nil && i == pauseAfter {
				select {
				case <-gate:
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				}
			}
			if i == len(fragments) {
				break
			}
			if !yield(fragments[i], nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

func (f *fakeStreamer) Calls() []streamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]streamCall(nil), f.calls...)
}

type fakeIdentity struct {
	mu      sync.Mutex
	user    string
	changes *events.Broker[string]
}

func newFakeIdentity(user string) *fakeIdentity {
	f := &fakeIdentity{user: user, changes: events.NewBroker[string]()}
	f.changes.Publish(user)
	return f
}

func (f *fakeIdentity) CurrentUserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fakeIdentity) Changes(ctx context.Context) <-chan string {
	return f.changes.Subscribe(ctx)
}

func (f *fakeIdentity) set(user string) {
	f.mu.Lock()
	f.user = user
	f.mu.Unlock()
	f.changes.Publish(user)
}

// fakeClock advances one millisecond per reading.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// failingTitles fails every title lookup.
type failingTitles struct {
	*storage.MetadataStore
}

func (failingTitles) Title(context.Context, model.ConversationID) (string, bool, error) {
	return "", false, errors.New("disk I/O error")
}

var errDisk = errors.New("disk I/O error")

// failingMessages fails Insert for messages from failSender.
type failingMessages struct {
	MessageStore
	failSender model.Sender
}

func (f failingMessages) Insert(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error) {
	if msg.Sender == f.failSender {
		return model.ChatMessage{}, errDisk
	}
	return f.MessageStore.Insert(ctx, msg)
}

// failingMetadata fails Delete and Upsert; the rest reaches the database.
type failingMetadata struct {
	MetadataStore
}

func (failingMetadata) Delete(context.Context, model.ConversationID) error {
	return errDisk
}

func (failingMetadata) Upsert(context.Context, model.ConversationID, *string, string) error {
	return errDisk
}

func failMessagesFrom(sender model.Sender) func(*Deps) {
	return func(d *Deps) { d.Messages = failingMessages{MessageStore: d.Messages, failSender: sender} }
}

func failMetadataWrites(d *Deps) {
	d.Metadata = failingMetadata{MetadataStore: d.Metadata}
}

// =============================================================================
// HARNESS
// =============================================================================

var baseTime = time.Date(2025, 3, 10, 14, 0, 0, 0, time.Local)

type harness struct {
	m        *Manager
	db       *storage.DB
	streamer *fakeStreamer
	identity *fakeIdentity
}

// newHarness builds a manager over an in-memory database. Each wrap may
// replace stores in deps, for instance with a failing one.
func newHarness(t *testing.T, wraps ...func(*Deps)) *harness {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.MemoryPath, nil)
	require.NoError(t, err)

	h := &harness{
		db:       db,
		streamer: &fakeStreamer{fragments: []string{"Respire ", "fundo. ", "Estou aqui com você."}},
		identity: newFakeIdentity(identity.LocalUser),
	}
	clock := &fakeClock{t: baseTime.Add(time.Hour)}
	deps := Deps{
		Messages: db.Messages(),
		Metadata: db.Metadata(),
		Streamer: h.streamer,
		Identity: h.identity,
		Filter:   topics.Default(),
		Clock:    clock.Now,
	}
	for _, wrap := range wraps {
		wrap(&deps)
	}
	h.m = NewManager(deps, Config{SettleDelay: 20 * time.Millisecond})

	t.Cleanup(func() {
		h.m.Wait()
		db.Close()
	})
	return h
}

// start runs the manager until the test ends.
func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// seed stores a conversation of alternating USER/BOT messages, one minute
// apart, starting at the time encoded in id.
func (h *harness) seed(t *testing.T, id model.ConversationID, owner string, texts ...string) {
	t.Helper()
	for i, text := range texts {
		sender := model.SenderUser
		if i%2 == 1 {
			sender = model.SenderBot
		}
		_, err := h.db.Messages().Insert(context.Background(), model.ChatMessage{
			Text:           text,
			Sender:         sender,
			ConversationID: id,
			Timestamp:      id.Time().Add(time.Duration(i) * time.Minute).UnixMilli(),
			OwnerID:        owner,
		})
		require.NoError(t, err)
	}
}

func waitFor(t *testing.T, m *Manager, what string, cond func(State) bool) State {
	t.Helper()
	var last State
	ok := assert.Eventually(t, func() bool {
		last = m.State()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, what)
	if !ok {
		t.Fatalf("last state: %+v", last)
	}
	return last
}

func idAt(minutes int) model.ConversationID {
	return model.NewConversationID(baseTime.Add(time.Duration(minutes) * time.Minute))
}

func texts(msgs []model.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = string(msg.Sender) + ":" + msg.Text
	}
	return out
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HistoryWindow != 20 {
		t.Errorf("Default HistoryWindow = %d, want 20", cfg.HistoryWindow)
	}
	if cfg.TitlePreviewRunes != 30 {
		t.Errorf("Default TitlePreviewRunes = %d, want 30", cfg.TitlePreviewRunes)
	}
	if cfg.SettleDelay <= 0 {
		t.Errorf("Default SettleDelay = %v, want > 0", cfg.SettleDelay)
	}

	got := Config{HistoryWindow: 5}.withDefaults()
	if got.HistoryWindow != 5 || got.TitlePreviewRunes != 30 {
		t.Errorf("withDefaults() = %+v", got)
	}
}

// =============================================================================
// INITIALIZATION TESTS
// =============================================================================

func TestManager_InitialState(t *testing.T) {
	h := newHarness(t)

	s := h.m.State()
	assert.Equal(t, model.NoConversation, s.CurrentID)
	assert.Equal(t, identity.LocalUser, s.Owner)
	assert.Equal(t, model.Idle, s.Loading)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, model.WelcomeText, s.Messages[0].Text)
}

func TestManager_InitSelectsNewWhenEmpty(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	s := waitFor(t, h.m, "NEW selected", func(s State) bool {
		return s.CurrentID == model.NewConversation
	})
	assert.Empty(t, s.Conversations)
	assert.Equal(t, []string{"BOT:" + model.WelcomeText}, texts(s.Messages))
}

func TestManager_InitSelectsMostRecent(t *testing.T) {
	h := newHarness(t)
	a, b := idAt(0), idAt(10)
	h.seed(t, a, identity.LocalUser, "Conversa antiga", "Resposta")
	h.seed(t, b, identity.LocalUser, "Conversa recente", "Resposta")
	h.start(t)

	s := waitFor(t, h.m, "B selected with messages", func(s State) bool {
		return s.CurrentID == b && len(s.Messages) == 2 && len(s.Conversations) == 2
	})
	assert.Equal(t, b, s.Conversations[0].ID)
	assert.Equal(t, a, s.Conversations[1].ID)
	assert.Equal(t, "Conversa recente", s.Conversations[0].DisplayTitle)
	assert.Equal(t, []string{"USER:Conversa recente", "BOT:Resposta"}, texts(s.Messages))
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestManager_SendProhibitedTopic(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	waitFor(t, h.m, "NEW selected", func(s State) bool { return s.CurrentID.IsNew() })

	require.NoError(t, h.m.SendMessage(context.Background(), "Qual a fórmula da física quântica?"))

	assert.Empty(t, h.streamer.Calls(), "the generation API must not be called")
	s := waitFor(t, h.m, "refusal persisted", func(s State) bool {
		return len(s.Messages) == 2 && s.Messages[1].Sender == model.SenderBot
	})
	assert.True(t, s.CurrentID.IsReal())
	assert.Equal(t, model.Idle, s.Loading)
	assert.Empty(t, s.Err)
	assert.Equal(t, []string{
		"USER:Qual a fórmula da física quântica?",
		"BOT:" + model.RefusalText,
	}, texts(s.Messages))

	h.m.Wait()
	meta, found, err := h.db.Metadata().Get(context.Background(), s.CurrentID)
	require.NoError(t, err)
	require.True(t, found, "metadata row should be created for a new conversation")
	assert.Nil(t, meta.CustomTitle)
	assert.Equal(t, identity.LocalUser, meta.OwnerID)
}

func TestManager_SendStreamsReply(t *testing.T) {
	h := newHarness(t)
	h.streamer.gate = make(chan struct{})
	h.streamer.pauseAfter = 1
	h.start(t)
	waitFor(t, h.m, "NEW selected", func(s State) bool { return s.CurrentID.IsNew() })

	errc := make(chan error, 1)
	go func() { errc <- h.m.SendMessage(context.Background(), "Estou ansioso hoje") }()

	s := waitFor(t, h.m, "partial reply visible", func(s State) bool {
		last := s.Messages[len(s.Messages)-1]
		return s.Streaming && last.Sender == model.SenderBot && last.Text == "Respire "
	})
	assert.Equal(t, model.Loading, s.Loading)

	close(h.streamer.gate)
	require.NoError(t, <-errc)

	s = waitFor(t, h.m, "reply persisted", func(s State) bool {
		return !s.Streaming && len(s.Messages) == 2 && s.Messages[1].ID != 0
	})
	assert.Equal(t, model.Idle, s.Loading)
	assert.Equal(t, []string{
		"USER:Estou ansioso hoje",
		"BOT:Respire fundo. Estou aqui com você.",
	}, texts(s.Messages))
	assert.Less(t, s.Messages[0].ID, s.Messages[1].ID, "USER message is stored before BOT")

	calls := h.streamer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Estou ansioso hoje", calls[0].message)
	assert.Equal(t, []model.HistoryEntry{{Role: model.RoleModel, Text: model.WelcomeText}},
		calls[0].history, "the first turn carries the welcome message")
	assert.Equal(t, int64(s.CurrentID), s.Messages[0].Timestamp,
		"a new conversation's id is its first message's timestamp")

	s = waitFor(t, h.m, "listed", func(s State) bool { return len(s.Conversations) == 1 })
	assert.Equal(t, "Estou ansioso hoje", s.Conversations[0].DisplayTitle)
}

func TestManager_SendUsesHistoryWindow(t *testing.T) {
	h := newHarness(t)
	id := idAt(0)
	var seeded []string
	for i := range 25 {
		seeded = append(seeded, fmt.Sprintf("mensagem %d", i))
	}
	h.seed(t, id, identity.LocalUser, seeded...)
	h.start(t)
	waitFor(t, h.m, "seeded conversation selected", func(s State) bool {
		return s.CurrentID == id && len(s.Messages) == 25
	})

	require.NoError(t, h.m.SendMessage(context.Background(), "Estou ansioso hoje"))

	calls := h.streamer.Calls()
	require.Len(t, calls, 1)
	history := calls[0].history
	require.Len(t, history, 20)
	assert.Equal(t, model.HistoryEntry{Role: model.RoleUser, Text: "mensagem 6"}, history[1])
	assert.Equal(t, model.HistoryEntry{Role: model.RoleUser, Text: "mensagem 24"}, history[19])
	for _, entry := range history {
		assert.NotEqual(t, "Estou ansioso hoje", entry.Text, "the new message is passed separately")
	}
}

func TestManager_InvalidReplyUsesFallback(t *testing.T) {
	h := newHarness(t)
	h.streamer.fragments = []string{"A fórmula ", "é simples."}
	h.start(t)

	require.NoError(t, h.m.SendMessage(context.Background(), "Me ajuda?"))

	s := waitFor(t, h.m, "fallback persisted", func(s State) bool {
		return !s.Streaming && len(s.Messages) == 2
	})
	assert.Equal(t, "BOT:"+model.FallbackText, texts(s.Messages)[1])
}

func TestManager_StreamError(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		wantErr   string
	}{
		{"before first fragment", nil, msgStreamNotOpened},
		{"mid stream", []string{"Sinto "}, msgStreamFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.streamer.fragments = tt.fragments
			h.streamer.err = errors.New("connection reset")
			h.start(t)

			err := h.m.SendMessage(context.Background(), "Estou triste")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "connection reset")

			s := waitFor(t, h.m, "user message kept", func(s State) bool {
				return len(s.Messages) == 1 && s.Messages[0].IsUser()
			})
			assert.Equal(t, model.Error, s.Loading)
			assert.Equal(t, tt.wantErr, s.Err)
			assert.False(t, s.Streaming)

			stored, err := h.db.Messages().Messages(context.Background(), s.CurrentID)
			require.NoError(t, err)
			assert.Equal(t, []string{"USER:Estou triste"}, texts(stored))
		})
	}
}

func TestManager_SaveFailure(t *testing.T) {
	tests := []struct {
		name       string
		failSender model.Sender
		wantStream bool
	}{
		{"user message", model.SenderUser, false},
		{"reply", model.SenderBot, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, failMessagesFrom(tt.failSender))
			h.start(t)
			waitFor(t, h.m, "NEW selected", func(s State) bool { return s.CurrentID.IsNew() })

			err := h.m.SendMessage(context.Background(), "Estou ansioso hoje")
			require.ErrorIs(t, err, errDisk)

			s := h.m.State()
			assert.Equal(t, model.Error, s.Loading)
			assert.Equal(t, msgSaveFailed, s.Err)
			assert.False(t, s.Streaming)
			assert.Equal(t, tt.wantStream, len(h.streamer.Calls()) == 1)

			stored, err := h.db.Messages().Messages(context.Background(), s.CurrentID)
			require.NoError(t, err)
			for _, msg := range stored {
				assert.True(t, msg.IsUser(), "the partial reply must not be stored")
			}
			for _, msg := range s.Messages {
				assert.NotEqual(t, "Respire fundo. Estou aqui com você.", msg.Text)
			}

			// The guard is released after a failure.
			err = h.m.SendMessage(context.Background(), "De novo")
			assert.NotErrorIs(t, err, ErrBusy)
		})
	}
}

func TestManager_SingleFlight(t *testing.T) {
	h := newHarness(t)
	h.streamer.gate = make(chan struct{})
	h.start(t)

	errc := make(chan error, 1)
	go func() { errc <- h.m.SendMessage(context.Background(), "Primeira") }()
	waitFor(t, h.m, "loading", func(s State) bool { return s.Loading == model.Loading })

	err := h.m.SendMessage(context.Background(), "Segunda")
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, ErrBusy.Message, h.m.State().Err)

	close(h.streamer.gate)
	require.NoError(t, <-errc)
	require.Len(t, h.streamer.Calls(), 1)

	// The guard is released once the first send is done.
	require.NoError(t, h.m.SendMessage(context.Background(), "Terceira"))
}

func TestManager_SendBlank(t *testing.T) {
	h := newHarness(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		err := h.m.SendMessage(context.Background(), text)
		assert.ErrorIs(t, err, ErrBlankMessage)
	}

	s := h.m.State()
	assert.Equal(t, ErrBlankMessage.Message, s.Err)
	assert.Equal(t, model.NoConversation, s.CurrentID)
	assert.Empty(t, h.streamer.Calls())

	summaries, err := h.db.Messages().Summaries(context.Background(), identity.LocalUser)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

// =============================================================================
// NAVIGATION TESTS
// =============================================================================

func TestManager_SelectConversation(t *testing.T) {
	h := newHarness(t)
	a := idAt(0)
	h.seed(t, a, identity.LocalUser, "Oi")

	h.m.SelectConversation(model.NewConversation)
	assert.Equal(t, model.NoConversation, h.m.State().CurrentID, "NEW is ignored")

	h.m.SendMessage(context.Background(), " ")
	require.NotEmpty(t, h.m.State().Err)

	h.m.SelectConversation(a)
	s := h.m.State()
	assert.Equal(t, a, s.CurrentID)
	assert.Empty(t, s.Err)
	assert.Equal(t, model.Idle, s.Loading)
}

func TestManager_StartNewConversation(t *testing.T) {
	h := newHarness(t)
	a := idAt(0)
	h.seed(t, a, identity.LocalUser, "Oi", "Olá")
	h.start(t)
	waitFor(t, h.m, "A loaded", func(s State) bool { return s.CurrentID == a && len(s.Messages) == 2 })

	h.m.StartNewConversation()
	s := h.m.State()
	assert.True(t, s.CurrentID.IsNew())
	assert.Equal(t, []string{"BOT:" + model.WelcomeText}, texts(s.Messages))

	h.m.StartNewConversation()
	assert.True(t, h.m.State().CurrentID.IsNew())
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestManager_DeleteCurrentSelectsPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := idAt(0), idAt(10)
	h.seed(t, a, identity.LocalUser, "Conversa A")
	h.seed(t, b, identity.LocalUser, "Conversa B")
	require.NoError(t, h.db.Metadata().EnsureExists(ctx, b, identity.LocalUser))
	h.start(t)
	waitFor(t, h.m, "B selected", func(s State) bool { return s.CurrentID == b })

	require.NoError(t, h.m.DeleteConversation(ctx, b))
	assert.Equal(t, a, h.m.State().CurrentID)

	s := waitFor(t, h.m, "only A listed", func(s State) bool {
		return len(s.Conversations) == 1 && len(s.Messages) == 1
	})
	assert.Equal(t, a, s.Conversations[0].ID)
	assert.Equal(t, []string{"USER:Conversa A"}, texts(s.Messages))

	_, found, err := h.db.Metadata().Get(ctx, b)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, h.m.DeleteConversation(ctx, a))
	assert.True(t, h.m.State().CurrentID.IsNew(), "deleting the last conversation selects NEW")
	waitFor(t, h.m, "nothing listed", func(s State) bool { return len(s.Conversations) == 0 })
}

func TestManager_DeleteOtherKeepsSelection(t *testing.T) {
	h := newHarness(t)
	a, b := idAt(0), idAt(10)
	h.seed(t, a, identity.LocalUser, "Conversa A")
	h.seed(t, b, identity.LocalUser, "Conversa B")
	h.m.SelectConversation(b)

	require.NoError(t, h.m.DeleteConversation(context.Background(), a))
	assert.Equal(t, b, h.m.State().CurrentID)
}

func TestManager_DeleteMetadataFailure(t *testing.T) {
	h := newHarness(t, failMetadataWrites)
	ctx := context.Background()
	a := idAt(0)
	h.seed(t, a, identity.LocalUser, "Conversa A", "Resposta")
	require.NoError(t, h.db.Metadata().EnsureExists(ctx, a, identity.LocalUser))
	h.m.SelectConversation(a)

	err := h.m.DeleteConversation(ctx, a)
	require.ErrorIs(t, err, errDisk)

	s := h.m.State()
	assert.Equal(t, msgDeleteFailed, s.Err)
	assert.Equal(t, a, s.CurrentID, "selection is kept on failure")

	// Messages are gone; nothing restores them.
	stored, err := h.db.Messages().Messages(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, stored)
	_, found, err := h.db.Metadata().Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestManager_DeleteRejectsSentinels(t *testing.T) {
	h := newHarness(t)

	for _, id := range []model.ConversationID{model.NewConversation, model.NoConversation} {
		err := h.m.DeleteConversation(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotPersisted)
	}
}

// =============================================================================
// RENAME TESTS
// =============================================================================

func TestManager_RenameBlankRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := idAt(0)
	h.seed(t, a, identity.LocalUser, "Oi")
	original := "Original"
	require.NoError(t, h.db.Metadata().Upsert(ctx, a, &original, identity.LocalUser))

	err := h.m.RenameConversation(ctx, a, "  ")
	assert.ErrorIs(t, err, ErrBlankTitle)
	assert.Equal(t, ErrBlankTitle.Message, h.m.State().Err)

	title, ok, err := h.db.Metadata().Title(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Original", title)
}

func TestManager_Rename(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := idAt(0)
	h.seed(t, a, identity.LocalUser, "Oi")
	h.start(t)

	require.NoError(t, h.m.RenameConversation(ctx, a, "  Dia difícil  "))

	title, ok, err := h.db.Metadata().Title(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Dia difícil", title)

	waitFor(t, h.m, "title listed", func(s State) bool {
		item, ok := s.Conversation(a)
		return ok && item.DisplayTitle == "Dia difícil"
	})

	assert.ErrorIs(t, h.m.RenameConversation(ctx, model.NewConversation, "Título"), ErrNotPersisted)
}

func TestManager_RenameFailure(t *testing.T) {
	h := newHarness(t, failMetadataWrites)
	ctx := context.Background()
	a := idAt(0)
	h.seed(t, a, identity.LocalUser, "Oi")

	err := h.m.RenameConversation(ctx, a, "Dia difícil")
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, msgRenameFailed, h.m.State().Err)

	_, ok, err := h.db.Metadata().Title(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok)

	// A later success clears the error.
	h.m.StartNewConversation()
	assert.Empty(t, h.m.State().Err)
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestManager_DisplayTitle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	custom, long, short, botOnly, empty := idAt(0), idAt(1), idAt(2), idAt(3), idAt(4)
	title := "  Minha conversa "
	require.NoError(t, h.db.Metadata().Upsert(ctx, custom, &title, identity.LocalUser))
	blank := "   "
	require.NoError(t, h.db.Metadata().Upsert(ctx, short, &blank, identity.LocalUser))
	h.seed(t, long, identity.LocalUser, "Tenho tido muita dificuldade para dormir nas últimas semanas")
	h.seed(t, short, identity.LocalUser, "Oi")
	_, err := h.db.Messages().Insert(ctx, model.NewBotMessage(botOnly, "Olá", botOnly.Time()))
	require.NoError(t, err)

	tests := []struct {
		name string
		id   model.ConversationID
		want string
	}{
		{"new conversation", model.NewConversation, "Nova Conversa"},
		{"custom title", custom, "Minha conversa"},
		{"first user message truncated", long, "Tenho tido muita dificuldade p..."},
		{"blank custom title falls through", short, "Oi"},
		{"no user message", botOnly, botOnly.Time().Format("02/01/2006 15:04")},
		{"no messages", empty, empty.Time().Format("02/01/2006 15:04")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.m.DisplayTitle(ctx, tt.id)
			if got != tt.want {
				t.Errorf("DisplayTitle(%v) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestManager_DisplayTitleLookupFailure(t *testing.T) {
	db, err := storage.Open(context.Background(), storage.MemoryPath, nil)
	require.NoError(t, err)
	defer db.Close()

	m := NewManager(Deps{
		Messages: db.Messages(),
		Metadata: failingTitles{db.Metadata()},
		Streamer: &fakeStreamer{},
		Identity: newFakeIdentity(identity.LocalUser),
		Filter:   topics.Default(),
	}, DefaultConfig())

	id := idAt(0)
	assert.Equal(t, fmt.Sprintf("Conversa %d", int64(id)), m.DisplayTitle(context.Background(), id))
	assert.Equal(t, "Nova Conversa", m.DisplayTitle(context.Background(), model.NewConversation))
}

// =============================================================================
// IDENTITY TESTS
// =============================================================================

func TestManager_UserChangeResetsSelection(t *testing.T) {
	h := newHarness(t)
	a, c := idAt(0), idAt(5)
	h.seed(t, a, identity.LocalUser, "Conversa local")
	h.seed(t, c, "ana", "Conversa da Ana")
	h.start(t)

	s := waitFor(t, h.m, "local conversation", func(s State) bool {
		return s.CurrentID == a && len(s.Conversations) == 1
	})
	assert.Equal(t, a, s.Conversations[0].ID)

	h.identity.set("ana")
	s = waitFor(t, h.m, "Ana's conversation", func(s State) bool {
		return s.Owner == "ana" && s.CurrentID == c && len(s.Conversations) == 1 && len(s.Messages) == 1
	})
	assert.Equal(t, c, s.Conversations[0].ID)
	assert.Equal(t, "USER:Conversa da Ana", texts(s.Messages)[0])

	require.NoError(t, h.m.SendMessage(context.Background(), "Estou melhor"))
	stored, err := h.db.Messages().Messages(context.Background(), c)
	require.NoError(t, err)
	for _, msg := range stored {
		assert.Equal(t, "ana", msg.OwnerID)
	}
}

// =============================================================================
// SUBSCRIPTION TESTS
// =============================================================================

func TestManager_Subscribe(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := h.m.Subscribe(ctx)
	first := <-states
	assert.Equal(t, model.NoConversation, first.CurrentID)

	h.m.StartNewConversation()
	select {
	case s := <-states:
		assert.True(t, s.CurrentID.IsNew())
	case <-time.After(time.Second):
		t.Fatal("no state published")
	}

	cancel()
	for range states {
	}
}

func TestState_Conversation(t *testing.T) {
	s := State{Conversations: []model.ConversationDisplayItem{{ID: 7, DisplayTitle: "Sete"}}}

	item, ok := s.Conversation(7)
	if !ok || item.DisplayTitle != "Sete" {
		t.Errorf("Conversation(7) = %+v, %v", item, ok)
	}
	if _, ok := s.Conversation(8); ok {
		t.Error("Conversation(8) should not be found")
	}
	if strings.TrimSpace(model.FallbackTitle(8)) == "" {
		t.Error("fallback title must not be blank")
	}
}
