// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Run keeps State in step with storage and the signed-in user until ctx
// ends, and returns ctx.Err(). It
//   - merges conversation summaries with metadata into State.Conversations
//     whenever either changes,
//   - follows the messages of the current conversation, switching the
//     subscription when the selection changes,
//   - selects an initial conversation once the list has loaded or
//     SettleDelay has passed,
//   - starts over with an empty selection when the user changes.
//
// Operations work without Run, but State then only reflects their own
// effects.
func (m *Manager) Run(ctx context.Context) error {
	identities := m.deps.Identity.Changes(ctx)
	for {
		m.mu.Lock()
		owner := m.owner
		m.mu.Unlock()

		next, err := m.follow(ctx, owner, identities)
		if err != nil {
			return err
		}
		m.switchOwner(next)
	}
}

// follow serves one owner. It returns the new owner when the signed-in
// user changes.
func (m *Manager) follow(ctx context.Context, owner string, identities <-chan string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	summaryCh := m.deps.Messages.WatchSummaries(ctx, owner)
	metadataCh := m.deps.Metadata.WatchAllForOwner(ctx, owner)

	settle := time.NewTimer(m.cfg.SettleDelay)
	defer settle.Stop()

	var (
		summaries    []model.ConversationSummary
		metadata     []model.ConversationMetadata
		watched      = model.NoConversation
		messagesCh   <-chan []model.ChatMessage
		stopMessages context.CancelFunc = func() {}
	)
	defer func() { stopMessages() }()

	// track moves the message subscription to the current conversation.
	track := func() {
		m.mu.Lock()
		id := m.current
		m.mu.Unlock()
		if id == watched {
			return
		}

		stopMessages()
		stopMessages = func() {}
		messagesCh = nil
		watched = id
		if id.IsReal() {
			var msgCtx context.Context
			msgCtx, stopMessages = context.WithCancel(ctx)
			messagesCh = m.deps.Messages.WatchMessages(msgCtx, id)
		}
		m.logger.Debug("following conversation", "id", id)
	}
	track()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case id, ok := <-identities:
			if !ok {
				identities = nil
				continue
			}
			if id != owner {
				return id, nil
			}

		case s, ok := <-summaryCh:
			if !ok {
				summaryCh = nil
				continue
			}
			summaries = s
			m.updateConversations(ctx, summaries, metadata)
			m.initialize(summaries)
			track()

		case md, ok := <-metadataCh:
			if !ok {
				metadataCh = nil
				continue
			}
			metadata = md
			m.updateConversations(ctx, summaries, metadata)

		case <-settle.C:
			m.initialize(summaries)
			track()

		case <-m.reselect:
			track()

		case msgs, ok := <-messagesCh:
			if !ok {
				messagesCh = nil
				continue
			}
			m.setStored(watched, msgs)
		}
	}
}

// initialize selects the most recently active conversation, or NEW, the
// first time the conversation list is known.
func (m *Manager) initialize(summaries []model.ConversationSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}
	if m.current != model.NoConversation {
		m.initialized = true
		return
	}

	next := model.NewConversation
	if len(summaries) > 0 {
		next = summaries[0].ConversationID
	}
	m.setCurrentLocked(next)
	m.logger.Debug("initial conversation selected", "id", next)
	m.publishLocked()
}

func (m *Manager) updateConversations(ctx context.Context, summaries []model.ConversationSummary, metadata []model.ConversationMetadata) {
	slices.SortStableFunc(summaries, func(a, b model.ConversationSummary) int {
		if c := cmp.Compare(b.LastTimestamp, a.LastTimestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ConversationID, a.ConversationID)
	})
	items := m.displayItems(ctx, summaries, metadata)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = items
	m.publishLocked()
}

func (m *Manager) setStored(id model.ConversationID, msgs []model.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stored = msgs
	m.storedFor = id
	for _, msg := range msgs {
		if msg.IsUser() {
			m.firstText[id] = msg.Text
			break
		}
	}
	m.dropSavedStreamLocked()
	m.publishLocked()
}

func (m *Manager) switchOwner(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("user changed", "user", owner)
	m.owner = owner
	m.current = model.NoConversation
	m.initialized = false
	m.stored = nil
	m.storedFor = model.NoConversation
	m.conversations = nil
	m.errText = ""
	m.publishLocked()
}
