// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// SEND
// =============================================================================

// SendMessage persists text as a USER message in the current conversation
// and persists one BOT reply for it. A conversation is created when none is
// selected. Only one send may be in flight; a second one gets ErrBusy.
//
// Failures are returned and also published in State.Err. A failed reply
// leaves the user message in place.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		m.fail(ErrBlankMessage.Message)
		return ErrBlankMessage
	}

	now := m.now()

	m.mu.Lock()
	if m.inFlight {
		m.failLocked(ErrBusy.Message)
		m.mu.Unlock()
		return ErrBusy
	}
	m.inFlight = true
	m.loading = model.Loading
	m.errText = ""
	m.streaming = false

	owner := m.owner
	id := m.current
	minted := !id.IsReal()
	if minted {
		id = model.NewConversationID(now)
		m.setCurrentLocked(id)
	}
	m.publishLocked()
	m.mu.Unlock()

	if minted {
		m.logger.Debug("conversation created", "id", id)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.deps.Metadata.EnsureExists(context.WithoutCancel(ctx), id, owner); err != nil {
				m.logger.Warn("failed to create conversation metadata", "id", id, "err", err)
			}
		}()
	}

	// A new conversation's id is its first message's timestamp.
	userMsg := model.NewUserMessage(id, text, now)
	userMsg.OwnerID = owner
	saved, err := m.deps.Messages.Insert(ctx, userMsg)
	if err != nil {
		m.logger.Error("failed to save user message", "id", id, "err", err)
		m.finish(model.Error, msgSaveFailed)
		return fmt.Errorf("save user message: %w", err)
	}

	if m.deps.Filter.IsProhibitedTopic(text) {
		m.logger.Info("prohibited topic, replying with refusal", "id", id)
		return m.saveReply(ctx, id, owner, model.RefusalText)
	}

	history, err := m.history(ctx, id, saved.ID)
	if err != nil {
		m.logger.Error("failed to load history", "id", id, "err", err)
		m.finish(model.Error, msgStreamNotOpened)
		return fmt.Errorf("load history: %w", err)
	}

	reply, err := m.stream(ctx, id, history, text)
	if err != nil {
		return err
	}

	if strings.TrimSpace(reply) == "" || !m.deps.Filter.IsValidResponse(reply) {
		m.logger.Info("reply rejected, using fallback", "id", id)
		reply = model.FallbackText
	}
	return m.saveReply(ctx, id, owner, reply)
}

// history returns up to HistoryWindow persisted messages before the turn
// being answered, oldest first. The first turn of a conversation gets the
// welcome message instead, so the model sees what the user was greeted with.
func (m *Manager) history(ctx context.Context, id model.ConversationID, turnID int64) ([]model.HistoryEntry, error) {
	recent, err := m.deps.Messages.LastMessages(ctx, id, m.cfg.HistoryWindow+1)
	if err != nil {
		return nil, err
	}
	recent = slices.DeleteFunc(recent, func(msg model.ChatMessage) bool {
		return msg.ID == turnID
	})
	if len(recent) == 0 {
		recent = []model.ChatMessage{model.WelcomeMessage()}
	}
	if len(recent) > m.cfg.HistoryWindow {
		recent = recent[len(recent)-m.cfg.HistoryWindow:]
	}
	return model.ToHistory(recent), nil
}

// stream runs the generation call, publishing the accumulated text after
// every fragment. On error the partial text is dropped.
func (m *Manager) stream(ctx context.Context, id model.ConversationID, history []model.HistoryEntry, text string) (string, error) {
	m.mu.Lock()
	m.streaming = true
	m.streamFor = id
	m.streamText = ""
	m.streamAt = m.now().UnixMilli()
	m.savedReply = 0
	m.mu.Unlock()

	var (
		sb        strings.Builder
		fragments int
	)
	for fragment, err := range m.deps.Streamer.StartStream(ctx, history, text) {
		if err != nil {
			human := msgStreamFailed
			if fragments == 0 {
				human = msgStreamNotOpened
			}
			m.logger.Error("reply stream failed", "id", id, "fragments", fragments, "err", err)

			m.mu.Lock()
			m.streaming = false
			m.mu.Unlock()
			m.finish(model.Error, human)
			return "", fmt.Errorf("stream reply: %w", err)
		}

		fragments++
		sb.WriteString(fragment)

		m.mu.Lock()
		m.streamText = sb.String()
		m.publishLocked()
		m.mu.Unlock()
	}

	m.logger.Debug("reply stream complete", "id", id, "fragments", fragments)
	return sb.String(), nil
}

// saveReply persists a BOT message and ends the send.
func (m *Manager) saveReply(ctx context.Context, id model.ConversationID, owner, text string) error {
	msg := model.NewBotMessage(id, text, m.now())
	msg.OwnerID = owner
	saved, err := m.deps.Messages.Insert(ctx, msg)
	if err != nil {
		m.logger.Error("failed to save reply", "id", id, "err", err)
		m.mu.Lock()
		m.streaming = false
		m.mu.Unlock()
		m.finish(model.Error, msgSaveFailed)
		return fmt.Errorf("save reply: %w", err)
	}

	m.mu.Lock()
	if m.streaming && m.streamFor == id {
		m.streamText = text
		m.savedReply = saved.ID
		m.dropSavedStreamLocked()
	}
	m.mu.Unlock()

	m.finish(model.Idle, "")
	return nil
}

// finish ends the send: it releases the single-flight guard and publishes
// the final loading state. Every path out of SendMessage after the guard
// is taken goes through here.
func (m *Manager) finish(state model.LoadingState, errText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	m.loading = state
	m.errText = errText
	m.publishLocked()
}

// dropSavedStreamLocked hides the partial reply once its persisted copy
// has been delivered by the message watch.
func (m *Manager) dropSavedStreamLocked() {
	if !m.streaming || m.savedReply == 0 || m.storedFor != m.streamFor {
		return
	}
	for _, msg := range m.stored {
		if msg.ID == m.savedReply {
			m.streaming = false
			return
		}
	}
}
