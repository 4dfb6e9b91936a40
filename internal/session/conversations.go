// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// DELETE AND RENAME
// =============================================================================

// DeleteConversation removes the messages and the metadata of id. The two
// deletes are not atomic: if the second fails the first is not undone.
// When id was current the most recently active remaining conversation is
// selected, or NEW when none remain.
func (m *Manager) DeleteConversation(ctx context.Context, id model.ConversationID) error {
	if !id.IsReal() {
		m.fail(ErrNotPersisted.Message)
		return ErrNotPersisted
	}

	n, err := m.deps.Messages.DeleteAll(ctx, id)
	if err != nil {
		m.logger.Error("failed to delete messages", "id", id, "err", err)
		m.fail(msgDeleteFailed)
		return fmt.Errorf("delete messages of %s: %w", id, err)
	}
	if err := m.deps.Metadata.Delete(ctx, id); err != nil {
		m.logger.Error("failed to delete metadata", "id", id, "err", err)
		m.fail(msgDeleteFailed)
		return fmt.Errorf("delete metadata of %s: %w", id, err)
	}
	m.logger.Info("conversation deleted", "id", id, "messages", n)

	m.mu.Lock()
	delete(m.firstText, id)
	wasCurrent := m.current == id
	owner := m.owner
	m.mu.Unlock()

	next := model.NewConversation
	if wasCurrent {
		summaries, err := m.deps.Messages.Summaries(ctx, owner)
		if err != nil {
			m.logger.Warn("failed to list remaining conversations", "err", err)
		}
		for _, s := range summaries {
			if s.ConversationID != id {
				next = s.ConversationID
				break
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// The selection may have moved while the deletes ran.
	if wasCurrent && m.current == id {
		m.setCurrentLocked(next)
	}
	m.errText = ""
	m.publishLocked()
	return nil
}

// RenameConversation sets a custom title. Titles are trimmed; a blank title
// is rejected without touching storage.
func (m *Manager) RenameConversation(ctx context.Context, id model.ConversationID, title string) error {
	if !id.IsReal() {
		m.fail(ErrNotPersisted.Message)
		return ErrNotPersisted
	}
	title = strings.TrimSpace(title)
	if title == "" {
		m.fail(ErrBlankTitle.Message)
		return ErrBlankTitle
	}

	m.mu.Lock()
	owner := m.owner
	m.mu.Unlock()

	if err := m.deps.Metadata.Upsert(ctx, id, &title, owner); err != nil {
		m.logger.Error("failed to rename conversation", "id", id, "err", err)
		m.fail(msgRenameFailed)
		return fmt.Errorf("rename %s: %w", id, err)
	}
	m.logger.Debug("conversation renamed", "id", id)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.errText = ""
	m.publishLocked()
	return nil
}

// =============================================================================
// TITLES
// =============================================================================

// DisplayTitle returns a non-empty title for id. It tries, in order, the
// custom title, the start of the first user message and the creation time.
// Lookup failures yield "Conversa {id}".
func (m *Manager) DisplayTitle(ctx context.Context, id model.ConversationID) string {
	if id.IsNew() {
		return model.NewConversationTitle
	}
	if !id.IsReal() {
		return model.FallbackTitle(id)
	}

	title, ok, err := m.deps.Metadata.Title(ctx, id)
	if err != nil {
		m.logger.Warn("title lookup failed", "id", id, "err", err)
		return model.FallbackTitle(id)
	}
	if ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return m.contentTitle(ctx, id)
}

// contentTitle derives a title from the first user message, or from the
// time encoded in the id.
func (m *Manager) contentTitle(ctx context.Context, id model.ConversationID) string {
	m.mu.Lock()
	text, cached := m.firstText[id]
	m.mu.Unlock()

	if !cached {
		var (
			found bool
			err   error
		)
		text, found, err = m.deps.Messages.FirstUserMessageText(ctx, id)
		if err != nil {
			m.logger.Warn("first message lookup failed", "id", id, "err", err)
			return model.FallbackTitle(id)
		}
		if found {
			m.mu.Lock()
			m.firstText[id] = text
			m.mu.Unlock()
		}
	}

	if preview := model.PreviewText(text, m.cfg.TitlePreviewRunes); preview != "" {
		return preview
	}
	if formatted := id.Time().Format(model.TitleTimeLayout); formatted != "" {
		return formatted
	}
	return model.FallbackTitle(id)
}

// displayItems joins summaries with metadata titles, keeping summary order.
func (m *Manager) displayItems(ctx context.Context, summaries []model.ConversationSummary, metadata []model.ConversationMetadata) []model.ConversationDisplayItem {
	titles := make(map[model.ConversationID]string, len(metadata))
	for _, meta := range metadata {
		if title, ok := meta.Title(); ok {
			titles[meta.ConversationID] = title
		}
	}

	items := make([]model.ConversationDisplayItem, 0, len(summaries))
	for _, s := range summaries {
		title, ok := titles[s.ConversationID]
		if !ok {
			title = m.contentTitle(ctx, s.ConversationID)
		}
		items = append(items, model.ConversationDisplayItem{
			ID:            s.ConversationID,
			DisplayTitle:  title,
			LastTimestamp: s.LastTimestamp,
		})
	}
	return items
}
