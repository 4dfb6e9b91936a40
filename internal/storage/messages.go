// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// MESSAGE STORE
// =============================================================================

// MessageStore is the append-only message log.
type MessageStore struct {
	db *DB
}

const messageColumns = `id, conversation_id, owner_id, sender, text, timestamp`

// Insert appends msg and returns it with the assigned row id.
func (s *MessageStore) Insert(ctx context.Context, msg model.ChatMessage) (model.ChatMessage, error) {
	if !msg.ConversationID.IsReal() {
		return msg, ErrSentinelID
	}
	if _, err := model.ParseSender(string(msg.Sender)); err != nil {
		return msg, fmt.Errorf("insert message: %w", err)
	}

	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO chat_message (conversation_id, owner_id, sender, text, timestamp) VALUES (?, ?, ?, ?, ?)`,
		int64(msg.ConversationID), msg.OwnerID, string(msg.Sender), msg.Text, msg.Timestamp)
	if err != nil {
		return msg, fmt.Errorf("insert message: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}

	s.db.messagesFeed.bump()
	return msg, nil
}

// Messages returns every message of a conversation, oldest first.
func (s *MessageStore) Messages(ctx context.Context, id model.ConversationID) ([]model.ChatMessage, error) {
	if !id.IsReal() {
		return nil, ErrSentinelID
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_message WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`,
		int64(id))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return s.scanMessages(rows)
}

// LastMessages returns at most n of the most recent messages, oldest first.
func (s *MessageStore) LastMessages(ctx context.Context, id model.ConversationID, n int) ([]model.ChatMessage, error) {
	if !id.IsReal() {
		return nil, ErrSentinelID
	}
	if n <= 0 {
		return []model.ChatMessage{}, nil
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM chat_message
			WHERE conversation_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		) ORDER BY timestamp ASC, id ASC`,
		int64(id), n)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	return s.scanMessages(rows)
}

// WatchMessages follows the messages of one conversation.
func (s *MessageStore) WatchMessages(ctx context.Context, id model.ConversationID) <-chan []model.ChatMessage {
	return watch(ctx, s.db.logger, s.db.messagesFeed, func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.Messages(ctx, id)
	})
}

// Summaries returns {id, last activity} for every conversation of owner,
// most recently active first.
func (s *MessageStore) Summaries(ctx context.Context, owner string) ([]model.ConversationSummary, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT conversation_id, MAX(timestamp) AS last_ts
		FROM chat_message
		WHERE owner_id = ?
		GROUP BY conversation_id
		ORDER BY last_ts DESC, conversation_id DESC`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	summaries := []model.ConversationSummary{}
	for rows.Next() {
		var id, ts int64
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, model.ConversationSummary{
			ConversationID: model.ConversationID(id),
			LastTimestamp:  ts,
		})
	}
	return summaries, rows.Err()
}

// WatchSummaries follows the conversation summaries of owner.
func (s *MessageStore) WatchSummaries(ctx context.Context, owner string) <-chan []model.ConversationSummary {
	return watch(ctx, s.db.logger, s.db.messagesFeed, func(ctx context.Context) ([]model.ConversationSummary, error) {
		return s.Summaries(ctx, owner)
	})
}

// FirstUserMessageText returns the text of the earliest USER message.
func (s *MessageStore) FirstUserMessageText(ctx context.Context, id model.ConversationID) (string, bool, error) {
	if !id.IsReal() {
		return "", false, ErrSentinelID
	}
	var text string
	err := s.db.db.QueryRowContext(ctx,
		`SELECT text FROM chat_message
		WHERE conversation_id = ? AND sender = ?
		ORDER BY timestamp ASC, id ASC
		LIMIT 1`,
		int64(id), string(model.SenderUser)).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query first user message: %w", err)
	}
	return text, true, nil
}

// DeleteAll removes every message of a conversation and reports how many.
func (s *MessageStore) DeleteAll(ctx context.Context, id model.ConversationID) (int64, error) {
	if !id.IsReal() {
		return 0, ErrSentinelID
	}
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM chat_message WHERE conversation_id = ?`, int64(id))
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.db.messagesFeed.bump()
	}
	return n, nil
}

// scanMessages reads message rows, dropping any with an unknown sender tag.
func (s *MessageStore) scanMessages(rows *sql.Rows) ([]model.ChatMessage, error) {
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var (
			msg    model.ChatMessage
			convID int64
			sender string
		)
		if err := rows.Scan(&msg.ID, &convID, &msg.OwnerID, &sender, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		parsed, err := model.ParseSender(sender)
		if err != nil {
			s.db.logger.Warn("skipping message row", "id", msg.ID, "conversation", convID, "err", err)
			continue
		}
		msg.Sender = parsed
		msg.ConversationID = model.ConversationID(convID)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
