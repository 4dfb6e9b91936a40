// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who wrote a message. Persisted verbatim.
type Sender string

const (
	SenderUser Sender = "USER"
	SenderBot  Sender = "BOT"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "Você"
	case SenderBot:
		return "Mente Sã"
	default:
		return string(s)
	}
}

// ParseSender converts a stored tag back into a Sender.
// Unknown tags are reported as errors so callers can drop the row.
func ParseSender(tag string) (Sender, error) {
	switch Sender(tag) {
	case SenderUser, SenderBot:
		return Sender(tag), nil
	default:
		return "", fmt.Errorf("unknown sender tag %q", tag)
	}
}

// =============================================================================
// CHAT MESSAGE
// =============================================================================

// ChatMessage is a single message of a conversation.
// Messages are immutable once persisted; ID is zero until the store assigns one.
type ChatMessage struct {
	ID             int64          `json:"id,omitempty"`
	Text           string         `json:"text"`
	Sender         Sender         `json:"sender"`
	ConversationID ConversationID `json:"conversation_id"`
	Timestamp      int64          `json:"timestamp"` // Unix milliseconds
	OwnerID        string         `json:"owner_id,omitempty"`
}

// NewUserMessage creates a USER message stamped with now.
func NewUserMessage(id ConversationID, text string, now time.Time) ChatMessage {
	return ChatMessage{
		Text:           text,
		Sender:         SenderUser,
		ConversationID: id,
		Timestamp:      now.UnixMilli(),
	}
}

// NewBotMessage creates a BOT message stamped with now.
func NewBotMessage(id ConversationID, text string, now time.Time) ChatMessage {
	return ChatMessage{
		Text:           text,
		Sender:         SenderBot,
		ConversationID: id,
		Timestamp:      now.UnixMilli(),
	}
}

// WelcomeMessage returns the synthetic greeting shown when no conversation
// is active. It is never persisted.
func WelcomeMessage() ChatMessage {
	return ChatMessage{
		Text:           WelcomeText,
		Sender:         SenderBot,
		ConversationID: NoConversation,
	}
}

// Time returns the message timestamp as a time.Time.
func (m ChatMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// IsUser reports whether the message was written by the user.
func (m ChatMessage) IsUser() bool {
	return m.Sender == SenderUser
}

// Preview returns a truncated preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m ChatMessage) Preview(maxRunes int) string {
	return PreviewText(m.Text, maxRunes)
}

// PreviewText trims text and cuts it to maxRunes, marking the cut with "...".
func PreviewText(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

// =============================================================================
// API HISTORY
// =============================================================================

// HistoryRole is the role of a history entry as the generation API sees it.
type HistoryRole string

const (
	RoleUser  HistoryRole = "USER"
	RoleModel HistoryRole = "MODEL"
)

// HistoryEntry is one turn of API-formatted conversation history.
type HistoryEntry struct {
	Role HistoryRole
	Text string
}

// ToHistory maps persisted messages to API history, preserving order.
func ToHistory(messages []ChatMessage) []HistoryEntry {
	history := make([]HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		role := RoleUser
		if msg.Sender == SenderBot {
			role = RoleModel
		}
		history = append(history, HistoryEntry{Role: role, Text: msg.Text})
	}
	return history
}
