// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CONVERSATION IDENTIFIERS
// =============================================================================

// ConversationID identifies a conversation. Real ids are the Unix millisecond
// timestamp of the first send; two sends in the same millisecond collide.
type ConversationID int64

const (
	// NoConversation means nothing is selected yet.
	NoConversation ConversationID = 0

	// NewConversation marks a conversation that has not been persisted.
	// It must never be used as a storage key.
	NewConversation ConversationID = -1
)

// NewConversationID mints an id from the given instant.
func NewConversationID(now time.Time) ConversationID {
	return ConversationID(now.UnixMilli())
}

// ParseConversationID parses a decimal id as printed by String.
func ParseConversationID(s string) (ConversationID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return NoConversation, err
	}
	return ConversationID(n), nil
}

// IsReal reports whether id can be used as a storage key.
func (id ConversationID) IsReal() bool {
	return id > 0
}

// IsNew reports whether id is the NEW sentinel.
func (id ConversationID) IsNew() bool {
	return id == NewConversation
}

// Time returns the creation instant encoded in the id.
func (id ConversationID) Time() time.Time {
	return time.UnixMilli(int64(id))
}

func (id ConversationID) String() string {
	switch id {
	case NewConversation:
		return "NEW"
	case NoConversation:
		return "none"
	default:
		return strconv.FormatInt(int64(id), 10)
	}
}

// =============================================================================
// DERIVED AND SPARSE RECORDS
// =============================================================================

// ConversationSummary is computed from the message log: the latest message
// timestamp of each conversation.
type ConversationSummary struct {
	ConversationID ConversationID `json:"conversation_id"`
	LastTimestamp  int64          `json:"last_timestamp"`
}

// ConversationMetadata holds the optional user-assigned title.
// At most one row exists per conversation.
type ConversationMetadata struct {
	ConversationID ConversationID `json:"conversation_id"`
	CustomTitle    *string        `json:"custom_title,omitempty"`
	OwnerID        string         `json:"owner_id"`
}

// Title returns the custom title when it is set and non-blank.
func (m ConversationMetadata) Title() (string, bool) {
	if m.CustomTitle == nil {
		return "", false
	}
	title := strings.TrimSpace(*m.CustomTitle)
	return title, title != ""
}

// ConversationDisplayItem is a list entry ready for presentation.
type ConversationDisplayItem struct {
	ID            ConversationID `json:"id"`
	DisplayTitle  string         `json:"display_title"`
	LastTimestamp int64          `json:"last_timestamp"`
}

// LastActivity returns LastTimestamp as a time.Time.
func (d ConversationDisplayItem) LastActivity() time.Time {
	return time.UnixMilli(d.LastTimestamp)
}

// =============================================================================
// LOADING STATE
// =============================================================================

// LoadingState is the progress of the current send.
type LoadingState int

const (
	Idle LoadingState = iota
	Loading
	Error
)

func (s LoadingState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// =============================================================================
// FIXED TEXTS AND LIMITS
// =============================================================================

const (
	// NewConversationTitle is shown for a conversation that is not persisted yet.
	NewConversationTitle = "Nova Conversa"

	// TitlePreviewRunes is how much of the first user message a fallback title keeps.
	TitlePreviewRunes = 30

	// HistoryWindow is the number of persisted messages sent as context.
	HistoryWindow = 20

	// TitleTimeLayout formats a conversation id as a title (dd/MM/yyyy HH:mm).
	TitleTimeLayout = "02/01/2006 15:04"

	WelcomeText = "Olá! Eu sou a assistente do Mente Sã. Estou aqui para ouvir você " +
		"e conversar sobre como você está se sentindo. Como posso ajudar hoje?"

	RefusalText = "Desculpe, mas só posso conversar sobre temas ligados à saúde mental " +
		"e ao bem-estar emocional. Quer me contar como você está se sentindo?"

	FallbackText = "Desculpe, não consegui formular uma resposta adequada. " +
		"Podemos voltar a falar sobre como você está se sentindo?"
)

// FallbackTitle returns the generic "Conversa {id}" title.
func FallbackTitle(id ConversationID) string {
	return "Conversa " + strconv.FormatInt(int64(id), 10)
}
