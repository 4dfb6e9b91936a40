// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the stores, the
// session manager and the command-line front-end.
//
// # Key Types
//
//   - ChatMessage: One persisted USER or BOT message of a conversation
//   - ConversationID: Time-derived conversation identifier with NEW/none sentinels
//   - ConversationSummary: Derived {id, last activity} pair
//   - ConversationMetadata: Optional user-assigned title for a conversation
//   - ConversationDisplayItem: List entry with a resolved display title
//   - HistoryEntry: Message formatted for the generation API (USER/MODEL)
//
// # Usage
//
// Mint an id for a new conversation and build a user message:
//
//	id := model.NewConversationID(time.Now())
//	msg := model.NewUserMessage(id, "Estou ansioso hoje", time.Now())
//
// Convert persisted messages into API history:
//
//	history := model.ToHistory(messages)
package model
