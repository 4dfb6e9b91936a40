// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/mentesa/internal/model"

// State is an immutable snapshot of the session. Slices are copies and may
// be kept by the receiver.
type State struct {
	// CurrentID is a real id, model.NewConversation or model.NoConversation.
	CurrentID model.ConversationID

	// Owner is the user whose conversations are listed.
	Owner string

	// Messages of the current conversation, oldest first. Holds only the
	// welcome message when nothing is persisted yet. While a reply streams
	// the last entry is the partial BOT text.
	Messages []model.ChatMessage

	// Streaming is set while the last message is a partial reply.
	Streaming bool

	// Conversations of Owner, most recently active first.
	Conversations []model.ConversationDisplayItem

	Loading model.LoadingState

	// Err is the last user-visible error, cleared by the next successful action.
	Err string
}

// Conversation returns the display item for id, if listed.
func (s State) Conversation(id model.ConversationID) (model.ConversationDisplayItem, bool) {
	for _, item := range s.Conversations {
		if item.ID == id {
			return item, true
		}
	}
	return model.ConversationDisplayItem{}, false
}
