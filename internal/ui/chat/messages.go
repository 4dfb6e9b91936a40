// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/session"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// stateMsg delivers a new session snapshot.
type stateMsg struct {
	State session.State
}

// stateClosedMsg signals that the subscription ended.
type stateClosedMsg struct{}

// =============================================================================
// OPERATION MESSAGES
// =============================================================================

// operation names a background action for result reporting.
type operation int

const (
	opSend operation = iota
	opRename
	opDelete
	opExport
)

// opDoneMsg reports the outcome of a background action.
type opDoneMsg struct {
	Op   operation
	ID   model.ConversationID
	Path string // export only
	Err  error
}

// flashExpiredMsg clears the status flash with the given sequence number.
type flashExpiredMsg struct {
	Seq int
}
