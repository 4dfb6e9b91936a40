// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mentesa/internal/export"
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/session"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// waitForState blocks on the subscription until the next snapshot.
func waitForState(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return stateClosedMsg{}
		}
		return stateMsg{State: s}
	}
}

// sendCmd sends text and reports when the reply is saved or failed.
func sendCmd(ctx context.Context, s Session, text string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: opSend, Err: s.SendMessage(ctx, text)}
	}
}

func renameCmd(ctx context.Context, s Session, id model.ConversationID, title string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: opRename, ID: id, Err: s.RenameConversation(ctx, id, title)}
	}
}

func deleteCmd(ctx context.Context, s Session, id model.ConversationID) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: opDelete, ID: id, Err: s.DeleteConversation(ctx, id)}
	}
}

// exportCmd writes the saved messages of the current conversation to
// Markdown. The transcript is built from the snapshot on screen.
func exportCmd(t *export.Transcript, opts *export.Options) tea.Cmd {
	return func() tea.Msg {
		path, err := export.ToFile(t, export.NewMarkdownExporter(opts), opts)
		return opDoneMsg{Op: opExport, ID: t.ID, Path: path, Err: err}
	}
}

// expireFlash clears a status flash after d.
func expireFlash(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return flashExpiredMsg{Seq: seq}
	})
}
