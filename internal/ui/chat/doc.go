// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat view of mentesa.
//
// The view is a Bubble Tea model. It never holds conversation data of its
// own: every frame is drawn from the latest session.State, which arrives
// through the manager's subscription. Operations run as tea.Cmds so a slow
// reply never blocks the event loop.
//
// # Key Types
//
//   - Model: The Bubble Tea model (conversation list, messages, input)
//   - Session: What the view needs from the session manager
//   - KeyMap: Key bindings, also used by the help line
//   - Options: Theme, markdown style and export directory
//
// # Usage
//
//	m := chat.New(ctx, manager, chat.Options{Theme: styles.NewTheme()})
//	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
//	_, err := p.Run()
//
// # Keys
//
// Enter sends, Alt+Enter breaks the line. Tab moves between the message
// input and the conversation list. Ctrl+N starts a new conversation, Ctrl+R
// renames, Ctrl+D deletes and Ctrl+E exports the current one to Markdown.
package chat
