// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates a chat session of Mente Sã.
//
// The Manager owns which conversation is current and merges three sources
// into one published State: the persisted message log, the metadata titles
// and the reply stream of the generation API.
//
// # Key Types
//
//   - Manager: Selection, send/rename/delete operations, state publication
//   - State: Immutable snapshot consumed by front-ends
//   - Deps: Stores, streamer, identity and topic filter, injected explicitly
//   - ValidationError: Rejected input (blank message or title, unsaved conversation)
//
// # Usage
//
//	mgr := session.NewManager(session.Deps{
//	    Messages: db.Messages(),
//	    Metadata: db.Metadata(),
//	    Streamer: streamer,
//	    Identity: provider,
//	    Filter:   filter,
//	    Logger:   logger,
//	}, session.DefaultConfig())
//	go mgr.Run(ctx)
//
//	for state := range mgr.Subscribe(ctx) {
//	    render(state)
//	}
//
// # Concurrency
//
// All methods are safe for concurrent use. At most one SendMessage runs at a
// time; a concurrent call returns ErrBusy. Operations may block on storage
// and on the reply stream, State never does.
package session
