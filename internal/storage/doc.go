// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for Mente Sã.
//
// Messages and conversation metadata live in a single SQLite database
// (pure Go driver, WAL journal, one connection). Every write is a single
// statement; there are no multi-row transactions spanning both tables.
//
// # Key Types
//
//   - DB: Owns the database handle and the change feeds
//   - MessageStore: Append-only message log keyed by conversation
//   - MetadataStore: Sparse conversation id to custom title table
//
// # Usage
//
// Open the database and insert a message:
//
//	db, err := storage.Open(ctx, path, logger)
//	msg, err := db.Messages().Insert(ctx, model.NewUserMessage(id, "oi", time.Now()))
//
// Follow a conversation as it changes:
//
//	for msgs := range db.Messages().WatchMessages(ctx, id) {
//	    render(msgs)
//	}
//
// # Change Notification
//
// Watch* methods emit the current result immediately and again after each
// committed change to the underlying table. Slow consumers only ever see the
// latest snapshot; intermediate ones are dropped.
package storage
