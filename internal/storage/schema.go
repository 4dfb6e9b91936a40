// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is applied on every open; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Append-only message log
CREATE TABLE IF NOT EXISTS chat_message (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL CHECK (conversation_id > 0),
    owner_id TEXT NOT NULL,
    sender TEXT NOT NULL,         -- USER or BOT
    text TEXT NOT NULL,
    timestamp INTEGER NOT NULL    -- Unix milliseconds
);

CREATE INDEX IF NOT EXISTS idx_chat_message_conversation ON chat_message(conversation_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_chat_message_owner ON chat_message(owner_id);

-- One optional title per conversation
CREATE TABLE IF NOT EXISTS conversation_metadata (
    conversation_id INTEGER PRIMARY KEY CHECK (conversation_id > 0),
    custom_title TEXT,
    owner_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_metadata_owner ON conversation_metadata(owner_id);
`

// InitSchemaInfo records the schema version once.
const InitSchemaInfo = `
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('schema_version', '1');
`
