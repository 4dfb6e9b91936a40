// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// METADATA STORE
// =============================================================================

// MetadataStore maps conversation ids to optional custom titles.
type MetadataStore struct {
	db *DB
}

// Upsert sets the title of a conversation, creating the row if needed.
// A nil title clears it.
func (s *MetadataStore) Upsert(ctx context.Context, id model.ConversationID, title *string, owner string) error {
	if !id.IsReal() {
		return ErrSentinelID
	}
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO conversation_metadata (conversation_id, custom_title, owner_id) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET custom_title = excluded.custom_title, owner_id = excluded.owner_id`,
		int64(id), nullString(title), owner)
	if err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}
	s.db.metadataFeed.bump()
	return nil
}

// EnsureExists creates an untitled row unless one already exists.
// An existing title is never overwritten.
func (s *MetadataStore) EnsureExists(ctx context.Context, id model.ConversationID, owner string) error {
	if !id.IsReal() {
		return ErrSentinelID
	}
	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO conversation_metadata (conversation_id, custom_title, owner_id) VALUES (?, NULL, ?)
		ON CONFLICT(conversation_id) DO NOTHING`,
		int64(id), owner)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.db.metadataFeed.bump()
	}
	return nil
}

// Get returns the metadata row of a conversation.
func (s *MetadataStore) Get(ctx context.Context, id model.ConversationID) (model.ConversationMetadata, bool, error) {
	if !id.IsReal() {
		return model.ConversationMetadata{}, false, ErrSentinelID
	}
	var (
		title sql.NullString
		owner string
	)
	err := s.db.db.QueryRowContext(ctx,
		`SELECT custom_title, owner_id FROM conversation_metadata WHERE conversation_id = ?`,
		int64(id)).Scan(&title, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ConversationMetadata{}, false, nil
	}
	if err != nil {
		return model.ConversationMetadata{}, false, fmt.Errorf("query metadata: %w", err)
	}
	return toMetadata(id, title, owner), true, nil
}

// Title returns the stored title; ok is false when the row is missing or
// the title is null.
func (s *MetadataStore) Title(ctx context.Context, id model.ConversationID) (string, bool, error) {
	meta, found, err := s.Get(ctx, id)
	if err != nil || !found || meta.CustomTitle == nil {
		return "", false, err
	}
	return *meta.CustomTitle, true, nil
}

// Delete removes the metadata row of a conversation, if any.
func (s *MetadataStore) Delete(ctx context.Context, id model.ConversationID) error {
	if !id.IsReal() {
		return ErrSentinelID
	}
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM conversation_metadata WHERE conversation_id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.db.metadataFeed.bump()
	}
	return nil
}

// AllForOwner lists every metadata row owned by owner.
func (s *MetadataStore) AllForOwner(ctx context.Context, owner string) ([]model.ConversationMetadata, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT conversation_id, custom_title, owner_id FROM conversation_metadata
		WHERE owner_id = ? ORDER BY conversation_id DESC`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()

	all := []model.ConversationMetadata{}
	for rows.Next() {
		var (
			id    int64
			title sql.NullString
			own   string
		)
		if err := rows.Scan(&id, &title, &own); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		all = append(all, toMetadata(model.ConversationID(id), title, own))
	}
	return all, rows.Err()
}

// WatchAllForOwner follows the metadata rows of owner.
func (s *MetadataStore) WatchAllForOwner(ctx context.Context, owner string) <-chan []model.ConversationMetadata {
	return watch(ctx, s.db.logger, s.db.metadataFeed, func(ctx context.Context) ([]model.ConversationMetadata, error) {
		return s.AllForOwner(ctx, owner)
	})
}

func toMetadata(id model.ConversationID, title sql.NullString, owner string) model.ConversationMetadata {
	meta := model.ConversationMetadata{ConversationID: id, OwnerID: owner}
	if title.Valid {
		t := title.String
		meta.CustomTitle = &t
	}
	return meta
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
