// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// ErrSentinelID is returned when NEW or "no conversation" reaches a store.
var ErrSentinelID = &StoreError{Message: "sentinel conversation id cannot be used as a storage key"}

// =============================================================================
// DATABASE
// =============================================================================

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB owns the SQLite handle shared by the message and metadata stores.
type DB struct {
	db     *sql.DB
	logger *log.Logger

	messagesFeed *feed
	metadataFeed *feed

	closeOnce sync.Once
}

// Open opens (creating if needed) the database at path and applies the schema.
// A nil logger discards output.
func Open(ctx context.Context, path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection also keeps
	// an in-memory database alive for the lifetime of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, InitSchemaInfo); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("database opened", "path", path)

	return &DB{
		db:           db,
		logger:       logger,
		messagesFeed: newFeed(),
		metadataFeed: newFeed(),
	}, nil
}

// Messages returns the message store backed by this database.
func (d *DB) Messages() *MessageStore {
	return &MessageStore{db: d}
}

// Metadata returns the metadata store backed by this database.
func (d *DB) Metadata() *MetadataStore {
	return &MetadataStore{db: d}
}

// SQL exposes the underlying handle for packages that keep their own tables
// in the same file (accounts, reset tokens).
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close closes the database and wakes every watcher so it can exit.
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.messagesFeed.close()
		d.metadataFeed.close()
		err = d.db.Close()
	})
	return err
}

// =============================================================================
// CHANGE FEED
// =============================================================================

// feed broadcasts "something changed" to any number of waiters. Each bump
// closes the current channel and installs a fresh one.
type feed struct {
	mu      sync.Mutex
	version uint64
	changed chan struct{}
	closed  bool
}

func newFeed() *feed {
	return &feed{changed: make(chan struct{})}
}

// bump records a committed change.
func (f *feed) bump() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.version++
	close(f.changed)
	f.changed = make(chan struct{})
}

// wait returns a channel that is closed on the next change, and whether the
// feed is still open.
func (f *feed) wait() (<-chan struct{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed, !f.closed
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.changed)
}

// watch runs query now and after every change on f, delivering results on
// the returned channel. Only the latest undelivered result is kept. The
// channel is closed when ctx ends or the database closes.
func watch[T any](ctx context.Context, logger *log.Logger, f *feed, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)

	go func() {
		defer close(out)

		for {
			// Take the change channel before querying so a write that lands
			// mid-query still triggers another pass.
			changed, open := f.wait()
			if !open {
				return
			}

			v, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("watch query failed", "err", err)
			} else {
				select {
				case <-out:
				default:
				}
				out <- v
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
