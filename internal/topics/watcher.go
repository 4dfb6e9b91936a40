// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package topics

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

// LoadFile builds a Filter from a TOML lists file.
func LoadFile(path string) (*Filter, error) {
	lists, err := LoadLists(path)
	if err != nil {
		return nil, err
	}
	return New(lists)
}

// Watch reloads the lists file into h whenever it changes, until ctx ends.
// The parent directory is watched so atomic-rename saves are seen. A file
// that fails to parse leaves the current filter in place.
func Watch(ctx context.Context, path string, h *Holder, logger *log.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var (
			timer   *time.Timer
			timerCh <-chan time.Time
		)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(DefaultDebounce)
				} else {
					timer.Reset(DefaultDebounce)
				}
				timerCh = timer.C

			case <-timerCh:
				timerCh = nil
				f, err := LoadFile(abs)
				if err != nil {
					logger.Warn("topic lists reload failed, keeping previous lists", "path", abs, "err", err)
					continue
				}
				h.Store(f)
				logger.Info("topic lists reloaded", "path", abs, "categories", len(f.Categories()))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("topic lists watcher error", "err", err)
			}
		}
	}()

	return nil
}
