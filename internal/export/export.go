// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/util"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a conversation ready to be exported.
type Transcript struct {
	ID         model.ConversationID `json:"conversation_id"`
	Title      string               `json:"title"`
	ExportedAt time.Time            `json:"exported_at"`
	Messages   []model.ChatMessage  `json:"messages"`
}

// NewTranscript builds a Transcript with messages in timestamp order.
func NewTranscript(id model.ConversationID, title string, msgs []model.ChatMessage, now time.Time) *Transcript {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b model.ChatMessage) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return &Transcript{ID: id, Title: title, ExportedAt: now, Messages: sorted}
}

// Started returns the time of the first message.
func (t *Transcript) Started() time.Time {
	if len(t.Messages) == 0 {
		return time.Time{}
	}
	return t.Messages[0].Time()
}

func (t *Transcript) validate() error {
	if t == nil {
		return errors.New("transcript is nil")
	}
	if !t.ID.IsReal() {
		return fmt.Errorf("conversation %s is not saved", t.ID)
	}
	if len(t.Messages) == 0 {
		return errors.New("conversation has no messages")
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a transcript into one file format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where ToFile writes. Default: current directory.
	OutputDir string

	// IncludeTimestamps adds the time of every message.
	IncludeTimestamps bool

	// IncludeMetadata adds the frontmatter or header block.
	IncludeMetadata bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeTimestamps: true,
		IncludeMetadata:   true,
	}
}

// ForFormat returns the exporter for a format name or file extension.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (use md, json or html)", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile renders t and writes it atomically into opts.OutputDir.
// Returns the output file path.
func ToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := t.validate(); err != nil {
		return "", err
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("conversa_%s_%d%s",
		sanitizeFilename(t.Title), int64(t.ID), exporter.FileExtension())
	outputPath := filepath.Join(opts.OutputDir, filename)

	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(strings.TrimSpace(s), 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "conversa"
	}
	return b.String()
}

// formatTimestamp formats a timestamp for headers.
func formatTimestamp(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
