// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation transcript to a file.
//
// # Key Types
//
//   - Transcript: One conversation with its display title and messages
//   - Exporter: Renders a Transcript (Markdown, JSON, HTML)
//   - Options: Output directory and rendering switches
//
// # Supported Formats
//
//   - Markdown: Readable transcript with YAML frontmatter
//   - JSON: The messages as stored, for re-import or analysis
//   - HTML: Standalone page, bot replies rendered from Markdown
//
// # Usage
//
//	t := export.NewTranscript(id, title, msgs, time.Now())
//	opts := export.DefaultOptions()
//	exp, err := export.ForFormat("md", opts)
//	path, err := export.ToFile(t, exp, opts)
package export
