// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a transcript as Markdown with YAML frontmatter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter. nil selects DefaultOptions.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML block heading the file. Field order is output order.
type frontmatter struct {
	Title        string    `yaml:"title"`
	Conversation int64     `yaml:"conversation"`
	Started      time.Time `yaml:"started"`
	Messages     int       `yaml:"messages"`
	Exported     time.Time `yaml:"exported"`
	Generator    string    `yaml:"generator"`
}

// headingEscaper keeps a title on one line and out of Markdown syntax.
var headingEscaper = strings.NewReplacer(
	"\r", " ", "\n", " ",
	`#`, `\#`, `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
)

// Export implements Exporter.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if e.options.IncludeMetadata {
		if err := writeFrontmatter(&buf, t); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(&buf, "# %s\n\n", headingEscaper.Replace(t.Title))

	for i, msg := range t.Messages {
		if i > 0 {
			buf.WriteString("---\n\n")
		}
		buf.WriteString("### " + msg.Sender.DisplayName())
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&buf, " <sub>%s</sub>", formatShortTimestamp(msg.Time()))
		}
		buf.WriteString("\n\n")
		buf.WriteString(messageBody(msg))
		buf.WriteString("\n\n")
	}

	fmt.Fprintf(&buf, "\n---\n\n*Exportado do Mente Sã em %s*\n", formatTimestamp(t.ExportedAt))
	return buf.Bytes(), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func writeFrontmatter(buf *bytes.Buffer, t *Transcript) error {
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	err := enc.Encode(frontmatter{
		Title:        t.Title,
		Conversation: int64(t.ID),
		Started:      t.Started().UTC(),
		Messages:     len(t.Messages),
		Exported:     t.ExportedAt.UTC(),
		Generator:    "mentesa",
	})
	if err == nil {
		err = enc.Close()
	}
	if err != nil {
		return fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString("---\n\n")
	return nil
}

// messageBody keeps bot replies as Markdown and block-quotes user text, so
// the user cannot forge headings or separators.
func messageBody(msg model.ChatMessage) string {
	content := strings.TrimSpace(msg.Text)
	if !msg.IsUser() {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("> "+line, " ")
	}
	return strings.Join(lines, "\n")
}
