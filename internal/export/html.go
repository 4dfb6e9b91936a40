// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports a transcript as a standalone page with embedded CSS.
// Bot replies are rendered from Markdown. Raw HTML in any message is
// escaped, never passed through.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts, md: goldmark.New()}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	title := html.EscapeString(t.Title)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"pt-BR\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"mentesa\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n<body>\n    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString("        <header class=\"header\">\n")
		fmt.Fprintf(&sb, "            <h1>%s</h1>\n", title)
		fmt.Fprintf(&sb, "            <p class=\"metadata\">Iniciada em %s &middot; %d mensagens</p>\n",
			formatTimestamp(t.Started()), len(t.Messages))
		sb.WriteString("        </header>\n")
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range t.Messages {
		body, err := e.renderContent(msg)
		if err != nil {
			return nil, fmt.Errorf("render message %d: %w", msg.ID, err)
		}
		e.renderMessage(&sb, msg, body)
	}
	sb.WriteString("        </main>\n")

	fmt.Fprintf(&sb, "        <footer class=\"footer\">Exportado do <strong>Mente Sã</strong> em %s</footer>\n",
		t.ExportedAt.Format(time.RFC3339))
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg model.ChatMessage, body string) {
	class := "bot-message"
	if msg.IsUser() {
		class = "user-message"
	}
	fmt.Fprintf(sb, "            <div class=\"message %s\">\n", class)
	fmt.Fprintf(sb, "                <div class=\"message-header\"><span class=\"role-label\">%s</span>",
		html.EscapeString(msg.Sender.DisplayName()))
	if e.options.IncludeTimestamps {
		fmt.Fprintf(sb, " <span class=\"timestamp\">%s</span>", formatShortTimestamp(msg.Time()))
	}
	sb.WriteString("</div>\n")
	fmt.Fprintf(sb, "                <div class=\"message-content\">%s</div>\n", body)
	sb.WriteString("            </div>\n")
}

// renderContent converts bot Markdown with goldmark, which drops raw HTML
// unless configured otherwise. User text is escaped verbatim.
func (e *HTMLExporter) renderContent(msg model.ChatMessage) (string, error) {
	text := strings.TrimSpace(msg.Text)
	if msg.IsUser() {
		escaped := html.EscapeString(text)
		return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p>", nil
	}

	var buf bytes.Buffer
	if err := e.md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6;
            color: #24292e;
            background: #f3f6f4;
            padding: 20px;
        }
        .container { max-width: 820px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { padding: 28px 32px; background: #dfeee6; }
        .header h1 { font-size: 26px; margin-bottom: 8px; }
        .metadata { font-size: 14px; color: #586069; }
        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 18px; padding: 14px 18px; border-radius: 10px; }
        .user-message { background: #eef4ff; margin-left: 15%; }
        .bot-message { background: #f6f8f7; margin-right: 15%; }
        .message-header { font-size: 13px; color: #586069; margin-bottom: 6px; }
        .role-label { font-weight: 600; }
        .message-content p { margin-bottom: 8px; }
        .message-content ul, .message-content ol { margin: 0 0 8px 20px; }
        .message-content pre { background: #f0f0f0; padding: 10px; border-radius: 6px; overflow-x: auto; }
        .footer { padding: 16px 32px; font-size: 13px; color: #6a737d; border-top: 1px solid #e1e4e8; }
    </style>
`
