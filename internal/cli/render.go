// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/mentesa/internal/model"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownRenderer     *glamour.TermRenderer
	markdownRendererOnce sync.Once
)

// renderMarkdown renders a bot reply for the terminal. Plain output (pipes,
// NO_COLOR) gets the text unchanged.
func renderMarkdown(content string) string {
	if !ColorsEnabled() {
		return content
	}
	markdownRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(min(GetTerminalWidth()-4, 100)),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// printMessage writes one chat turn with a sender label.
func printMessage(w io.Writer, msg model.ChatMessage, withTime bool) {
	label := BotStyle.Render(msg.Sender.DisplayName())
	body := renderMarkdown(msg.Text)
	if msg.IsUser() {
		label = UserStyle.Render(msg.Sender.DisplayName())
		body = msg.Text
	}
	if withTime && msg.Timestamp > 0 {
		label += " " + DimStyle.Render(msg.Time().Format("15:04"))
	}
	fmt.Fprintf(w, "%s\n%s\n\n", label, body)
}
