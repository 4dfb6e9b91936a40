// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownFunc renders bot text for a given width.
type MarkdownFunc func(text string, width int) string

// renderCache memoizes rendered saved messages. Saved messages never change,
// so the row id and the width identify the output.
type renderCache struct {
	render  MarkdownFunc
	entries map[renderKey]string
}

type renderKey struct {
	id    int64
	width int
}

func newRenderCache(render MarkdownFunc) *renderCache {
	return &renderCache{render: render, entries: make(map[renderKey]string)}
}

// get renders text, caching it when id identifies a saved row.
func (c *renderCache) get(id int64, text string, width int) string {
	if id <= 0 {
		return c.render(text, width)
	}
	k := renderKey{id: id, width: width}
	if out, ok := c.entries[k]; ok {
		return out
	}
	out := c.render(text, width)
	c.entries[k] = out
	return out
}

// GlamourMarkdown returns a MarkdownFunc using a glamour standard style
// ("dark", "light" or "notty"). Render errors fall back to the raw text.
func GlamourMarkdown(style string) MarkdownFunc {
	var (
		renderer *glamour.TermRenderer
		width    int
	)
	return func(text string, w int) string {
		if w < 20 {
			w = 20
		}
		if renderer == nil || width != w {
			r, err := glamour.NewTermRenderer(
				glamour.WithStandardStyle(style),
				glamour.WithWordWrap(w),
			)
			if err != nil {
				return text
			}
			renderer, width = r, w
		}
		out, err := renderer.Render(text)
		if err != nil {
			return text
		}
		return strings.Trim(out, "\n")
	}
}

// PlainMarkdown wraps nothing and styles nothing.
func PlainMarkdown(text string, _ int) string {
	return text
}
