// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the mentesa TUI.

Colors are Lip Gloss AdaptiveColor values, so the same palette reads well on
light and dark terminals.

# Palette

  - Teal: brand and the current conversation
  - Lavender: bot replies and list selection
  - Sky: user messages
  - Rose, Amber, Emerald: errors, confirmations, success

# Layout

Theme.GetLayoutMode buckets the terminal width. Narrow terminals hide the
conversation list; SidebarWidth returns its width for the others.

# Usage

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	header := theme.Header.Render(theme.HeaderBrand.Render("Mente Sã"))
*/
package styles
