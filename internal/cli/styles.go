// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/mentesa/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// LINE-MODE STYLES
// =============================================================================

// Line-mode output shares the TUI palette.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Teal).MarginBottom(1)
	LabelStyle   = lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(20)
	ValueStyle   = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	DimStyle     = lipgloss.NewStyle().Foreground(styles.TextMuted)
	WarningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	ErrorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(styles.Emerald).Bold(true)

	// Chat turn labels
	UserStyle = lipgloss.NewStyle().Foreground(styles.Sky).Bold(true)
	BotStyle  = lipgloss.NewStyle().Foreground(styles.Lavender).Bold(true)

	// CurrentStyle marks the selected conversation in listings.
	CurrentStyle = lipgloss.NewStyle().Foreground(styles.Teal)

	separatorStyle = lipgloss.NewStyle().Foreground(styles.Overlay)
)

// separatorWidth is the rule length between chat turns.
const separatorWidth = 60

// RenderSeparator renders a horizontal rule.
func RenderSeparator() string {
	return separatorStyle.Render(strings.Repeat("─", separatorWidth))
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderStatus renders an OK or FALHA marker.
func RenderStatus(ok bool) string {
	if ok {
		return SuccessStyle.Render("[OK]")
	}
	return ErrorStyle.Render("[FALHA]")
}
