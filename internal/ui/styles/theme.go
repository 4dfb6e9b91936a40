// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style

	// ==========================================================================
	// CONVERSATION LIST
	// ==========================================================================

	Sidebar          lipgloss.Style
	SidebarFocused   lipgloss.Style
	SidebarHeading   lipgloss.Style
	SidebarItem      lipgloss.Style
	SidebarCursor    lipgloss.Style
	SidebarCurrent   lipgloss.Style
	SidebarTimestamp lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel  lipgloss.Style
	BotLabel   lipgloss.Style
	UserText   lipgloss.Style
	BotText    lipgloss.Style
	Timestamp  lipgloss.Style
	Streaming  lipgloss.Style
	EmptyState lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	Input       lipgloss.Style
	InputPrompt lipgloss.Style
	Dialog      lipgloss.Style
	StatusBar   lipgloss.Style
	Spinner     lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Help        lipgloss.Style
}

// NewTheme detects the terminal and builds every style.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarFocused = t.Sidebar.
		BorderForeground(Teal)
	t.SidebarHeading = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.SidebarCursor = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Lavender)
	t.SidebarCurrent = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)
	t.SidebarTimestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Sky)
	t.BotLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Lavender)
	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Sky).
		PaddingLeft(1)
	t.BotText = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Streaming = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.EmptyState = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal)
	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(0, 1)
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Lavender)
	t.Error = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)
	t.Success = lipgloss.NewStyle().
		Foreground(Emerald)
	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth is the width of the conversation list for the current
// layout, 0 when it is hidden.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 28
	default:
		return 36
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, list hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
