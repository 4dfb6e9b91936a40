// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders header, list and chat column, status bar and help.
// Heights add up to m.height; layout() sizes the viewport to match.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Carregando..."
	}

	messages := m.viewport.View()
	if m.theme.SidebarWidth() == 0 && m.focus == focusList {
		messages = m.renderList(m.chatWidth(), m.viewport.Height, false)
	}
	column := lipgloss.JoinVertical(lipgloss.Left, messages, m.renderBottom())

	body := column
	if sw := m.theme.SidebarWidth(); sw > 0 {
		list := m.renderList(sw, lipgloss.Height(column), true)
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, column)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatus(),
		m.helpView(),
	)
}

func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("Mente Sã")
	title := m.titleOf(m.state.CurrentID)
	if title != "" {
		title = util.TruncateWidth(title, max(m.width-16, 4))
		brand += "  " + m.theme.HeaderTitle.Render(title)
	}
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).Render(brand)
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// renderList draws the conversations in a box of the given outer size.
// Rows scroll to keep the cursor visible.
func (m Model) renderList(width, height int, bordered bool) string {
	style := m.theme.Sidebar
	if m.focus == focusList {
		style = m.theme.SidebarFocused
	}
	inner := width - 4
	rows := height - 2
	if !bordered {
		style = lipgloss.NewStyle().Padding(0, 1)
		inner = width - 2
		rows = height
	}
	inner = max(inner, 4)

	lines := []string{m.theme.SidebarHeading.Render("Conversas")}
	if m.state.CurrentID.IsNew() {
		lines = append(lines, m.theme.SidebarCurrent.Render("● "+model.NewConversationTitle))
	}
	if len(m.state.Conversations) == 0 {
		lines = append(lines, m.theme.EmptyState.Render("Nenhuma conversa ainda"))
	}

	visible := max(rows-len(lines), 1)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(m.state.Conversations))

	for i := start; i < end; i++ {
		item := m.state.Conversations[i]
		marker := "  "
		text := m.theme.SidebarItem
		if item.ID == m.state.CurrentID {
			marker = "● "
			text = m.theme.SidebarCurrent
		}
		line := marker + util.TruncateWidth(item.DisplayTitle, inner-2)
		if m.focus == focusList && i == m.cursor {
			lines = append(lines, m.theme.SidebarCursor.Render(util.PadWidth(line, inner)))
			continue
		}
		lines = append(lines, text.Render(line))
	}

	if bordered {
		return style.Width(width - 2).Height(rows).Render(strings.Join(lines, "\n"))
	}
	return style.Width(width).Height(rows).Render(strings.Join(lines, "\n"))
}

// =============================================================================
// MESSAGES
// =============================================================================

// renderMessages draws the messages of the current conversation. Saved bot
// replies go through the markdown renderer; a reply still streaming is
// shown as wrapped plain text so partial markup does not jump around.
func (m Model) renderMessages(width int) string {
	contentWidth := max(width-2, 10)
	msgs := m.state.Messages

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}

		label := m.theme.BotLabel.Render(msg.Sender.DisplayName())
		if msg.IsUser() {
			label = m.theme.UserLabel.Render(msg.Sender.DisplayName())
		}
		if msg.Timestamp > 0 {
			label += " " + m.theme.Timestamp.Render(msg.Time().Format("15:04"))
		}
		b.WriteString(label)
		b.WriteString("\n")

		partial := m.state.Streaming && i == len(msgs)-1
		switch {
		case msg.IsUser():
			b.WriteString(m.theme.UserText.Width(contentWidth - 1).Render(msg.Text))
		case partial:
			b.WriteString(m.theme.Streaming.Width(contentWidth).Render(msg.Text + " ▍"))
		default:
			b.WriteString(m.theme.BotText.Render(m.rendered.get(msg.ID, msg.Text, contentWidth)))
		}
	}
	return b.String()
}

// =============================================================================
// INPUT, STATUS AND HELP
// =============================================================================

func (m Model) renderBottom() string {
	width := m.chatWidth() - 2
	switch m.mode {
	case modeRename:
		return m.theme.Dialog.Width(width).Render(m.title.View())
	case modeConfirmDelete:
		question := fmt.Sprintf("Excluir %q e todas as mensagens? (s/N)",
			util.TruncateWidth(m.titleOf(m.target), max(width-40, 8)))
		return m.theme.Dialog.Width(width).Render(question)
	}
	return m.theme.Input.Render(m.input.View())
}

// renderStatus shows, by priority: the session error, a flash, progress.
func (m Model) renderStatus() string {
	room := max(m.width-24, 8)

	var left string
	switch {
	case m.state.Err != "":
		left = m.theme.Error.Render(util.TruncateWidth(m.state.Err, room))
	case m.flash != "" && m.flashErr:
		left = m.theme.Error.Render(util.TruncateWidth(m.flash, room))
	case m.flash != "":
		left = m.theme.Success.Render(util.TruncateWidth(m.flash, room))
	case m.loading() && m.state.Streaming:
		left = m.spinner.View() + " Escrevendo..."
	case m.loading():
		left = m.spinner.View() + " Pensando..."
	}

	right := fmt.Sprintf("%d conversas", len(m.state.Conversations))
	gap := max(m.width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return m.theme.StatusBar.Width(m.width).MaxHeight(statusHeight).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) helpView() string {
	return m.theme.Help.Render(m.help.View(m.keys))
}
