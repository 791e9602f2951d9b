package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-app/parley/internal/client"
)

const listWidth = 28

var (
	listStyle = lipgloss.NewStyle().
			Width(listWidth).
			Border(lipgloss.RoundedBorder(), false, true, false, false).
			Padding(0, 1)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	pendingStyle   = lipgloss.NewStyle().Faint(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.SetContent("")
	return vp
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	left := m.renderConversationList()
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderComposer(),
		statusStyle.Render(m.statusLine()),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, listStyle.Render(left), right)
}

func (m Model) renderConversationList() string {
	visible := m.visibleConversations()
	if len(visible) == 0 {
		return pendingStyle.Render("no conversations\n\nctrl+n to start one")
	}

	var b strings.Builder
	for i, conv := range visible {
		title := conv.Title
		if runes := []rune(title); len(runes) > listWidth-4 {
			title = string(runes[:listWidth-4]) + "…"
		}
		line := "  " + title
		if i == m.selected {
			line = selectedStyle.Render("> " + title)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderComposer() string {
	if m.controller.InFlight() {
		return pendingStyle.Render(m.spinner.View() + " waiting for reply... (esc to cancel)")
	}
	return m.textarea.View()
}

func (m Model) renderTranscript(entries []client.Entry) string {
	if len(entries) == 0 {
		return pendingStyle.Render("no messages yet")
	}

	var b strings.Builder
	if m.timeline.HasMore() {
		b.WriteString(pendingStyle.Render("-- pgup for older messages --") + "\n\n")
	}

	for _, entry := range entries {
		label := assistantStyle.Render("assistant")
		if entry.Role == "user" {
			label = userStyle.Render("you")
		}

		body := entry.Content
		switch {
		case entry.Pending:
			body = pendingStyle.Render(body + " …")
		case entry.Failed:
			body = body + "\n" + failedStyle.Render("✗ "+entry.Reason)
		}

		b.WriteString(fmt.Sprintf("%s\n%s\n\n", label, body))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) statusLine() string {
	if m.status != "" {
		return m.status
	}
	if m.focus == paneList {
		return "tab: compose · ctrl+n: new · ctrl+d: delete · ctrl+c: quit"
	}
	return "enter: send · esc: cancel · ctrl+r: retry · tab: conversations"
}
