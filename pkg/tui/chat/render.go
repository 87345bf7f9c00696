package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/store"
)

func (m Model) senderName(id string) string {
	if member, ok := m.members[id]; ok {
		return member.DisplayName()
	}
	return id
}

func (m Model) renderMessage(msg chat.Message, width int) string {
	ts := ""
	if !msg.CreatedAt.IsZero() {
		ts = m.styles.Timestamp.Render(msg.CreatedAt.Local().Format("15:04")) + " "
	}

	if msg.IsSystem() {
		return m.styles.SystemMessage.Width(width).Render(ts + msg.Content.Text)
	}

	var sender string
	if msg.SenderID == m.self {
		sender = m.styles.Self.Render(m.senderName(msg.SenderID))
	} else {
		sender = m.styles.SenderStyle(msg.SenderID).Render(m.senderName(msg.SenderID))
	}

	header := ts + sender
	switch msg.Delivery {
	case chat.Pending:
		header += " " + m.styles.Pending.Render("sending…")
	case chat.Failed:
		header += " " + m.styles.Failed.Render("not sent")
	}

	body := lipgloss.NewStyle().Width(width).Render(msg.Content.Text)
	if fields := msg.Content.FieldNames(); len(fields) > 0 {
		body += "\n" + m.styles.Muted.Render("["+strings.Join(fields, ", ")+"]")
	}
	return header + "\n" + body
}

func (m Model) renderMessages() string {
	width := m.viewport.Width - 2
	if width <= 0 {
		width = 78
	}

	switch {
	case m.active == nil:
		return m.styles.Muted.Render("Select a chat or press ctrl+n to start one.")
	case m.state == store.ActiveChatLoading && len(m.messages) == 0:
		return m.styles.Muted.Render("Loading history...")
	case len(m.messages) == 0:
		return m.styles.Muted.Render("No messages yet.")
	}

	rendered := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		rendered = append(rendered, m.renderMessage(msg, width))
	}
	return strings.Join(rendered, "\n\n")
}

func (m *Model) updateViewportContent() {
	m.viewport.SetContent(m.styles.Messages.Render(m.renderMessages()))
}

func (m Model) header() string {
	if m.active == nil {
		return m.styles.Header.Render("huddle")
	}
	title := "#" + m.active.DisplayName()
	names := make([]string, 0, len(m.active.MemberIDs))
	for _, id := range m.active.MemberIDs {
		names = append(names, m.senderName(id))
	}
	line := m.styles.Header.Render(title)
	if m.active.Topic != "" && m.active.Topic != m.active.DisplayName() {
		line += m.styles.Muted.Render(" " + m.active.Topic)
	}
	if len(names) > 0 {
		line += m.styles.Muted.Render(fmt.Sprintf(" · %s", strings.Join(names, ", ")))
	}
	return line
}
