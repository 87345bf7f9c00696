package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/tui/theme"
)

const sidebarWidth = 32

type sidebar struct {
	chats    []chat.Chat
	activeID string
	cursor   int
}

func (s *sidebar) setChats(chats []chat.Chat, activeID string) {
	var selectedID string
	if s.cursor >= 0 && s.cursor < len(s.chats) {
		selectedID = s.chats[s.cursor].ID
	}
	s.chats = chats
	s.activeID = activeID

	// Keep the cursor on the same chat as the order changes
	s.cursor = 0
	for i, c := range chats {
		if c.ID == selectedID {
			s.cursor = i
			break
		}
	}
}

func (s *sidebar) move(delta int) {
	if len(s.chats) == 0 {
		s.cursor = 0
		return
	}
	s.cursor = (s.cursor + delta + len(s.chats)) % len(s.chats)
}

func (s sidebar) selected() (chat.Chat, bool) {
	if s.cursor < 0 || s.cursor >= len(s.chats) {
		return chat.Chat{}, false
	}
	return s.chats[s.cursor], true
}

func (s sidebar) view(styles *theme.Styles, focused bool, height int) string {
	inner := sidebarWidth - 4
	lines := []string{styles.Header.Render("Chats")}

	if len(s.chats) == 0 {
		lines = append(lines, styles.Muted.Render("no chats yet"))
	}
	for i, c := range s.chats {
		name := truncate(c.DisplayName(), inner-2)
		style := styles.ChatItem
		switch {
		case i == s.cursor && focused:
			style = styles.ChatSelected
		case c.ID == s.activeID:
			style = styles.ChatActive
		}
		marker := "  "
		if c.ID == s.activeID {
			marker = "› "
		}
		lines = append(lines, style.Width(inner).Render(marker+name))

		if c.LatestMessage != nil {
			lines = append(lines, styles.ChatPreview.Render("  "+c.LatestMessage.Preview(inner-2)))
		}
	}

	box := styles.Sidebar
	if focused {
		box = styles.SidebarFocused
	}
	if height > 2 {
		box = box.Height(height - 2)
	}
	return box.Width(sidebarWidth - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if max <= 1 || len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-1]) + "…"
}
