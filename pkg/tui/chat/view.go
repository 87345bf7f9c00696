package chat

import "github.com/charmbracelet/lipgloss"

func (m Model) View() string {
	composer := m.styles.Composer
	if m.textarea.Focused() {
		composer = m.styles.ComposerFocus
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.viewport.View(),
		composer.Render(m.textarea.View()),
	)
}
