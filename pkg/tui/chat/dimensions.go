package chat

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const maxComposerHeight = 6

// calculateTextAreaHeight determines the visual height of the textarea
// based on its content and wrapping
func (m *Model) calculateTextAreaHeight() int {
	content := m.textarea.Value()
	if content == "" {
		return 1
	}

	textWidth := m.textarea.Width()
	if textWidth <= 0 {
		textWidth = m.width - 4
		if textWidth <= 0 {
			textWidth = 80
		}
	}

	totalVisualLines := 0
	for _, line := range strings.Split(content, "\n") {
		lineWidth := runewidth.StringWidth(line)
		visualLines := (lineWidth + textWidth - 1) / textWidth
		if visualLines < 1 {
			visualLines = 1
		}
		totalVisualLines += visualLines
	}

	if totalVisualLines > maxComposerHeight {
		return maxComposerHeight
	}
	return totalVisualLines
}

// resizeComposer grows the textarea with its content and gives the rest to the viewport
func (m *Model) resizeComposer() {
	h := m.calculateTextAreaHeight()
	if m.textarea.Height() != h {
		m.textarea.SetHeight(h)
	}
	m.updateViewportHeight()
}

func (m *Model) updateViewportHeight() {
	if m.height <= 0 {
		return
	}
	// header line, composer border (2) and the composer itself
	height := m.height - m.textarea.Height() - 3
	if height < 1 {
		height = 1
	}
	m.viewport.Height = height
}

// SetSize updates all dimensions when the window size changes
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height

	m.textarea.SetWidth(width - 2)
	m.textarea.SetHeight(m.calculateTextAreaHeight())

	m.viewport.Width = width
	m.updateViewportHeight()
	m.updateViewportContent()
}
