package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/controllers"
	"github.com/killallgit/huddle/pkg/tui/theme"
)

const (
	fieldMembers = iota
	fieldName
	fieldTopic
	fieldCount
)

// submitFormMsg carries a completed new-chat form
type submitFormMsg struct {
	input controllers.NewChatInput
}

// newChatForm is a member checklist plus name and topic fields
type newChatForm struct {
	members  []chat.Member
	checked  map[string]bool
	cursor   int
	field    int
	name     textinput.Model
	topic    textinput.Model
	errorMsg string
}

func newNewChatForm(members []chat.Member, self string) *newChatForm {
	name := textinput.New()
	name.Placeholder = "optional"
	name.CharLimit = 80
	topic := textinput.New()
	topic.Placeholder = "optional"
	topic.CharLimit = 200

	others := make([]chat.Member, 0, len(members))
	for _, m := range members {
		if m.ID != self {
			others = append(others, m)
		}
	}

	return &newChatForm{
		members: others,
		checked: map[string]bool{},
		name:    name,
		topic:   topic,
	}
}

func (f *newChatForm) selectedIDs() []string {
	ids := make([]string, 0, len(f.checked))
	for _, m := range f.members {
		if f.checked[m.ID] {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (f *newChatForm) focusField(field int) {
	f.field = (field + fieldCount) % fieldCount
	f.name.Blur()
	f.topic.Blur()
	switch f.field {
	case fieldName:
		f.name.Focus()
	case fieldTopic:
		f.topic.Focus()
	}
}

func (f *newChatForm) update(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.SwitchFocus):
		f.focusField(f.field + 1)
		return nil
	case msg.Type == tea.KeyShiftTab:
		f.focusField(f.field - 1)
		return nil
	case key.Matches(msg, keys.Select):
		input := controllers.NewChatInput{
			MemberIDs: f.selectedIDs(),
			Name:      f.name.Value(),
			Topic:     f.topic.Value(),
		}
		return func() tea.Msg { return submitFormMsg{input: input} }
	}

	var cmd tea.Cmd
	switch f.field {
	case fieldMembers:
		switch {
		case key.Matches(msg, keys.Up):
			if f.cursor > 0 {
				f.cursor--
			}
		case key.Matches(msg, keys.Down):
			if f.cursor < len(f.members)-1 {
				f.cursor++
			}
		case key.Matches(msg, keys.Toggle):
			if f.cursor < len(f.members) {
				id := f.members[f.cursor].ID
				f.checked[id] = !f.checked[id]
			}
		}
	case fieldName:
		f.name, cmd = f.name.Update(msg)
	case fieldTopic:
		f.topic, cmd = f.topic.Update(msg)
	}
	return cmd
}

func (f *newChatForm) view(styles *theme.Styles, width int) string {
	label := func(field int, text string) string {
		if f.field == field {
			return styles.ChatActive.Render(text)
		}
		return styles.Header.Render(text)
	}

	lines := []string{styles.Header.Render("New chat"), "", label(fieldMembers, "Members")}
	if len(f.members) == 0 {
		lines = append(lines, styles.Muted.Render("  no members loaded"))
	}
	for i, m := range f.members {
		box := "[ ]"
		if f.checked[m.ID] {
			box = "[x]"
		}
		line := box + " " + m.DisplayName()
		if m.IsProgram() {
			line += styles.Muted.Render(" (program)")
		}
		if f.field == fieldMembers && i == f.cursor {
			line = styles.ChatSelected.Render(line)
		}
		lines = append(lines, "  "+line)
	}

	lines = append(lines, "", label(fieldName, "Name"), "  "+f.name.View())
	lines = append(lines, label(fieldTopic, "Topic"), "  "+f.topic.View())
	if f.errorMsg != "" {
		lines = append(lines, "", styles.ErrorMessage.Render(f.errorMsg))
	}
	lines = append(lines, "", styles.Muted.Render(strings.Join([]string{"space toggle", "tab next field", "enter create", "esc cancel"}, " · ")))

	return styles.SidebarFocused.Width(width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
