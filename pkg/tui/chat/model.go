package chat

import (
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/store"
	"github.com/killallgit/huddle/pkg/tui/theme"
)

// Model is the message area of the active chat plus its composer
type Model struct {
	viewport    viewport.Model
	textarea    textarea.Model
	styles      *theme.Styles
	self        string
	numEscPress int
	width       int
	height      int

	active   *chat.Chat
	state    store.ActiveState
	messages []chat.Message
	members  map[string]chat.Member
}

func New(styles *theme.Styles, self string) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return Model{
		viewport: viewport.New(80, 20),
		textarea: ta,
		styles:   styles,
		self:     self,
		members:  map[string]chat.Member{},
	}
}

// SetConversation replaces what the message area shows
func (m *Model) SetConversation(active *chat.Chat, state store.ActiveState, messages []chat.Message, members []chat.Member) {
	changedChat := (m.active == nil) != (active == nil) || (active != nil && m.active != nil && active.ID != m.active.ID)

	m.active = active
	m.state = state
	m.messages = messages
	m.members = make(map[string]chat.Member, len(members))
	for _, member := range members {
		m.members[member.ID] = member
	}

	atBottom := m.viewport.AtBottom()
	m.updateViewportContent()
	if changedChat || atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) Focus() {
	m.textarea.Focus()
}

func (m *Model) Blur() {
	m.textarea.Blur()
}

func (m Model) Focused() bool {
	return m.textarea.Focused()
}

func (m Model) Value() string {
	return m.textarea.Value()
}
