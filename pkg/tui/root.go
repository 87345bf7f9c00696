package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/killallgit/huddle/pkg/controllers"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/store"
	chatview "github.com/killallgit/huddle/pkg/tui/chat"
	"github.com/killallgit/huddle/pkg/tui/theme"
)

type focusArea int

const (
	focusSidebar focusArea = iota
	focusComposer
	focusForm
)

// storeChangedMsg is delivered when the store has changed since the last
// refresh. Bursts of changes collapse into one message.
type storeChangedMsg struct{}

type membersLoadedMsg struct{ err error }

type chatSelectedMsg struct {
	chatID string
	err    error
}

type messageSentMsg struct{ err error }

type chatCreatedMsg struct {
	name string
	err  error
}

type rootModel struct {
	ctx     context.Context
	session *controllers.Session
	styles  *theme.Styles
	log     *logger.Logger

	focus   focusArea
	sidebar sidebar
	chat    chatview.Model
	form    *newChatForm
	view    store.View

	errMsg string
	info   string
	width  int
	height int

	changes     chan struct{}
	unsubscribe func()
}

// NewRootModel creates the top level model for a session. The store is
// observed for the lifetime of the model; call close when done.
func NewRootModel(ctx context.Context, session *controllers.Session) *rootModel {
	styles := theme.DefaultStyles()
	m := &rootModel{
		ctx:     ctx,
		session: session,
		styles:  styles,
		log:     logger.WithComponent("tui"),
		focus:   focusSidebar,
		chat:    chatview.New(styles, session.Identity.UserID),
		changes: make(chan struct{}, 1),
	}
	m.unsubscribe = session.Store.Subscribe(func(store.Change) {
		// Observers run on the event bus goroutine and must not block on
		// the program loop.
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	m.refresh()
	return m
}

func (m *rootModel) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *rootModel) waitForChange() tea.Cmd {
	changes := m.changes
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-changes:
			return storeChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *rootModel) refresh() {
	m.view = m.session.Store.View()
	m.sidebar.setChats(m.view.Chats, m.view.ActiveChatID)

	if active, ok := m.view.ActiveChat(); ok {
		m.chat.SetConversation(&active, m.view.State, m.view.Messages, m.view.Members)
	} else {
		m.chat.SetConversation(nil, m.view.State, nil, m.view.Members)
	}
}

func (m *rootModel) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.loadMembers())
}

func (m *rootModel) loadMembers() tea.Cmd {
	ctx, cc := m.ctx, m.session.Chat
	return func() tea.Msg {
		_, err := cc.LoadMembers(ctx)
		return membersLoadedMsg{err: err}
	}
}

// selectChat activates chatID before returning, so quick successive
// selections apply in key order. Only the history request runs async.
func (m *rootModel) selectChat(chatID string) tea.Cmd {
	if err := m.session.Chat.ActivateChat(chatID); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.errMsg = ""
	m.refresh()
	m.setFocus(focusComposer)

	ctx, cc := m.ctx, m.session.Chat
	return func() tea.Msg {
		return chatSelectedMsg{chatID: chatID, err: cc.RequestHistory(ctx, chatID)}
	}
}

func (m *rootModel) sendMessage(text string) tea.Cmd {
	ctx, cc := m.ctx, m.session.Chat
	return func() tea.Msg {
		_, err := cc.SendMessage(ctx, text)
		return messageSentMsg{err: err}
	}
}

func (m *rootModel) createChat(input controllers.NewChatInput) tea.Cmd {
	ctx, cc := m.ctx, m.session.Chat
	return func() tea.Msg {
		created, err := cc.CreateChat(ctx, input)
		return chatCreatedMsg{name: created.DisplayName(), err: err}
	}
}

func (m *rootModel) setFocus(f focusArea) {
	m.focus = f
	if f == focusComposer {
		m.chat.Focus()
	} else {
		m.chat.Blur()
	}
}

func (m *rootModel) layout() {
	chatWidth := m.width - sidebarWidth
	if chatWidth < 20 {
		chatWidth = 20
	}
	m.chat.SetSize(chatWidth, m.height-1)
}

func (m *rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case storeChangedMsg:
		m.refresh()
		return m, m.waitForChange()

	case membersLoadedMsg:
		if msg.err != nil {
			m.errMsg = "members: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case chatSelectedMsg:
		if msg.err != nil && msg.chatID == m.view.ActiveChatID {
			m.errMsg = msg.err.Error()
		}
		return m, nil

	case messageSentMsg:
		if msg.err != nil {
			m.log.Warn("Send failed", "error", msg.err)
			m.errMsg = "message not sent: " + msg.err.Error()
		} else {
			m.errMsg = ""
		}
		return m, nil

	case submitFormMsg:
		return m, m.createChat(msg.input)

	case chatCreatedMsg:
		if msg.err != nil {
			text := msg.err.Error()
			var verr *controllers.ValidationError
			if errors.As(msg.err, &verr) {
				text = verr.Message
			} else {
				m.log.Warn("Create chat failed", "error", msg.err)
			}
			if m.form != nil {
				m.form.errorMsg = text
			} else {
				m.errMsg = text
			}
			return m, nil
		}
		m.form = nil
		m.errMsg = ""
		m.info = "created " + msg.name
		m.setFocus(focusComposer)
		return m, nil

	case chatview.SubmitMsg:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return m, nil
		}
		return m, m.sendMessage(text)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

func (m *rootModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	if m.focus == focusForm && m.form != nil {
		if key.Matches(msg, keys.Cancel) {
			m.form = nil
			m.setFocus(focusSidebar)
			return m, nil
		}
		return m, m.form.update(msg)
	}

	switch {
	case key.Matches(msg, keys.NewChat):
		m.form = newNewChatForm(m.view.Members, m.session.Identity.UserID)
		m.info = ""
		m.setFocus(focusForm)
		return m, nil
	case key.Matches(msg, keys.SwitchFocus):
		if m.focus == focusSidebar {
			m.setFocus(focusComposer)
		} else {
			m.setFocus(focusSidebar)
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		switch {
		case key.Matches(msg, keys.Up):
			m.sidebar.move(-1)
		case key.Matches(msg, keys.Down):
			m.sidebar.move(1)
		case key.Matches(msg, keys.Select):
			if c, ok := m.sidebar.selected(); ok {
				m.info = ""
				return m, m.selectChat(c.ID)
			}
		case key.Matches(msg, keys.Cancel):
			m.session.Chat.CloseChat()
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

func (m *rootModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	body := m.height - 1
	left := m.sidebar.view(m.styles, m.focus == focusSidebar, body)
	var right string
	if m.focus == focusForm && m.form != nil {
		right = m.form.view(m.styles, m.width-sidebarWidth)
	} else {
		right = m.chat.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		statusLine(m.styles, m.view, m.errMsg, m.info, m.width),
	)
}
