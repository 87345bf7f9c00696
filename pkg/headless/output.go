package headless

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/tui/theme"
)

const previewLength = 60

// MemberLookup resolves sender names
type MemberLookup interface {
	Member(id string) (chat.Member, bool)
}

// Output prints one styled line per event
type Output struct {
	mu      sync.Mutex
	w       io.Writer
	styles  *theme.Styles
	members MemberLookup
	self    string
}

// NewOutput creates a new output handler
func NewOutput(w io.Writer, members MemberLookup, self string) *Output {
	return &Output{
		w:       w,
		styles:  theme.DefaultStyles(),
		members: members,
		self:    self,
	}
}

func (o *Output) println(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, line)
}

func (o *Output) timestamp(t time.Time) string {
	if t.IsZero() {
		return o.styles.Timestamp.Render("--:--:--")
	}
	return o.styles.Timestamp.Render(t.Local().Format("15:04:05"))
}

func (o *Output) senderName(id string) string {
	if o.members != nil {
		if m, ok := o.members.Member(id); ok {
			return m.DisplayName()
		}
	}
	return id
}

// Snapshot prints the chat list received on connect
func (o *Output) Snapshot(chats []chat.Chat) {
	o.println(o.styles.InfoMessage.Render(fmt.Sprintf("%d chats", len(chats))))
	for _, c := range chats {
		o.Chat(c)
	}
}

func (o *Output) Chat(c chat.Chat) {
	line := fmt.Sprintf("%s %s", o.styles.ChatActive.Render("#"+c.DisplayName()), o.styles.Muted.Render(c.ID))
	if c.LatestMessage != nil {
		line += " " + o.styles.ChatPreview.Render(c.LatestMessage.Preview(previewLength))
	}
	o.println(line)
}

func (o *Output) Message(chatName string, m chat.Message) {
	var sender string
	switch {
	case m.IsSystem():
		sender = o.styles.SystemMessage.Render("system")
	case m.SenderID == o.self:
		sender = o.styles.Self.Render(o.senderName(m.SenderID))
	default:
		sender = o.styles.SenderStyle(m.SenderID).Render(o.senderName(m.SenderID))
	}

	text := m.Content.Text
	if m.IsSystem() {
		text = o.styles.SystemMessage.Render(text)
	}
	o.println(fmt.Sprintf("%s %s %s: %s", o.timestamp(m.CreatedAt), o.styles.Muted.Render("#"+chatName), sender, text))
}

func (o *Output) Status(connected bool, err error) {
	if connected {
		o.println(o.styles.Connected.Render("● connected"))
		return
	}
	line := o.styles.Disconnected.Render("○ disconnected")
	if err != nil {
		line += " " + o.styles.Muted.Render(err.Error())
	}
	o.println(line)
}

// Error prints an error line and logs it
func (o *Output) Error(msg string) {
	logger.Error(msg)
	o.println(o.styles.ErrorMessage.Render("error: " + msg))
}
