package headless

import (
	"context"
	"io"

	"github.com/killallgit/huddle/pkg/controllers"
	"github.com/killallgit/huddle/pkg/events"
	"github.com/killallgit/huddle/pkg/logger"
)

// runner prints session events as they are applied to the store
type runner struct {
	session  *controllers.Session
	output   *Output
	follow   string
	selected bool
	subs     events.Subscriptions
	log      *logger.Logger
}

func newRunner(session *controllers.Session, w io.Writer, follow string) *runner {
	return &runner{
		session: session,
		output:  NewOutput(w, session.Store, session.Identity.UserID),
		follow:  follow,
		log:     logger.WithComponent("headless_runner"),
	}
}

// bind subscribes after the controller so every handler sees the store
// already updated for the event it is printing.
func (r *runner) bind(ctx context.Context) {
	bus := r.session.Bus
	r.subs.Add(
		events.On(bus, events.EventConnected, func(events.Connected) {
			r.output.Status(true, nil)
		}),
		events.On(bus, events.EventDisconnected, func(data events.Disconnected) {
			r.output.Status(false, data.Err)
		}),
		events.On(bus, events.EventInitialData, func(data events.InitialData) {
			r.output.Snapshot(r.session.Store.ChatsByActivity())
			r.selectFollowed(ctx)
		}),
		events.On(bus, events.EventNewChat, func(data events.NewChat) {
			if c, ok := r.session.Store.Chat(data.Chat.ID); ok {
				r.output.Chat(c)
			}
		}),
		events.On(bus, events.EventChatHistory, func(data events.ChatHistory) {
			if data.ChatID != r.session.Store.ActiveChatID() {
				return
			}
			name := r.chatName(data.ChatID)
			for _, m := range data.Messages {
				r.output.Message(name, m)
			}
		}),
		events.On(bus, events.EventNewMessage, func(data events.NewMessage) {
			if _, ok := r.session.Store.Chat(data.Message.ChatID); !ok {
				return
			}
			r.output.Message(r.chatName(data.Message.ChatID), data.Message)
		}),
	)
}

func (r *runner) selectFollowed(ctx context.Context) {
	if r.follow == "" || r.selected {
		return
	}
	if err := r.session.Chat.SelectChat(ctx, r.follow); err != nil {
		r.output.Error(err.Error())
		return
	}
	r.selected = true
}

func (r *runner) chatName(chatID string) string {
	if c, ok := r.session.Store.Chat(chatID); ok {
		return c.DisplayName()
	}
	return chatID
}

func (r *runner) cleanup() {
	r.subs.Release()
}
