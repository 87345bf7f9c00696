package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/events"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/store"
)

// ErrNoActiveChat is returned when sending without a selected chat
var ErrNoActiveChat = errors.New("no active chat")

// ValidationError is a user input problem caught before any network call
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// APIClient is the request/response surface the controller needs
type APIClient interface {
	ListMembers(ctx context.Context) ([]chat.Member, error)
	CreateChat(ctx context.Context, req api.CreateChatRequest) (chat.Chat, error)
	UpdateMember(ctx context.Context, req api.UpdateMemberRequest) (chat.Member, error)
	UpdateChat(ctx context.Context, req api.UpdateChatRequest) (chat.Chat, error)
}

// CommandChannel is the command side of the push channel
type CommandChannel interface {
	RequestHistory(ctx context.Context, chatID string) error
	SendMessage(ctx context.Context, cmd events.SendMessage) error
}

// NewChatInput is what the new-chat form collects
type NewChatInput struct {
	MemberIDs []string
	Name      string
	Topic     string
	Context   string
}

// ChatController turns user actions into API calls and channel commands
// and feeds pushed events into the store.
type ChatController struct {
	client   APIClient
	channel  CommandChannel
	store    *store.Store
	bus      *events.Bus
	identity chat.Identity
	chats    *ChatsController
	members  *MembersController
	subs     events.Subscriptions
	log      *logger.Logger
}

// NewChatController wires a controller; call Bind before the channel runs
func NewChatController(client APIClient, channel CommandChannel, st *store.Store, bus *events.Bus, identity chat.Identity) *ChatController {
	return &ChatController{
		client:   client,
		channel:  channel,
		store:    st,
		bus:      bus,
		identity: identity,
		chats:    NewChatsController(client, identity),
		members:  NewMembersController(client),
		log:      logger.WithComponent("chat_controller"),
	}
}

// Bind subscribes the store to the channel's events. Call Close to release.
func (cc *ChatController) Bind() {
	cc.subs.Add(
		events.On(cc.bus, events.EventInitialData, func(data events.InitialData) {
			cc.store.ApplySnapshot(data.Chats)
		}),
		events.On(cc.bus, events.EventNewChat, func(data events.NewChat) {
			cc.store.UpsertChat(data.Chat)
		}),
		events.On(cc.bus, events.EventChatHistory, func(data events.ChatHistory) {
			cc.store.ReplaceActiveMessages(data.ChatID, data.Messages)
		}),
		events.On(cc.bus, events.EventNewMessage, func(data events.NewMessage) {
			cc.store.AppendMessage(data.Message)
		}),
		events.On(cc.bus, events.EventConnected, cc.onConnected),
		events.On(cc.bus, events.EventDisconnected, func(data events.Disconnected) {
			cc.store.SetConnected(false)
		}),
	)
}

// onConnected re-requests the active chat's history after a reconnect to
// repair anything missed while the channel was down.
func (cc *ChatController) onConnected(data events.Connected) {
	cc.store.SetConnected(true)
	if !data.Reconnect {
		return
	}
	chatID := cc.store.ActiveChatID()
	if chatID == "" {
		return
	}
	if err := cc.channel.RequestHistory(context.Background(), chatID); err != nil {
		cc.log.Warn("Failed to refresh history after reconnect", "chatId", chatID, "error", err)
	}
}

// Close releases every event subscription
func (cc *ChatController) Close() {
	cc.subs.Release()
}

// LoadMembers fetches the roster into the store
func (cc *ChatController) LoadMembers(ctx context.Context) ([]chat.Member, error) {
	members, err := cc.client.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	cc.store.SetMembers(members)
	return members, nil
}

// SelectChat makes chatID active and requests its history
func (cc *ChatController) SelectChat(ctx context.Context, chatID string) error {
	if err := cc.ActivateChat(chatID); err != nil {
		return err
	}
	return cc.RequestHistory(ctx, chatID)
}

// ActivateChat switches the active chat without any network call. Callers
// that request history asynchronously activate first so the last selection
// wins regardless of when the requests complete.
func (cc *ChatController) ActivateChat(chatID string) error {
	return cc.store.SetActiveChat(chatID)
}

// RequestHistory asks the server for chatID's full message log
func (cc *ChatController) RequestHistory(ctx context.Context, chatID string) error {
	if err := cc.channel.RequestHistory(ctx, chatID); err != nil {
		return fmt.Errorf("failed to request history: %w", err)
	}
	return nil
}

// CloseChat leaves the active chat
func (cc *ChatController) CloseChat() {
	cc.store.ClearActiveChat()
}

// SendMessage sends text to the active chat
func (cc *ChatController) SendMessage(ctx context.Context, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, &ValidationError{Message: "message cannot be empty"}
	}
	chatID := cc.store.ActiveChatID()
	if chatID == "" {
		return chat.Message{}, ErrNoActiveChat
	}
	return cc.store.SendLocalMessage(ctx, chatID, chat.TextContent(text))
}

// CreateChat creates a chat with the local user as member and creator,
// stores it and selects it.
func (cc *ChatController) CreateChat(ctx context.Context, input NewChatInput) (chat.Chat, error) {
	created, err := cc.chats.Create(ctx, input)
	if err != nil {
		return chat.Chat{}, err
	}
	cc.store.ReplaceChat(created)
	return created, cc.SelectChat(ctx, created.ID)
}

// UpdateChat applies a partial update and stores the server's result
func (cc *ChatController) UpdateChat(ctx context.Context, req api.UpdateChatRequest) (chat.Chat, error) {
	updated, err := cc.chats.Update(ctx, req)
	if err != nil {
		return chat.Chat{}, err
	}
	cc.store.ReplaceChat(updated)
	return updated, nil
}

// UpdateMember applies a partial update and stores the server's result
func (cc *ChatController) UpdateMember(ctx context.Context, req api.UpdateMemberRequest) (chat.Member, error) {
	updated, err := cc.members.Update(ctx, req)
	if err != nil {
		return chat.Member{}, fmt.Errorf("failed to update member: %w", err)
	}
	cc.store.UpsertMember(updated)
	return updated, nil
}
