package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/logger"
)

// ChatClient is the subset of the API used to create and edit chats
type ChatClient interface {
	CreateChat(ctx context.Context, req api.CreateChatRequest) (chat.Chat, error)
	UpdateChat(ctx context.Context, req api.UpdateChatRequest) (chat.Chat, error)
}

// ChatsController validates and issues chat create/update requests. It
// holds no state; ChatController stores what it returns.
type ChatsController struct {
	client   ChatClient
	identity chat.Identity
	log      *logger.Logger
}

func NewChatsController(client ChatClient, identity chat.Identity) *ChatsController {
	return &ChatsController{
		client:   client,
		identity: identity,
		log:      logger.WithComponent("chats_controller"),
	}
}

// Create de-duplicates the member ids, adds the local user as member and
// creator and creates the chat.
func (cc *ChatsController) Create(ctx context.Context, input NewChatInput) (chat.Chat, error) {
	memberIDs := chat.UniqueMemberIDs(input.MemberIDs)
	if len(memberIDs) == 0 {
		return chat.Chat{}, &ValidationError{Message: "select at least one member"}
	}
	user := cc.identity.UserID
	if user != "" && !(chat.Chat{MemberIDs: memberIDs}).HasMember(user) {
		memberIDs = append(memberIDs, user)
	}

	created, err := cc.client.CreateChat(ctx, api.CreateChatRequest{
		MemberIDs: memberIDs,
		Name:      strings.TrimSpace(input.Name),
		Topic:     strings.TrimSpace(input.Topic),
		Creator:   user,
		Context:   input.Context,
	})
	if err != nil {
		return chat.Chat{}, fmt.Errorf("failed to create chat: %w", err)
	}
	if user != "" && !created.HasMember(user) {
		cc.log.Warn("Created chat does not list its creator", "chatId", created.ID, "user", user)
	}

	cc.log.Info("Chat created", "chatId", created.ID, "members", len(created.MemberIDs))
	return created, nil
}

// Update applies a partial update to a chat
func (cc *ChatsController) Update(ctx context.Context, req api.UpdateChatRequest) (chat.Chat, error) {
	if strings.TrimSpace(req.ChatID) == "" {
		return chat.Chat{}, &ValidationError{Message: "chat id is required"}
	}
	if req.IsEmpty() {
		return chat.Chat{}, &ValidationError{Message: "nothing to update"}
	}
	updated, err := cc.client.UpdateChat(ctx, req)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("failed to update chat: %w", err)
	}
	return updated, nil
}
