package controllers

import (
	"context"
	"fmt"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/config"
	"github.com/killallgit/huddle/pkg/events"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/store"
)

// InitConfig contains configuration for session initialization
type InitConfig struct {
	Config *config.Config
	// UserID overrides the configured identity when set
	UserID string
	// ChannelURL overrides the URL derived from the API URL when set
	ChannelURL string
}

// Session is one client session: the API client, the push channel and the
// store they feed, wired through a ChatController.
type Session struct {
	Identity chat.Identity
	Client   *api.Client
	Bus      *events.Bus
	Channel  *events.Channel
	Store    *store.Store
	Chat     *ChatController
	Members  *MembersController
}

// InitializeSession builds and binds a session from configuration. Call
// Run to connect the channel and Close on teardown.
func InitializeSession(cfg *InitConfig) (*Session, error) {
	log := logger.WithComponent("session_init")

	if cfg == nil || cfg.Config == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	c := cfg.Config

	userID := c.Identity.UserID
	if cfg.UserID != "" {
		userID = cfg.UserID
	}
	if userID == "" {
		return nil, fmt.Errorf("a user id is required")
	}
	identity := chat.NewIdentity(userID)

	policy, err := store.ParseMergePolicy(c.Store.MergePolicy)
	if err != nil {
		return nil, err
	}

	channelURL := cfg.ChannelURL
	if channelURL == "" {
		channelURL, err = c.ChannelURL()
		if err != nil {
			return nil, fmt.Errorf("failed to derive channel url: %w", err)
		}
	}

	var clientOpts []api.Option
	if c.API.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(c.API.Timeout))
	}
	client := api.NewClient(c.API.URL, identity, clientOpts...)

	bus := events.NewBus()
	channel := events.NewChannel(events.ChannelOptions{
		URL:             channelURL,
		Identity:        identity,
		HTTPClient:      client.HTTPClient(),
		InitialInterval: c.Channel.Reconnect.InitialInterval,
		MaxInterval:     c.Channel.Reconnect.MaxInterval,
		Multiplier:      c.Channel.Reconnect.Multiplier,
	}, bus)

	st := store.New(identity, channel, store.WithMergePolicy(policy))
	controller := NewChatController(client, channel, st, bus, identity)
	controller.Bind()

	log.Info("Session initialized", "user", userID, "api", c.API.URL, "channel", channelURL, "mergePolicy", st.MergePolicy())

	return &Session{
		Identity: identity,
		Client:   client,
		Bus:      bus,
		Channel:  channel,
		Store:    st,
		Chat:     controller,
		Members:  NewMembersController(client),
	}, nil
}

// Run keeps the push channel connected until ctx is cancelled
func (s *Session) Run(ctx context.Context) error {
	return s.Channel.Run(ctx)
}

// Close releases subscriptions and stops event dispatch
func (s *Session) Close() {
	s.Chat.Close()
	s.Bus.Close()
}
