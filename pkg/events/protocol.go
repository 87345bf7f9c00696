package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/killallgit/huddle/pkg/chat"
)

// Server to client events
const (
	EventInitialData = "initialData"
	EventNewChat     = "newChat"
	EventChatHistory = "chatHistory"
	EventNewMessage  = "newMessage"
)

// Client to server commands
const (
	CommandChatHistory = "chatHistory"
	CommandSendMessage = "sendMessage"
)

// Connection lifecycle events, published locally by the Channel
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// ErrUnknownEvent is returned by Decode for event names this client does not handle
var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the frame format on the wire: {"event": name, "data": payload}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type InitialData struct {
	Chats []chat.Chat
}

type NewChat struct {
	Chat chat.Chat
}

type ChatHistory struct {
	ChatID   string         `json:"chatId"`
	Messages []chat.Message `json:"messages"`
}

type NewMessage struct {
	Message chat.Message
}

// SendMessage is the sendMessage command payload. ClientID lets the server
// echo a correlation id back on the broadcast newMessage.
type SendMessage struct {
	ChatID   string       `json:"chatId"`
	Content  chat.Content `json:"content"`
	ClientID string       `json:"clientId,omitempty"`
}

type Connected struct {
	Reconnect bool
}

type Disconnected struct {
	Err error
}

// Encode builds a wire frame
func Encode(name string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Data: payload})
}

// Decode parses a server frame into its event name and typed payload
func Decode(frame []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("frame has no event name")
	}

	switch env.Event {
	case EventInitialData:
		var chats []chat.Chat
		if err := unmarshalData(env, &chats); err != nil {
			return env.Event, nil, err
		}
		for _, c := range chats {
			if err := c.Validate(); err != nil {
				return env.Event, nil, fmt.Errorf("invalid %s: %w", env.Event, err)
			}
		}
		if chats == nil {
			chats = []chat.Chat{}
		}
		return env.Event, InitialData{Chats: chats}, nil

	case EventNewChat:
		var c chat.Chat
		if err := unmarshalData(env, &c); err != nil {
			return env.Event, nil, err
		}
		if err := c.Validate(); err != nil {
			return env.Event, nil, fmt.Errorf("invalid %s: %w", env.Event, err)
		}
		return env.Event, NewChat{Chat: c}, nil

	case EventChatHistory:
		var history ChatHistory
		if err := unmarshalData(env, &history); err != nil {
			return env.Event, nil, err
		}
		if history.ChatID == "" {
			return env.Event, nil, fmt.Errorf("invalid %s: chat id is required", env.Event)
		}
		for i := range history.Messages {
			msg := &history.Messages[i]
			if msg.ChatID == "" {
				msg.ChatID = history.ChatID
			}
			if msg.ChatID != history.ChatID {
				return env.Event, nil, fmt.Errorf("invalid %s: message %s belongs to chat %s", env.Event, msg.ID, msg.ChatID)
			}
			if err := msg.Validate(); err != nil {
				return env.Event, nil, fmt.Errorf("invalid %s: %w", env.Event, err)
			}
		}
		if history.Messages == nil {
			history.Messages = []chat.Message{}
		}
		return env.Event, history, nil

	case EventNewMessage:
		var msg chat.Message
		if err := unmarshalData(env, &msg); err != nil {
			return env.Event, nil, err
		}
		if err := msg.Validate(); err != nil {
			return env.Event, nil, fmt.Errorf("invalid %s: %w", env.Event, err)
		}
		return env.Event, NewMessage{Message: msg}, nil

	default:
		return env.Event, nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}
}

func unmarshalData(env Envelope, out any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s frame has no data", env.Event)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", env.Event, err)
	}
	return nil
}
