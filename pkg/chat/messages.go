package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeMember MessageType = "MEMBER"
	MessageTypeSystem MessageType = "SYSTEM"
)

// DeliveryState tracks a locally sent message until the server echoes it.
// It is client-side only and never serialized.
type DeliveryState int

const (
	Delivered DeliveryState = iota
	Pending
	Failed
)

func (d DeliveryState) String() string {
	switch d {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	default:
		return "delivered"
	}
}

type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	SenderID  string      `json:"senderId,omitempty"`
	ChatID    string      `json:"chatId"`
	Content   Content     `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
	// ClientID correlates an optimistic local message with its server echo.
	ClientID string `json:"clientId,omitempty"`

	Delivery DeliveryState `json:"-"`
}

// Content is the message payload: text plus any structured fields the
// server attaches, which are kept verbatim.
type Content struct {
	Text   string
	Fields map[string]json.RawMessage
}

func TextContent(text string) Content {
	return Content{Text: text}
}

func (c Content) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Fields)+1)
	for k, v := range c.Fields {
		out[k] = v
	}
	text, err := json.Marshal(c.Text)
	if err != nil {
		return nil, err
	}
	out["text"] = text
	return json.Marshal(out)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Content{Text: text}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content must be a string or an object: %w", err)
	}
	var parsed Content
	if text, ok := raw["text"]; ok {
		if err := json.Unmarshal(text, &parsed.Text); err != nil {
			return fmt.Errorf("content.text must be a string: %w", err)
		}
		delete(raw, "text")
	}
	if len(raw) > 0 {
		parsed.Fields = raw
	}
	*c = parsed
	return nil
}

// FieldNames returns the structured field names in stable order
func (c Content) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (m Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

func (m Message) IsFrom(memberID string) bool {
	return m.Type == MessageTypeMember && m.SenderID == memberID
}

func (m Message) IsPending() bool {
	return m.Delivery == Pending
}

// Preview returns a single-line, rune-truncated rendering of the text
func (m Message) Preview(maxLen int) string {
	text := strings.Join(strings.Fields(m.Content.Text), " ")
	runes := []rune(text)
	if maxLen <= 3 || len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}

// Validate checks the invariants a message must satisfy before it is stored
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if m.ChatID == "" {
		return fmt.Errorf("message %s has no chat id", m.ID)
	}
	switch m.Type {
	case MessageTypeMember:
		if m.SenderID == "" {
			return fmt.Errorf("member message %s has no sender", m.ID)
		}
	case MessageTypeSystem:
	default:
		return fmt.Errorf("message %s has unknown type %q", m.ID, m.Type)
	}
	return nil
}

func CopyMessages(messages []Message) []Message {
	if messages == nil {
		return []Message{}
	}
	result := make([]Message, len(messages))
	copy(result, messages)
	return result
}

func LastMessage(messages []Message) (Message, bool) {
	if len(messages) == 0 {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}
