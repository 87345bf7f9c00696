package chat

import (
	"fmt"
	"time"
)

// Chat is a conversation container. MemberIDs is an ordered set: order is
// display order and ids are unique.
type Chat struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Topic         string    `json:"topic,omitempty"`
	Context       string    `json:"context,omitempty"`
	Conclusion    string    `json:"conclusion,omitempty"`
	Creator       string    `json:"creator,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	MemberIDs     []string  `json:"memberIds"`
	LatestMessage *Message  `json:"latestMessage,omitempty"`
}

func (c Chat) HasMember(memberID string) bool {
	for _, id := range c.MemberIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

// DisplayName falls back to the topic, then the id
func (c Chat) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Topic != "":
		return c.Topic
	default:
		return c.ID
	}
}

// LastActivity is the latest message time, or UpdatedAt when there is none
func (c Chat) LastActivity() time.Time {
	if c.LatestMessage != nil && c.LatestMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LatestMessage.CreatedAt
	}
	return c.UpdatedAt
}

// Clone returns a deep copy so callers cannot alias store state
func (c Chat) Clone() Chat {
	out := c
	if c.MemberIDs != nil {
		out.MemberIDs = make([]string, len(c.MemberIDs))
		copy(out.MemberIDs, c.MemberIDs)
	}
	if c.LatestMessage != nil {
		msg := *c.LatestMessage
		out.LatestMessage = &msg
	}
	return out
}

// WithLatestMessage returns a copy whose preview is msg
func (c Chat) WithLatestMessage(msg Message) Chat {
	out := c.Clone()
	out.LatestMessage = &msg
	return out
}

// HasConsistentPreview reports whether LatestMessage, if set, belongs to this chat
func (c Chat) HasConsistentPreview() bool {
	return c.LatestMessage == nil || c.LatestMessage.ChatID == c.ID
}

// UniqueMemberIDs de-duplicates ids preserving first occurrence order and
// dropping empty ids.
func UniqueMemberIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func (c Chat) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chat id is required")
	}
	return nil
}
