package api

import (
	"bytes"
	"encoding/json"

	"github.com/killallgit/huddle/pkg/chat"
)

type nullableState uint8

const (
	unset nullableState = iota
	null
	present
)

// Nullable is a partial-update field. The zero value is unset and omitted
// from the request; Null() clears the field server-side; Set(v) writes v.
// Request fields must carry the omitzero tag option.
type Nullable[T any] struct {
	value T
	state nullableState
}

func Set[T any](v T) Nullable[T] {
	return Nullable[T]{value: v, state: present}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{state: null}
}

func (n Nullable[T]) IsZero() bool { return n.state == unset }

func (n Nullable[T]) IsNull() bool { return n.state == null }

func (n Nullable[T]) IsSet() bool { return n.state == present }

// Get returns the value and whether one is present
func (n Nullable[T]) Get() (T, bool) {
	return n.value, n.state == present
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.state != present {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Set(v)
	return nil
}

// Apply writes the field onto dst: present sets, null clears, unset leaves it
func (n Nullable[T]) Apply(dst *T) {
	switch n.state {
	case present:
		*dst = n.value
	case null:
		var zero T
		*dst = zero
	}
}

type CreateChatRequest struct {
	MemberIDs []string `json:"memberIds"`
	Name      string   `json:"name,omitempty"`
	Topic     string   `json:"topic,omitempty"`
	Creator   string   `json:"creator,omitempty"`
	Context   string   `json:"context,omitempty"`
}

type UpdateMemberRequest struct {
	MemberID      string                    `json:"memberId"`
	Name          Nullable[string]          `json:"name,omitzero"`
	Email         Nullable[string]          `json:"email,omitzero"`
	SystemMessage Nullable[string]          `json:"systemMessage,omitzero"`
	Description   Nullable[string]          `json:"description,omitzero"`
	Type          Nullable[chat.MemberType] `json:"type,omitzero"`
}

// ApplyTo returns m with the request's fields applied
func (r UpdateMemberRequest) ApplyTo(m chat.Member) chat.Member {
	r.Name.Apply(&m.Name)
	r.Email.Apply(&m.Email)
	r.SystemMessage.Apply(&m.SystemMessage)
	r.Description.Apply(&m.Description)
	r.Type.Apply(&m.Type)
	return m
}

type UpdateChatRequest struct {
	ChatID     string           `json:"chatId"`
	Name       Nullable[string] `json:"name,omitzero"`
	Topic      Nullable[string] `json:"topic,omitzero"`
	Context    Nullable[string] `json:"context,omitzero"`
	Conclusion Nullable[string] `json:"conclusion,omitzero"`
	Creator    Nullable[string] `json:"creator,omitzero"`
}

// ApplyTo returns c with the request's fields applied
func (r UpdateChatRequest) ApplyTo(c chat.Chat) chat.Chat {
	c = c.Clone()
	r.Name.Apply(&c.Name)
	r.Topic.Apply(&c.Topic)
	r.Context.Apply(&c.Context)
	r.Conclusion.Apply(&c.Conclusion)
	r.Creator.Apply(&c.Creator)
	return c
}

// IsEmpty reports whether the request changes nothing
func (r UpdateChatRequest) IsEmpty() bool {
	return r.Name.IsZero() && r.Topic.IsZero() && r.Context.IsZero() &&
		r.Conclusion.IsZero() && r.Creator.IsZero()
}

// IsEmpty reports whether the request changes nothing
func (r UpdateMemberRequest) IsEmpty() bool {
	return r.Name.IsZero() && r.Email.IsZero() && r.SystemMessage.IsZero() &&
		r.Description.IsZero() && r.Type.IsZero()
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
