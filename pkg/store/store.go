package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/events"
	"github.com/killallgit/huddle/pkg/logger"
)

// ErrUnknownChat is returned when an operation names a chat the store has not seen
var ErrUnknownChat = errors.New("unknown chat")

// ActiveState is the state of the active chat and its message view
type ActiveState int

const (
	NoActiveChat ActiveState = iota
	ActiveChatLoading
	ActiveChatReady
)

func (s ActiveState) String() string {
	switch s {
	case ActiveChatLoading:
		return "loading"
	case ActiveChatReady:
		return "ready"
	default:
		return "none"
	}
}

// MergePolicy decides what UpsertChat does with a chat id it already holds
type MergePolicy int

const (
	// FirstWriteWins keeps the existing chat untouched
	FirstWriteWins MergePolicy = iota
	// LatestUpdateWins replaces the existing chat when the incoming updatedAt is newer
	LatestUpdateWins
)

func (p MergePolicy) String() string {
	if p == LatestUpdateWins {
		return "latest_update_wins"
	}
	return "first_write_wins"
}

// ParseMergePolicy maps a store.merge_policy setting to a MergePolicy.
// The empty string selects the default.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_write_wins":
		return FirstWriteWins, nil
	case "latest_update_wins":
		return LatestUpdateWins, nil
	default:
		return FirstWriteWins, fmt.Errorf("unknown merge policy %q", s)
	}
}

// MessageSender emits the sendMessage command
type MessageSender interface {
	SendMessage(ctx context.Context, cmd events.SendMessage) error
}

type ChangeType string

const (
	ChangeSnapshot   ChangeType = "snapshot"
	ChangeChat       ChangeType = "chat"
	ChangeActive     ChangeType = "active"
	ChangeMessages   ChangeType = "messages"
	ChangeMembers    ChangeType = "members"
	ChangeConnection ChangeType = "connection"
)

// Change describes one store mutation
type Change struct {
	Type   ChangeType
	ChatID string
}

// View is a consistent copy of everything the presentation layer reads
type View struct {
	Chats        []chat.Chat
	Members      []chat.Member
	ActiveChatID string
	State        ActiveState
	Messages     []chat.Message
	Connected    bool
}

// ActiveChat returns the active chat from the view
func (v View) ActiveChat() (chat.Chat, bool) {
	for _, c := range v.Chats {
		if c.ID == v.ActiveChatID {
			return c, true
		}
	}
	return chat.Chat{}, false
}

// Store owns the chat collection, the member roster and the active chat's
// message sequence. All methods are safe for concurrent use; observers are
// called synchronously after the lock is released, in mutation order.
type Store struct {
	mutex    sync.RWMutex
	identity chat.Identity
	sender   MessageSender
	policy   MergePolicy

	chats     map[string]chat.Chat
	chatOrder []string

	members     map[string]chat.Member
	memberOrder []string

	activeID  string
	state     ActiveState
	messages  []chat.Message
	connected bool

	observers    map[uint64]func(Change)
	nextObserver uint64

	now   func() time.Time
	newID func() string
	log   *logger.Logger
}

type Option func(*Store)

// WithMergePolicy sets how UpsertChat treats a chat that is already known
func WithMergePolicy(p MergePolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides the timestamp source for local messages
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how local message ids are generated
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates an empty store acting for identity. sender may be nil for
// read-only consumers; SendLocalMessage then fails.
func New(identity chat.Identity, sender MessageSender, opts ...Option) *Store {
	s := &Store{
		identity:  identity,
		sender:    sender,
		chats:     make(map[string]chat.Chat),
		members:   make(map[string]chat.Member),
		observers: make(map[uint64]func(Change)),
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.WithComponent("chat_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity is the user local messages are sent as
func (s *Store) Identity() chat.Identity {
	return s.identity
}

// MergePolicy reports the policy UpsertChat applies
func (s *Store) MergePolicy() MergePolicy {
	return s.policy
}

// Subscribe registers an observer and returns its unsubscribe function
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextObserver++
	id := s.nextObserver
	s.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mutex.Lock()
			delete(s.observers, id)
			s.mutex.Unlock()
		})
	}
}

// notify must be called without the lock held
func (s *Store) notify(changes ...Change) {
	s.mutex.RLock()
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mutex.RUnlock()

	for _, change := range changes {
		s.log.Debug("State changed", "type", change.Type, "chatId", change.ChatID)
		for _, fn := range observers {
			fn(change)
		}
	}
}

// sanitize enforces the chat invariants on data arriving from outside
func (s *Store) sanitize(c chat.Chat) chat.Chat {
	c = c.Clone()
	c.MemberIDs = chat.UniqueMemberIDs(c.MemberIDs)
	if c.LatestMessage != nil {
		if c.LatestMessage.ChatID == "" {
			c.LatestMessage.ChatID = c.ID
		}
		if !c.HasConsistentPreview() {
			s.log.Warn("Dropping latest message from another chat", "chatId", c.ID, "messageChatId", c.LatestMessage.ChatID)
			c.LatestMessage = nil
		}
	}
	return c
}

// putChat stores c, appending new ids to the insertion order. Caller holds the lock.
func (s *Store) putChat(c chat.Chat) {
	if _, ok := s.chats[c.ID]; !ok {
		s.chatOrder = append(s.chatOrder, c.ID)
	}
	s.chats[c.ID] = c
}

// ApplySnapshot replaces the entire chat collection
func (s *Store) ApplySnapshot(chats []chat.Chat) {
	s.mutex.Lock()
	s.chats = make(map[string]chat.Chat, len(chats))
	s.chatOrder = make([]string, 0, len(chats))
	for _, c := range chats {
		if c.ID == "" {
			continue
		}
		s.putChat(s.sanitize(c))
	}
	count := len(s.chatOrder)
	changes := []Change{{Type: ChangeSnapshot}}
	var dropped string
	if _, ok := s.chats[s.activeID]; s.activeID != "" && !ok {
		dropped = s.activeID
		s.clearActiveLocked()
		changes = append(changes, Change{Type: ChangeActive})
	}
	s.mutex.Unlock()

	s.log.Info("Applied chat snapshot", "chats", count)
	if dropped != "" {
		s.log.Warn("Active chat missing from snapshot", "chatId", dropped)
	}
	s.notify(changes...)
}

// UpsertChat inserts a chat by id. An existing chat is only replaced under
// LatestUpdateWins with a newer updatedAt. It reports whether anything changed.
func (s *Store) UpsertChat(c chat.Chat) bool {
	if c.ID == "" {
		return false
	}

	s.mutex.Lock()
	incoming := s.sanitize(c)
	existing, ok := s.chats[c.ID]
	switch {
	case !ok:
		s.putChat(incoming)
	case s.policy == LatestUpdateWins && incoming.UpdatedAt.After(existing.UpdatedAt):
		if incoming.LatestMessage == nil {
			incoming.LatestMessage = existing.LatestMessage
		}
		s.putChat(incoming)
	default:
		s.mutex.Unlock()
		return false
	}
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeChat, ChatID: c.ID})
	return true
}

// ReplaceChat stores an authoritative chat returned by the API, keeping
// the cached preview when the response has none.
func (s *Store) ReplaceChat(c chat.Chat) {
	if c.ID == "" {
		return
	}

	s.mutex.Lock()
	incoming := s.sanitize(c)
	if existing, ok := s.chats[c.ID]; ok && incoming.LatestMessage == nil {
		incoming.LatestMessage = existing.LatestMessage
	}
	s.putChat(incoming)
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeChat, ChatID: c.ID})
}

// SetActiveChat switches the active chat and clears the message view
// immediately; history for the previous chat is discarded when it arrives.
func (s *Store) SetActiveChat(chatID string) error {
	s.mutex.Lock()
	if _, ok := s.chats[chatID]; !ok {
		s.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	s.activeID = chatID
	s.state = ActiveChatLoading
	s.messages = []chat.Message{}
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeActive, ChatID: chatID})
	return nil
}

// ClearActiveChat closes the active chat; late history for it is discarded
func (s *Store) ClearActiveChat() {
	s.mutex.Lock()
	s.clearActiveLocked()
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeActive})
}

func (s *Store) clearActiveLocked() {
	s.activeID = ""
	s.state = NoActiveChat
	s.messages = nil
}

// ReplaceActiveMessages applies a chat's full history if chatID is still
// active. Unconfirmed local messages are kept after the history. It reports
// whether the history was applied.
func (s *Store) ReplaceActiveMessages(chatID string, messages []chat.Message) bool {
	s.mutex.Lock()
	if s.state == NoActiveChat || chatID != s.activeID {
		active := s.activeID
		s.mutex.Unlock()
		s.log.Debug("Discarding history for inactive chat", "chatId", chatID, "activeChatId", active)
		return false
	}

	next := make([]chat.Message, 0, len(messages)+len(s.messages))
	seenIDs := make(map[string]struct{}, len(messages))
	seenClientIDs := make(map[string]struct{})
	// own messages without a client id, newest last
	var ownUnmatched []chat.Message
	for _, m := range messages {
		if _, dup := seenIDs[m.ID]; dup {
			continue
		}
		seenIDs[m.ID] = struct{}{}
		if m.ClientID != "" {
			seenClientIDs[m.ClientID] = struct{}{}
		} else if m.IsFrom(s.identity.UserID) {
			ownUnmatched = append(ownUnmatched, m)
		}
		m.Delivery = chat.Delivered
		next = append(next, m)
	}
	for _, local := range s.messages {
		if local.Delivery == chat.Delivered {
			continue
		}
		if _, ok := seenClientIDs[local.ClientID]; ok {
			continue
		}
		if _, ok := seenIDs[local.ID]; ok {
			continue
		}
		if i := lastWithText(ownUnmatched, local.Content.Text); i >= 0 {
			// each history message confirms at most one local message
			ownUnmatched = append(ownUnmatched[:i], ownUnmatched[i+1:]...)
			continue
		}
		next = append(next, local)
	}
	s.messages = next
	s.state = ActiveChatReady

	if last, ok := chat.LastMessage(messages); ok {
		if c, exists := s.chats[chatID]; exists {
			if c.LatestMessage == nil || !last.CreatedAt.Before(c.LatestMessage.CreatedAt) {
				last.Delivery = chat.Delivered
				s.chats[chatID] = c.WithLatestMessage(last)
			}
		}
	}
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeMessages, ChatID: chatID})
	return true
}

// AppendMessage records a pushed message. The owning chat's preview is
// always updated; the active view gains the message only when its chat is
// active. A message for an unknown chat is ignored. A server echo of a
// local pending message replaces it in place.
func (s *Store) AppendMessage(m chat.Message) bool {
	s.mutex.Lock()
	c, ok := s.chats[m.ChatID]
	if !ok {
		s.mutex.Unlock()
		s.log.Debug("Ignoring message for unknown chat", "chatId", m.ChatID, "messageId", m.ID)
		return false
	}

	m.Delivery = chat.Delivered
	s.chats[m.ChatID] = c.WithLatestMessage(m)

	changes := []Change{{Type: ChangeChat, ChatID: m.ChatID}}
	if m.ChatID == s.activeID && s.state != NoActiveChat {
		if s.appendActive(m) {
			changes = append(changes, Change{Type: ChangeMessages, ChatID: m.ChatID})
		}
	}
	s.mutex.Unlock()

	s.notify(changes...)
	return true
}

// appendActive reconciles m into the active view. Caller holds the lock.
func (s *Store) appendActive(m chat.Message) bool {
	for _, existing := range s.messages {
		if existing.ID == m.ID {
			return false
		}
	}
	if i := s.findLocal(m); i >= 0 {
		s.messages[i] = m
		return true
	}
	s.messages = append(s.messages, m)
	return true
}

// lastWithText returns the index of the newest message with text, or -1
func lastWithText(messages []chat.Message, text string) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Content.Text == text {
			return i
		}
	}
	return -1
}

// findLocal finds the unconfirmed local message m confirms: by client id,
// or by sender and identical text for servers that do not echo client ids.
func (s *Store) findLocal(m chat.Message) int {
	if m.ClientID != "" {
		for i, local := range s.messages {
			if local.Delivery != chat.Delivered && local.ClientID == m.ClientID {
				return i
			}
		}
		return -1
	}
	if !m.IsFrom(s.identity.UserID) {
		return -1
	}
	for i, local := range s.messages {
		if local.Delivery != chat.Delivered && local.Content.Text == m.Content.Text {
			return i
		}
	}
	return -1
}

// SendLocalMessage appends an optimistic message to the view and emits the
// sendMessage command. The message stays Pending until the server echo
// arrives and is marked Failed if the command cannot be sent.
func (s *Store) SendLocalMessage(ctx context.Context, chatID string, content chat.Content) (chat.Message, error) {
	if s.sender == nil {
		return chat.Message{}, fmt.Errorf("store has no message sender")
	}

	s.mutex.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mutex.Unlock()
		return chat.Message{}, fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}

	id := s.newID()
	msg := chat.Message{
		ID:        id,
		ClientID:  id,
		Type:      chat.MessageTypeMember,
		SenderID:  s.identity.UserID,
		ChatID:    chatID,
		Content:   content,
		CreatedAt: s.now(),
		Delivery:  chat.Pending,
	}
	s.chats[chatID] = c.WithLatestMessage(msg)
	changes := []Change{{Type: ChangeChat, ChatID: chatID}}
	if chatID == s.activeID && s.state != NoActiveChat {
		s.messages = append(s.messages, msg)
		changes = append(changes, Change{Type: ChangeMessages, ChatID: chatID})
	}
	s.mutex.Unlock()
	s.notify(changes...)

	err := s.sender.SendMessage(ctx, events.SendMessage{
		ChatID:   chatID,
		Content:  content,
		ClientID: msg.ClientID,
	})
	if err != nil {
		s.markFailed(chatID, msg.ClientID)
		msg.Delivery = chat.Failed
		return msg, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

func (s *Store) markFailed(chatID, clientID string) {
	s.mutex.Lock()
	changed := false
	for i := range s.messages {
		if s.messages[i].ClientID == clientID && s.messages[i].Delivery == chat.Pending {
			s.messages[i].Delivery = chat.Failed
			changed = true
		}
	}
	if c, ok := s.chats[chatID]; ok && c.LatestMessage != nil && c.LatestMessage.ClientID == clientID {
		failed := *c.LatestMessage
		failed.Delivery = chat.Failed
		s.chats[chatID] = c.WithLatestMessage(failed)
	}
	s.mutex.Unlock()

	if changed {
		s.notify(Change{Type: ChangeMessages, ChatID: chatID})
	}
}

// SetMembers replaces the member roster
func (s *Store) SetMembers(members []chat.Member) {
	s.mutex.Lock()
	s.members = make(map[string]chat.Member, len(members))
	s.memberOrder = make([]string, 0, len(members))
	for _, m := range members {
		if m.ID == "" {
			continue
		}
		if _, ok := s.members[m.ID]; !ok {
			s.memberOrder = append(s.memberOrder, m.ID)
		}
		s.members[m.ID] = m
	}
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeMembers})
}

func (s *Store) UpsertMember(m chat.Member) {
	if m.ID == "" {
		return
	}
	s.mutex.Lock()
	if _, ok := s.members[m.ID]; !ok {
		s.memberOrder = append(s.memberOrder, m.ID)
	}
	s.members[m.ID] = m
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeMembers})
}

func (s *Store) Members() []chat.Member {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.membersLocked()
}

func (s *Store) membersLocked() []chat.Member {
	result := make([]chat.Member, 0, len(s.memberOrder))
	for _, id := range s.memberOrder {
		result = append(result, s.members[id])
	}
	return result
}

func (s *Store) Member(id string) (chat.Member, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	m, ok := s.members[id]
	return m, ok
}

func (s *Store) SetConnected(connected bool) {
	s.mutex.Lock()
	if s.connected == connected {
		s.mutex.Unlock()
		return
	}
	s.connected = connected
	s.mutex.Unlock()

	s.notify(Change{Type: ChangeConnection})
}

func (s *Store) Connected() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.connected
}

// Chats returns the chats in insertion order
func (s *Store) Chats() []chat.Chat {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]chat.Chat, 0, len(s.chatOrder))
	for _, id := range s.chatOrder {
		result = append(result, s.chats[id].Clone())
	}
	return result
}

// ChatsByActivity returns the chats most recently active first
func (s *Store) ChatsByActivity() []chat.Chat {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.chatsByActivityLocked()
}

func (s *Store) chatsByActivityLocked() []chat.Chat {
	result := make([]chat.Chat, 0, len(s.chatOrder))
	for _, id := range s.chatOrder {
		result = append(result, s.chats[id].Clone())
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastActivity().After(result[j].LastActivity())
	})
	return result
}

func (s *Store) Chat(id string) (chat.Chat, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	c, ok := s.chats[id]
	return c.Clone(), ok
}

func (s *Store) ActiveChatID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.activeID
}

func (s *Store) ActiveChat() (chat.Chat, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.state == NoActiveChat {
		return chat.Chat{}, false
	}
	c, ok := s.chats[s.activeID]
	return c.Clone(), ok
}

// ActiveMessages returns a copy of the active message sequence
func (s *Store) ActiveMessages() []chat.Message {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return chat.CopyMessages(s.messages)
}

func (s *Store) State() ActiveState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// View returns one consistent copy of the whole store
func (s *Store) View() View {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return View{
		Chats:        s.chatsByActivityLocked(),
		Members:      s.membersLocked(),
		ActiveChatID: s.activeID,
		State:        s.state,
		Messages:     chat.CopyMessages(s.messages),
		Connected:    s.connected,
	}
}
