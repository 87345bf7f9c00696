// Package fakeserver is an in-memory chat backend speaking the huddle HTTP
// and push channel protocol. It backs the integration tests and the
// dev-server command.
package fakeserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/events"
	"github.com/killallgit/huddle/pkg/logger"
)

const SessionCookie = "huddle_session"

type client struct {
	conn   *websocket.Conn
	user   string
	cancel context.CancelFunc
}

type Server struct {
	mu sync.Mutex

	members     map[string]chat.Member
	memberOrder []string
	chats       map[string]chat.Chat
	chatOrder   []string
	messages    map[string][]chat.Message

	clients      map[*client]struct{}
	connects     int
	commands     []events.Envelope
	failures     map[string]int
	echoClientID bool

	now    func() time.Time
	router chi.Router
	log    *logger.Logger
}

type Option func(*Server)

func WithMembers(members ...chat.Member) Option {
	return func(s *Server) {
		for _, m := range members {
			s.putMember(m)
		}
	}
}

func WithChats(chats ...chat.Chat) Option {
	return func(s *Server) {
		for _, c := range chats {
			s.putChat(c)
		}
	}
}

func WithMessages(chatID string, messages ...chat.Message) Option {
	return func(s *Server) {
		for _, m := range messages {
			m.ChatID = chatID
			s.messages[chatID] = append(s.messages[chatID], m)
		}
	}
}

// WithoutClientIDEcho makes newMessage broadcasts omit the sender's clientId
func WithoutClientIDEcho() Option {
	return func(s *Server) { s.echoClientID = false }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(opts ...Option) *Server {
	s := &Server{
		members:      make(map[string]chat.Member),
		chats:        make(map[string]chat.Chat),
		messages:     make(map[string][]chat.Message),
		clients:      make(map[*client]struct{}),
		failures:     make(map[string]int),
		echoClientID: true,
		now:          func() time.Time { return time.Now().UTC() },
		log:          logger.WithComponent("fake_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.session)

	r.Get("/chat/members", s.listMembers)
	r.Post("/chat/create", s.createChat)
	r.Post("/chat/update-member", s.updateMember)
	r.Post("/chat/update-chat", s.updateChat)
	r.Get("/socket", s.socket)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on a loopback httptest server
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

// session hands out a cookie and fails requests queued with FailNext
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(SessionCookie); err != nil {
			http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: uuid.NewString(), Path: "/"})
		}

		s.mu.Lock()
		status, fail := s.failures[r.URL.Path]
		if fail {
			delete(s.failures, r.URL.Path)
		}
		s.mu.Unlock()
		if fail {
			s.writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailNext makes the next request to path answer with status
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) putMember(m chat.Member) {
	if _, ok := s.members[m.ID]; !ok {
		s.memberOrder = append(s.memberOrder, m.ID)
	}
	s.members[m.ID] = m
}

func (s *Server) putChat(c chat.Chat) {
	if _, ok := s.chats[c.ID]; !ok {
		s.chatOrder = append(s.chatOrder, c.ID)
	}
	s.chats[c.ID] = c
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	members := make([]chat.Member, 0, len(s.memberOrder))
	for _, id := range s.memberOrder {
		members = append(members, s.members[id])
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, members)
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req api.CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	memberIDs := chat.UniqueMemberIDs(req.MemberIDs)
	if len(memberIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "memberIds must not be empty")
		return
	}

	now := s.now()
	created := chat.Chat{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Topic:     req.Topic,
		Context:   req.Context,
		Creator:   req.Creator,
		CreatedAt: now,
		UpdatedAt: now,
		MemberIDs: memberIDs,
	}

	s.mu.Lock()
	s.putChat(created)
	s.mu.Unlock()

	s.log.Info("Chat created", "chatId", created.ID)
	s.writeJSON(w, http.StatusOK, created)
	s.Broadcast(events.EventNewChat, created)
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	existing, ok := s.members[req.MemberID]
	if !ok {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, "member not found")
		return
	}
	updated := req.ApplyTo(existing)
	s.members[updated.ID] = updated
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) updateChat(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	existing, ok := s.chats[req.ChatID]
	if !ok {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	updated := req.ApplyTo(existing)
	updated.UpdatedAt = s.now()
	s.chats[updated.ID] = updated
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) socket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(1 << 20)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &client{conn: conn, user: r.Header.Get(api.IdentityHeader), cancel: cancel}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.connects++
	snapshot := s.chatsLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	s.log.Info("Client connected", "user", c.user)
	if err := s.send(ctx, c, events.EventInitialData, snapshot); err != nil {
		return
	}

	for {
		var env events.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, env)
		s.mu.Unlock()

		switch env.Event {
		case events.CommandChatHistory:
			var chatID string
			if err := json.Unmarshal(env.Data, &chatID); err != nil {
				s.log.Warn("Bad chatHistory command", "error", err)
				continue
			}
			if err := s.send(ctx, c, events.EventChatHistory, events.ChatHistory{
				ChatID:   chatID,
				Messages: s.Messages(chatID),
			}); err != nil {
				return
			}

		case events.CommandSendMessage:
			var cmd events.SendMessage
			if err := json.Unmarshal(env.Data, &cmd); err != nil {
				s.log.Warn("Bad sendMessage command", "error", err)
				continue
			}
			msg := chat.Message{
				ID:        uuid.NewString(),
				Type:      chat.MessageTypeMember,
				SenderID:  c.user,
				ChatID:    cmd.ChatID,
				Content:   cmd.Content,
				CreatedAt: s.now(),
			}
			if s.echoClientID {
				msg.ClientID = cmd.ClientID
			}
			s.PushMessage(msg)

		default:
			s.log.Debug("Ignoring command", "event", env.Event)
		}
	}
}

func (s *Server) send(ctx context.Context, c *client, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, events.Envelope{Event: name, Data: payload})
}

// Broadcast pushes an event to every connected client
func (s *Server) Broadcast(name string, data any) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := s.send(context.Background(), c, name, data); err != nil {
			s.log.Debug("Broadcast failed", "event", name, "user", c.user, "error", err)
		}
	}
}

// BroadcastRaw pushes an unvalidated frame, for malformed input tests
func (s *Server) BroadcastRaw(frame string) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.conn.Write(ctx, websocket.MessageText, []byte(frame))
		cancel()
	}
}

// PushMessage stores a message, updates its chat's preview and broadcasts it.
// Messages for unknown chats are dropped.
func (s *Server) PushMessage(msg chat.Message) bool {
	s.mu.Lock()
	c, ok := s.chats[msg.ChatID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("Message for unknown chat", "chatId", msg.ChatID)
		return false
	}
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	s.chats[msg.ChatID] = c.WithLatestMessage(msg)
	s.mu.Unlock()

	s.Broadcast(events.EventNewMessage, msg)
	return true
}

// AddChat stores a chat and announces it with newChat
func (s *Server) AddChat(c chat.Chat) {
	s.mu.Lock()
	s.putChat(c)
	s.mu.Unlock()
	s.Broadcast(events.EventNewChat, c)
}

// DropConnections closes every push connection
func (s *Server) DropConnections() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "server restart")
		c.cancel()
	}
}

func (s *Server) chatsLocked() []chat.Chat {
	chats := make([]chat.Chat, 0, len(s.chatOrder))
	for _, id := range s.chatOrder {
		chats = append(chats, s.chats[id].Clone())
	}
	return chats
}

func (s *Server) Chats() []chat.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatsLocked()
}

func (s *Server) Chat(id string) (chat.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	return c.Clone(), ok
}

func (s *Server) Member(id string) (chat.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	return m, ok
}

func (s *Server) Messages(chatID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CopyMessages(s.messages[chatID])
}

// Connections returns the number of open push connections
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Connects returns how many push connections were ever accepted
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Commands returns the names of commands received, in order
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.commands))
	for _, env := range s.commands {
		names = append(names, env.Event)
	}
	return names
}

// WebsocketURL maps an http base URL to the socket endpoint
func WebsocketURL(baseURL string) string {
	return "ws" + strings.TrimPrefix(strings.TrimSuffix(baseURL, "/"), "http") + "/socket"
}
