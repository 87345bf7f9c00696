package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
)

type socketServer struct {
	*httptest.Server

	mu      sync.Mutex
	users   []string
	conns   chan *websocket.Conn
	onOpen  []string
	frames  chan string
	accepts int
}

func newSocketServer(t *testing.T, onOpen ...string) *socketServer {
	s := &socketServer{
		conns:  make(chan *websocket.Conn, 8),
		frames: make(chan string, 32),
		onOpen: onOpen,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.users = append(s.users, r.Header.Get(api.IdentityHeader))
		s.accepts++
		s.mu.Unlock()

		ctx := r.Context()
		for _, frame := range s.onOpen {
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		s.conns <- conn
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			s.frames <- string(data)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *socketServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func record(bus *Bus) *recorder {
	r := &recorder{ch: make(chan Event, 64)}
	bus.Subscribe(AllEvents, func(e Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
		r.ch <- e
	})
	return r
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func startChannel(t *testing.T, url string, bus *Bus) (*Channel, context.CancelFunc, chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	channel := NewChannel(ChannelOptions{
		URL:             url,
		Identity:        chat.NewIdentity("user"),
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
	}, bus)
	done := make(chan error, 1)
	go func() { done <- channel.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return channel, cancel, done
}

func TestChannelPublishesServerEvents(t *testing.T) {
	server := newSocketServer(t,
		`{"event":"initialData","data":[{"id":"c1","memberIds":["a","user"]}]}`,
		`garbage`,
		`{"event":"typing","data":{}}`,
		`{"event":"newMessage","data":{"id":"m1","type":"SYSTEM","chatId":"c1","content":"hi"}}`,
	)
	bus := NewBus()
	defer bus.Close()
	rec := record(bus)

	startChannel(t, server.wsURL(), bus)

	first := rec.next(t)
	assert.Equal(t, EventConnected, first.Type)
	assert.False(t, first.Payload.(Connected).Reconnect)

	snapshot := rec.next(t)
	assert.Equal(t, EventInitialData, snapshot.Type)
	assert.Len(t, snapshot.Payload.(InitialData).Chats, 1)

	msg := rec.next(t)
	assert.Equal(t, EventNewMessage, msg.Type)
	assert.Equal(t, "m1", msg.Payload.(NewMessage).Message.ID)

	server.mu.Lock()
	assert.Equal(t, []string{"user"}, server.users)
	server.mu.Unlock()
}

func TestChannelSendsCommands(t *testing.T) {
	server := newSocketServer(t)
	bus := NewBus()
	defer bus.Close()
	rec := record(bus)

	channel, _, _ := startChannel(t, server.wsURL(), bus)
	require.Equal(t, EventConnected, rec.next(t).Type)

	ctx := context.Background()
	require.NoError(t, channel.RequestHistory(ctx, "c1"))
	require.NoError(t, channel.SendMessage(ctx, SendMessage{ChatID: "c1", Content: chat.TextContent("hello"), ClientID: "x1"}))

	assert.JSONEq(t, `{"event":"chatHistory","data":"c1"}`, <-server.frames)
	assert.JSONEq(t, `{"event":"sendMessage","data":{"chatId":"c1","content":{"text":"hello"},"clientId":"x1"}}`, <-server.frames)
}

func TestChannelCommandsFailWhileDisconnected(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	channel := NewChannel(ChannelOptions{URL: "ws://127.0.0.1:1/socket"}, bus)

	assert.False(t, channel.Connected())
	assert.ErrorIs(t, channel.RequestHistory(context.Background(), "c1"), ErrNotConnected)
	assert.ErrorIs(t, channel.SendMessage(context.Background(), SendMessage{ChatID: "c1"}), ErrNotConnected)
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	server := newSocketServer(t, `{"event":"initialData","data":[]}`)
	bus := NewBus()
	defer bus.Close()
	rec := record(bus)

	startChannel(t, server.wsURL(), bus)

	require.Equal(t, EventConnected, rec.next(t).Type)
	require.Equal(t, EventInitialData, rec.next(t).Type)

	conn := <-server.conns
	conn.Close(websocket.StatusGoingAway, "restart")

	down := rec.next(t)
	require.Equal(t, EventDisconnected, down.Type)
	assert.Error(t, down.Payload.(Disconnected).Err)

	up := rec.next(t)
	require.Equal(t, EventConnected, up.Type)
	assert.True(t, up.Payload.(Connected).Reconnect)
	assert.Equal(t, EventInitialData, rec.next(t).Type)
}

func TestChannelRunStopsOnCancel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	channel := NewChannel(ChannelOptions{
		URL:             "ws://127.0.0.1:1/socket",
		InitialInterval: 5 * time.Millisecond,
	}, bus)

	done := make(chan error, 1)
	go func() { done <- channel.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestChannelGivesUpAfterMaxElapsed(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	channel := NewChannel(ChannelOptions{
		URL:             "ws://127.0.0.1:1/socket",
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxElapsedTime:  50 * time.Millisecond,
	}, bus)

	err := channel.Run(context.Background())
	assert.ErrorContains(t, err, "giving up")
}
