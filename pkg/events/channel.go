package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"nhooyr.io/websocket"

	"github.com/killallgit/huddle/pkg/api"
	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/metrics"
)

// ErrNotConnected is returned by commands issued while the channel is down
var ErrNotConnected = errors.New("event channel not connected")

const (
	defaultReadLimit = 8 << 20
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
)

// ChannelOptions configures a Channel
type ChannelOptions struct {
	URL      string
	Identity chat.Identity
	// HTTPClient is used for the handshake; share the API client's so the
	// session cookie jar applies to both.
	HTTPClient *http.Client

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxElapsedTime of zero keeps reconnecting until the context ends
	MaxElapsedTime time.Duration

	ReadLimit int64
}

// Channel is the push connection. Run owns the connection lifecycle and
// publishes every decoded server event to the bus.
type Channel struct {
	opts ChannelOptions
	bus  *Bus
	log  *logger.Logger

	mu   sync.RWMutex
	conn *websocket.Conn
}

// NewChannel returns a channel that publishes decoded server events on bus.
// Nothing connects until Run is called.
func NewChannel(opts ChannelOptions, bus *Bus) *Channel {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 2
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	return &Channel{
		opts: opts,
		bus:  bus,
		log:  logger.WithComponent("event_channel").With("url", opts.URL),
	}
}

func (c *Channel) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	b.Multiplier = c.opts.Multiplier
	b.MaxElapsedTime = c.opts.MaxElapsedTime
	b.Reset()
	return b
}

// Run connects and keeps the channel connected until ctx is cancelled.
// It returns nil on cancellation and an error only when the reconnect
// schedule gives up.
func (c *Channel) Run(ctx context.Context) error {
	b := c.newBackOff()
	everConnected := false

	for {
		conn, err := c.dial(ctx)
		if err == nil {
			b.Reset()
			if everConnected {
				metrics.ChannelReconnects.Inc()
			}
			c.setConn(conn)
			c.log.Info("Channel connected", "reconnect", everConnected)
			_ = c.bus.Publish(EventConnected, Connected{Reconnect: everConnected})
			everConnected = true

			err = c.readLoop(ctx, conn)

			c.setConn(nil)
			conn.Close(websocket.StatusNormalClosure, "")
			_ = c.bus.Publish(EventDisconnected, Disconnected{Err: err})
		}

		if ctx.Err() != nil {
			c.log.Info("Channel stopped")
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return nil
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("giving up on event channel: %w", err)
		}
		c.log.Warn("Channel down, reconnecting", "error", err, "retryIn", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Identity.UserID != "" {
		header.Set(api.IdentityHeader, c.opts.Identity.UserID)
	}

	// The handshake is bounded by the context; the client timeout must be zero.
	hc := &http.Client{
		Transport: c.opts.HTTPClient.Transport,
		Jar:       c.opts.HTTPClient.Jar,
	}

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.opts.URL, &websocket.DialOptions{
		HTTPClient: hc,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial event channel: %w", err)
	}
	conn.SetReadLimit(c.opts.ReadLimit)
	return conn, nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return fmt.Errorf("server closed channel: %w", err)
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		name, payload, err := Decode(frame)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				c.log.Debug("Ignoring unknown event", "event", name)
				continue
			}
			metrics.MalformedFrames.Inc()
			c.log.Warn("Dropping malformed frame", "event", name, "error", err)
			continue
		}

		metrics.EventsReceived.WithLabelValues(name).Inc()
		if err := c.bus.Publish(name, payload); err != nil {
			return err
		}
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Channel) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Connected reports whether a connection is currently established
func (c *Channel) Connected() bool {
	return c.current() != nil
}

// RequestHistory asks the server for a chat's full message log. The reply
// arrives later as a chatHistory event.
func (c *Channel) RequestHistory(ctx context.Context, chatID string) error {
	return c.send(ctx, CommandChatHistory, chatID)
}

// SendMessage submits a message. The server broadcasts it back as newMessage.
func (c *Channel) SendMessage(ctx context.Context, cmd SendMessage) error {
	return c.send(ctx, CommandSendMessage, cmd)
}

func (c *Channel) send(ctx context.Context, name string, data any) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := Encode(name, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}

	metrics.CommandsSent.WithLabelValues(name).Inc()
	c.log.Debug("Command sent", "command", name)
	return nil
}
