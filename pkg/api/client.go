package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/killallgit/huddle/pkg/chat"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/metrics"
)

// IdentityHeader carries the local user id on every request and on the
// push channel handshake.
const IdentityHeader = "X-Huddle-User"

const maxErrorBody = 4096

type Client struct {
	baseURL    string
	identity   chat.Identity
	httpClient *http.Client
	log        *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The caller's client should
// carry a cookie jar if the server uses session cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(baseURL string, identity chat.Identity, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		identity: identity,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		log: logger.WithComponent("api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client so the push channel can share
// its cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) Identity() chat.Identity {
	return c.identity
}

func (c *Client) ListMembers(ctx context.Context) ([]chat.Member, error) {
	var members []chat.Member
	if err := c.do(ctx, "listMembers", http.MethodGet, "/chat/members", nil, &members); err != nil {
		return nil, err
	}
	if members == nil {
		members = []chat.Member{}
	}
	return members, nil
}

func (c *Client) CreateChat(ctx context.Context, req CreateChatRequest) (chat.Chat, error) {
	if len(req.MemberIDs) == 0 {
		return chat.Chat{}, fmt.Errorf("createChat requires at least one member")
	}
	var created chat.Chat
	if err := c.do(ctx, "createChat", http.MethodPost, "/chat/create", req, &created); err != nil {
		return chat.Chat{}, err
	}
	return created, nil
}

func (c *Client) UpdateMember(ctx context.Context, req UpdateMemberRequest) (chat.Member, error) {
	if req.MemberID == "" {
		return chat.Member{}, fmt.Errorf("updateMember requires a member id")
	}
	var updated chat.Member
	if err := c.do(ctx, "updateMember", http.MethodPost, "/chat/update-member", req, &updated); err != nil {
		return chat.Member{}, err
	}
	return updated, nil
}

func (c *Client) UpdateChat(ctx context.Context, req UpdateChatRequest) (chat.Chat, error) {
	if req.ChatID == "" {
		return chat.Chat{}, fmt.Errorf("updateChat requires a chat id")
	}
	var updated chat.Chat
	if err := c.do(ctx, "updateChat", http.MethodPost, "/chat/update-chat", req, &updated); err != nil {
		return chat.Chat{}, err
	}
	return updated, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.APIRequestsTotal.WithLabelValues(op, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			c.log.Warn("Request failed", "operation", op, "error", err)
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity.UserID != "" {
		req.Header.Set(IdentityHeader, c.identity.UserID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(op, resp)
	}

	c.log.Debug("Request completed", "operation", op, "status", resp.StatusCode, "duration", time.Since(start))
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func newStatusError(op string, resp *http.Response) *StatusError {
	statusErr := &StatusError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if statusErr.Status == "" {
		statusErr.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var errResp errorResponse
	if json.Unmarshal(data, &errResp) == nil {
		if errResp.Error != "" {
			statusErr.Message = errResp.Error
		} else {
			statusErr.Message = errResp.Message
		}
	}
	return statusErr
}
