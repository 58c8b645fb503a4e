package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"meetexport/internal/logging"
	"meetexport/internal/meeting"
	"meetexport/internal/ratelimit"
	"meetexport/internal/services"
)

const (
	defaultListTimeout    = 30 * time.Second
	defaultContentTimeout = 120 * time.Second
	notifyTimeout         = 10 * time.Second
)

// TokenSource supplies bearer tokens, refreshing them as needed.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// AccessToken implements TokenSource.
func (s StaticToken) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", services.Wrap(services.ErrAuthRequired, "remote", "token", "no access token", nil)
	}
	return string(s), nil
}

// Client talks to the meeting service. Calls are serialized by the export
// pipeline; the session state is guarded only so that ResetSession may be
// invoked from another goroutine.
type Client struct {
	endpoint       string
	tokens         TokenSource
	caller         *ratelimit.Caller
	httpClient     *http.Client
	limiter        *rate.Limiter
	listTimeout    time.Duration
	contentTimeout time.Duration
	clientName     string
	clientVersion  string
	logger         *slog.Logger

	requestID   atomic.Int64
	mu          sync.Mutex
	initialized bool
	sessionID   string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMinInterval spaces consecutive HTTP requests at least d apart.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithTimeouts sets the per-request timeouts for lightweight calls and for
// transcript fetches.
func WithTimeouts(list, content time.Duration) Option {
	return func(c *Client) {
		if list > 0 {
			c.listTimeout = list
		}
		if content > 0 {
			c.contentTimeout = content
		}
	}
}

// WithClientInfo sets the name and version announced during initialize.
func WithClientInfo(name, version string) Option {
	return func(c *Client) {
		c.clientName = name
		c.clientVersion = version
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(logger, "remote") }
}

// NewClient constructs a client for the MCP endpoint. caller wraps every tool
// call; a nil caller makes each call once and reports rate-limit notices as
// exhausted.
func NewClient(endpoint string, tokens TokenSource, caller *ratelimit.Caller, opts ...Option) *Client {
	if caller == nil {
		caller = ratelimit.New(ratelimit.Settings{MaxRetries: 0, MaxResponseChars: 200})
	}
	c := &Client{
		endpoint:       strings.TrimSpace(endpoint),
		tokens:         tokens,
		caller:         caller,
		httpClient:     &http.Client{},
		limiter:        rate.NewLimiter(rate.Inf, 1),
		listTimeout:    defaultListTimeout,
		contentTimeout: defaultContentTimeout,
		clientName:     "meetexport",
		clientVersion:  "dev",
		logger:         logging.NewComponentLogger(nil, "remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResetSession discards the protocol session so the next call performs a
// fresh initialize handshake over new connections.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.initialized = false
	c.sessionID = ""
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
	c.logger.Debug("session reset")
}

// Ping performs the initialize handshake on a fresh session.
func (c *Client) Ping(ctx context.Context) error {
	c.ResetSession()
	return c.ensureInitialized(ctx)
}

// ListMeetings returns the meetings in the range, in service order.
func (c *Client) ListMeetings(ctx context.Context, r Range) ([]meeting.Item, error) {
	args := r.Arguments(time.Now())
	c.logger.Info("listing meetings", logging.Any("arguments", args))
	text, err := c.callTool(ctx, "list_meetings", args, c.listTimeout)
	if err != nil {
		return nil, err
	}
	items := ParseMeetings(text)
	c.logger.Info("meetings listed", logging.Int("count", len(items)))
	return items, nil
}

// FetchDetail returns participants, summary and notes for one meeting.
func (c *Client) FetchDetail(ctx context.Context, id string) (meeting.Item, error) {
	text, err := c.callTool(ctx, "get_meetings", map[string]any{"meeting_ids": []string{id}}, c.listTimeout)
	if err != nil {
		return meeting.Item{}, err
	}
	items := ParseMeetings(text)
	if len(items) == 0 {
		return meeting.Item{}, services.Wrap(services.ErrNotFound, "remote", "get_meetings",
			fmt.Sprintf("no data returned for meeting %s", id), nil)
	}
	return items[0], nil
}

// FetchContent returns the full transcript. An empty transcript is returned
// as an empty string without error.
func (c *Client) FetchContent(ctx context.Context, id string) (string, error) {
	text, err := c.callTool(ctx, "get_meeting_transcript", map[string]any{"meeting_id": id}, c.contentTimeout)
	if err != nil {
		return "", err
	}
	transcript := ParseTranscript(text)
	logging.WithContext(ctx, c.logger).Info("transcript fetched", logging.Int("bytes", len(transcript)))
	return transcript, nil
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (string, error) {
	return c.caller.Do(ctx, name, func(ctx context.Context) (string, error) {
		if err := c.ensureInitialized(ctx); err != nil {
			return "", err
		}
		raw, err := c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args}, timeout)
		if err != nil {
			return "", err
		}
		var result toolResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", services.Wrap(services.ErrTransient, "remote", name, "decode tool result", err)
		}
		text := result.text()
		if result.IsError {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "tool reported an error", "tool_error",
				logging.String("tool", name),
				logging.String("text", summarize(text)),
				logging.String(logging.FieldImpact, "reply is passed on for classification"),
			)
		}
		return text, nil
	})
}

func (c *Client) ensureInitialized(ctx context.Context) error {
	c.mu.Lock()
	ready := c.initialized
	c.mu.Unlock()
	if ready {
		return nil
	}

	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]string{"name": c.clientName, "version": c.clientVersion},
	}
	if _, err := c.call(ctx, "initialize", params, c.listTimeout); err != nil {
		return err
	}
	if err := c.notify(ctx, "notifications/initialized", notifyTimeout); err != nil {
		if errors.Is(err, services.ErrCancelled) {
			return err
		}
		logging.WarnWithContext(c.logger, "initialized notification failed", "mcp_notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "session continues"),
		)
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	c.logger.Info("session initialized")
	return nil
}

func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

func (c *Client) currentSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}
