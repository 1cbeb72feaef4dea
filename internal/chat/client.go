// Package chat is a client for the per-market chat rooms of the platform.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrGiveUp is returned by Run once the reconnect budget is spent.
	ErrGiveUp = errors.New("chat: max reconnect attempts reached")
	// ErrNoToken is returned by Run when the client has no access token.
	ErrNoToken = errors.New("chat: no access token")
	// ErrNotConnected is returned by Send while no connection is open.
	ErrNotConnected = errors.New("chat: not connected")
)

// HistoryEntry is one stored message delivered on join.
type HistoryEntry struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Message is a frame received from the chat room.
type Message struct {
	Type      string         `json:"type"`
	Message   string         `json:"message,omitempty"`
	Username  string         `json:"username,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Messages  []HistoryEntry `json:"messages,omitempty"`
}

type outgoing struct {
	Message string `json:"message"`
}

// Budget bounds reconnection. The n-th consecutive reconnect waits n*Step.
type Budget struct {
	MaxAttempts int
	Step        time.Duration
}

// DefaultBudget allows three reconnects, two seconds apart and growing.
func DefaultBudget() Budget {
	return Budget{MaxAttempts: 3, Step: 2 * time.Second}
}

// Delay returns the wait before reconnect attempt n, counting from 1.
func (b Budget) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * b.Step
}

// State is the connection state of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateBackoff
	StateGaveUp
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateGaveUp:
		return "gave_up"
	case StateClosed:
		return "closed"
	}
	return "idle"
}

// Client joins a single market's chat room.
type Client struct {
	baseURL string
	market  string
	token   string
	budget  Budget
	dialer  *websocket.Dialer
	logger  *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int
	closed   bool
}

// NewClient creates a chat client for market. baseURL is the WebSocket root
// of the platform, e.g. ws://localhost:8000.
func NewClient(baseURL, token, market string, budget Budget, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		market:  market,
		token:   token,
		budget:  budget,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		logger: logger.Named("chat").With(zap.String("market", market)),
	}
}

// URL returns the room address including the access token.
func (c *Client) URL() string {
	return fmt.Sprintf("%s/ws/chat/%s/?token=%s", c.baseURL, url.PathEscape(c.market), url.QueryEscape(c.token))
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and calls handle for every received message. A dropped
// connection is re-established within the budget; the attempt counter resets
// on every successful connect. Run returns ctx.Err() when ctx is done, nil
// after Close, or an error wrapping ErrGiveUp.
func (c *Client) Run(ctx context.Context, handle func(Message)) error {
	if c.token == "" {
		return ErrNoToken
	}

	for {
		err := c.session(ctx, handle)
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return ctx.Err()
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil
		}
		if c.attempts >= c.budget.MaxAttempts {
			c.state = StateGaveUp
			c.mu.Unlock()
			c.logger.Error("Max reconnect attempts reached", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrGiveUp, err)
		}
		c.attempts++
		attempt := c.attempts
		c.state = StateBackoff
		c.mu.Unlock()

		delay := c.budget.Delay(attempt)
		c.logger.Warn("Chat connection lost, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.budget.MaxAttempts),
			zap.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setState(StateClosed)
			return ctx.Err()
		}
	}
}

// session holds one connection until it drops.
func (c *Client) session(ctx context.Context, handle func(Message)) error {
	c.setState(StateConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.URL(), nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.attempts = 0
	c.state = StateConnected
	c.mu.Unlock()
	c.logger.Info("Chat connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Failed to parse chat message", zap.ByteString("data", data), zap.Error(err))
			continue
		}
		handle(msg)
	}
}

// Send posts text to the room.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(outgoing{Message: text}); err != nil {
		return fmt.Errorf("ws write failed: %w", err)
	}
	return nil
}

// Close leaves the room. A running Run returns nil.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.attempts = 0
	c.state = StateClosed
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
