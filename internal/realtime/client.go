// Package realtime provides the persistent WebSocket channels the client keeps
// open for the lifetime of an authenticated session.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"socialsync/internal/logger"
)

const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 25 * time.Second
)

// ErrNotConnected is returned by Emit when the channel has no live connection.
var ErrNotConnected = errors.New("realtime: not connected")

var (
	errClosed  = errors.New("realtime: channel closed")
	errDialing = errors.New("realtime: dial already in progress")
)

// Frame is the wire format in both directions: {"event": "...", "data": {...}}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw payload of an inbound event.
type Handler func(data json.RawMessage)

// Options configures a Client.
type Options struct {
	// Name identifies the channel in logs ("messages", "notifications").
	Name string
	URL  string

	// Token returns the current access token. It is read on every dial so
	// reconnects pick up refreshed tokens.
	Token func() string

	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Client is one long-lived event channel. Inbound frames are dispatched
// serially on the read goroutine, at most once each.
type Client struct {
	opts   Options
	dialer websocket.Dialer

	mu        sync.RWMutex
	conn      *websocket.Conn
	dialing   bool
	handlers  map[string][]Handler
	onConnect []func()
	life      context.Context
	stop      context.CancelFunc

	writeMu sync.Mutex
}

// New creates a channel client. Nothing is dialed until Connect.
func New(opts Options) *Client {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = DefaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Name == "" {
		opts.Name = "socket"
	}
	return &Client{
		opts: opts,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for an inbound event. Handlers survive reconnects.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// OnConnect registers a hook run after every successful (re)connect, e.g. to
// re-join rooms.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

// Connected reports whether there is a live connection.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Connect dials the channel if it is not already connected. Safe to call
// repeatedly; the same connection is reused. While another dial is in flight
// it returns an error instead of dialing twice.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.life == nil || c.life.Err() != nil {
		c.life, c.stop = context.WithCancel(context.Background())
	}
	life := c.life
	c.mu.Unlock()

	return c.connect(ctx, life)
}

// connect dials within the given lifetime. The dial runs without holding
// the lock; only one dial is in flight at a time. A connection that completes
// after its lifetime ended (Close, or a newer Connect) is discarded, so a
// reconnect racing with Close cannot revive the channel.
func (c *Client) connect(ctx, life context.Context) error {
	c.mu.Lock()
	if c.life != life || life.Err() != nil {
		c.mu.Unlock()
		return errClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if c.dialing {
		c.mu.Unlock()
		return errDialing
	}
	c.dialing = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		c.mu.Unlock()
		logger.Warnf("[Realtime:%s] Connect FAILED: err=%v", c.opts.Name, err)
		return err
	}
	if c.life != life || life.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return errClosed
	}
	c.conn = conn
	hooks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	done := make(chan struct{})
	go c.readLoop(life, conn, done)
	go c.heartbeat(conn, done)

	logger.Infof("[Realtime:%s] Connected: url=%s", c.opts.Name, c.opts.URL)

	for _, hook := range hooks {
		hook()
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}

	header := http.Header{}
	if c.opts.Token != nil {
		if token := c.opts.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// Emit sends an event. It never dials; callers treat failures as best-effort.
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	logger.Debugf("[Realtime:%s] Emit OK: event=%s", c.opts.Name, event)
	return nil
}

// Close disconnects and stops any reconnection. Only called on logout.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.stop != nil {
		c.stop()
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	logger.Infof("[Realtime:%s] Disconnected", c.opts.Name)
	return conn.Close()
}

func (c *Client) readLoop(life context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()

			if life.Err() != nil {
				return
			}
			logger.Warnf("[Realtime:%s] Connection lost: err=%v", c.opts.Name, err)
			go c.reconnect(life)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			logger.Warnf("[Realtime:%s] Dropping malformed frame: err=%v", c.opts.Name, err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[frame.Event]...)
	c.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Debugf("[Realtime:%s] No handler for event=%s", c.opts.Name, frame.Event)
		return
	}

	for _, h := range handlers {
		c.safeCall(frame.Event, h, frame.Data)
	}
}

func (c *Client) safeCall(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Realtime:%s] Handler panic: event=%s panic=%v", c.opts.Name, event, r)
		}
	}()
	h(data)
}

// reconnect retries with a fixed delay, a bounded number of times. After the
// last attempt fails the channel stays down until the next explicit Connect.
func (c *Client) reconnect(life context.Context) {
	attempt := 0
	op := func() error {
		if life.Err() != nil {
			return backoff.Permanent(life.Err())
		}
		attempt++
		ctx, cancel := context.WithTimeout(life, handshakeTimeout)
		defer cancel()

		err := c.connect(ctx, life)
		if errors.Is(err, errClosed) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Warnf("[Realtime:%s] Reconnect attempt %d/%d FAILED: err=%v",
				c.opts.Name, attempt, c.opts.ReconnectAttempts, err)
		}
		return err
	}

	select {
	case <-life.Done():
		return
	case <-time.After(c.opts.ReconnectDelay):
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.ReconnectDelay), uint64(c.opts.ReconnectAttempts-1)),
		life,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if life.Err() == nil {
			logger.Errorf("[Realtime:%s] Giving up after %d reconnect attempts: err=%v", c.opts.Name, attempt, err)
		}
		return
	}
	logger.Infof("[Realtime:%s] Reconnected after %d attempt(s)", c.opts.Name, attempt)
}

func (c *Client) heartbeat(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				logger.Debugf("[Realtime:%s] Ping FAILED: err=%v", c.opts.Name, err)
			}
		}
	}
}
