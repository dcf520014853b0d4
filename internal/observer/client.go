// Package observer is the client side of the event stream: it keeps a
// websocket subscription to the automation server alive, dispatching events
// to registered handlers and reconnecting with exponential backoff when the
// connection drops.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/domain"
)

const (
	reconnectBaseDelay   = 1 * time.Second
	reconnectMaxDelay    = 30 * time.Second
	maxReconnectAttempts = 5
)

// ErrMaxReconnects is returned by Run after five consecutive failed
// connection attempts.
var ErrMaxReconnects = errors.New("giving up after repeated reconnect failures")

// Conn is the subset of a websocket connection the client reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens observer connections. Production uses gorilla's dialer; tests
// substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// GorillaDialer dials real websocket connections.
type GorillaDialer struct {
	dialer *websocket.Dialer
}

// NewGorillaDialer returns a dialer with gorilla's defaults.
func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{dialer: websocket.DefaultDialer}
}

// Dial opens a websocket connection to the given URL.
func (d *GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Handler consumes one event's payload.
type Handler func(data json.RawMessage)

// Client maintains a resilient subscription to the event stream. Register
// handlers with On before calling Run; Run blocks until the context is
// cancelled, Close is called, or reconnection is abandoned.
type Client struct {
	url      string
	dialer   Dialer
	clock    clockwork.Clock
	handlers map[domain.EventType]Handler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewClient creates an observer client for the given stream URL.
func NewClient(url string, dialer Dialer, clock clockwork.Clock) *Client {
	return &Client{
		url:      url,
		dialer:   dialer,
		clock:    clock,
		handlers: make(map[domain.EventType]Handler),
	}
}

// On registers the handler for an event type. Not safe to call once Run has
// started.
func (c *Client) On(eventType domain.EventType, handler Handler) {
	c.handlers[eventType] = handler
}

// Close cancels a running Run loop, including any pending backoff wait.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run connects and dispatches events until the context ends. Each successful
// connection resets the failure count; each failure waits
// min(1s·2^attempt, 30s) before retrying, and the fifth consecutive failure
// returns ErrMaxReconnects without scheduling another attempt.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := c.dialer.Dial(ctx, c.url)
		if err == nil {
			attempts = 0
			slog.Info("Observer connected", "url", c.url)
			err = c.readLoop(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Observer connection lost", "url", c.url, "error", err)
		} else {
			slog.Warn("Observer dial failed", "url", c.url, "error", err)
		}

		if attempts >= maxReconnectAttempts {
			slog.Error("Observer giving up", "url", c.url, "attempts", attempts)
			return ErrMaxReconnects
		}

		delay := backoffDelay(attempts)
		attempts++
		slog.Info("Observer reconnecting", "delay", delay, "attempt", attempts)

		if !c.wait(ctx, delay) {
			return nil
		}
	}
}

// wait sleeps for d on the injected clock, returning false when the context
// ends first. The timer is always stopped; no scheduled work leaks.
func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event struct {
			Type domain.EventType `json:"type"`
			Data json.RawMessage  `json:"data"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Error("Observer received malformed event", "error", err)
			continue
		}

		handler, ok := c.handlers[event.Type]
		if !ok {
			slog.Debug("No handler for event type", "type", event.Type)
			continue
		}
		handler(event.Data)
	}
}

func backoffDelay(attempt int) time.Duration {
	delay := reconnectBaseDelay << attempt
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	return delay
}
