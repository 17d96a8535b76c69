// Package client implements the reconnecting chat client: a connection
// resilience loop with doubling backoff and a buffered event queue for the
// presentation layer.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/gxvn1/GxvnsChatApp/internal/protocol"
)

const eventBufferSize = 256

// ErrNotConnected means a send was attempted while the client is not
// streaming. Sends are never queued across reconnects.
var ErrNotConnected = errors.New("not connected")

// ErrAuthRejected means the server refused the credentials. Run stops
// instead of retrying: a retry with the same credentials cannot succeed.
var ErrAuthRejected = errors.New("authentication rejected")

// Event is one item for the presentation layer: a state change, an inbound
// envelope, or both (the login response carries the friends list).
type Event struct {
	State    State
	Envelope *protocol.Envelope
	Err      error
	// RetryIn is set on disconnect events: the delay before the next attempt.
	RetryIn time.Duration
}

// Client maintains one authenticated connection to the chat server,
// reconnecting with backoff until its context is cancelled.
type Client struct {
	url      string
	username string
	password string
	dialer   *websocket.Dialer
	clock    clockwork.Clock

	mu    sync.RWMutex
	state State
	conn  *websocket.Conn

	// writeMu serializes data frames; control frames are safe concurrently.
	writeMu sync.Mutex

	events chan Event
}

func New(url, username, password string, clock clockwork.Clock) *Client {
	return &Client{
		url:      url,
		username: username,
		password: password,
		dialer:   websocket.DefaultDialer,
		clock:    clock,
		events:   make(chan Event, eventBufferSize),
	}
}

// Events returns the queue the presentation layer drains. When the queue is
// full, new events are dropped rather than stalling the read pump.
func (c *Client) Events() <-chan Event { return c.events }

// State returns the current lifecycle position.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run dials, authenticates, and pumps inbound frames, reconnecting after
// transport failures until ctx is cancelled. Only a rejected login is
// terminal.
func (c *Client) Run(ctx context.Context) error {
	backoff := NewBackoff()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.setState(StateConnecting)
		err := c.session(ctx, &backoff)
		c.setState(StateDisconnected)

		if errors.Is(err, ErrAuthRejected) {
			c.emit(Event{State: StateDisconnected, Err: err})
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := backoff.Next()
		slog.Warn("Connection lost, reconnecting", "error", err, "retry_in", delay)
		c.emit(Event{State: StateDisconnected, Err: err, RetryIn: delay})

		timer := c.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// session runs one connection from dial to transport failure.
func (c *Client) session(ctx context.Context, backoff *Backoff) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	// ReadMessage does not observe ctx; cancellation closes the connection.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	login := &protocol.Envelope{Type: protocol.TypeLogin, Username: c.username, Password: c.password}
	if err := c.write(conn, login); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		env, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("Dropping malformed server frame", "error", err)
			continue
		}

		if env.Type == protocol.TypeLoginResponse && c.State() == StateConnecting {
			if env.Success == nil || !*env.Success {
				return fmt.Errorf("%w: %s", ErrAuthRejected, env.Message)
			}
			backoff.Reset()
			c.setState(StateAuthenticated)
			c.emit(Event{State: StateAuthenticated, Envelope: env})
			c.setState(StateStreaming)
			c.emit(Event{State: StateStreaming})
			continue
		}

		c.emit(Event{Envelope: env})
	}
}

// Send writes one envelope, failing fast when the client is not streaming.
func (c *Client) Send(env *protocol.Envelope) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	if state != StateStreaming || conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, env)
}

func (c *Client) write(conn *websocket.Conn, env *protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("Event queue full, dropping event")
	}
}
