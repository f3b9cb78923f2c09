// ABOUTME: Represents a single live client connection and its outbound event queue
// ABOUTME: Sends are non-blocking; events are dropped when a client falls behind

package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// sendBufferSize is the outbound channel buffer for each connection.
	sendBufferSize = 64
)

// Event is the unit pushed to connected clients over the event channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Server-to-client event types.
const (
	EventPresenceUpdate = "presence-update"
	EventNewMessage     = "new-message"
	EventTypingUpdate   = "typing-update"
	EventSeenUpdate     = "seen-update"
)

// Connection is one live client connection bound to a user identity.
// A user with multiple tabs or devices holds multiple Connections.
type Connection struct {
	ID     string
	UserID string

	mu     sync.Mutex
	events chan Event
	closed bool
	logger *slog.Logger
}

// NewConnection creates a connection handle for the given user identity.
// Pass nil logger for default.
func NewConnection(userID string, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		events: make(chan Event, sendBufferSize),
		logger: logger.With("component", "connection"),
	}
}

// Send queues an event for delivery. Non-blocking: returns false if the
// connection is closed or its buffer is full. The event is dropped in that
// case; live push is best-effort and the durable write guarantees visibility.
func (c *Connection) Send(evt Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.events <- evt:
		return true
	default:
		c.logger.Debug("dropped event for slow connection",
			"conn_id", c.ID,
			"user_id", c.UserID,
			"event_type", evt.Type)
		return false
	}
}

// Events returns the channel the write loop drains. The channel is closed
// when the connection is closed.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Close marks the connection closed and closes its event channel. Idempotent.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
