// ABOUTME: Transient per-conversation set of currently typing users
// ABOUTME: Entries expire after a bounded interval so a vanished client cannot leave a stale indicator

package typing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
)

// DefaultTTL bounds how long a typing entry stays valid without a refresh.
const DefaultTTL = 10 * time.Second

// Update is the payload of a typing-update event.
type Update struct {
	ConversationID string   `json:"conversationId"`
	TypingUserIDs  []string `json:"typingUserIds"`
}

// Coordinator tracks who is typing in which conversation. State is purely
// in-memory; a user typing in two conversations holds two independent
// entries. Entries age out either on an explicit stop signal or when their
// validity interval elapses.
type Coordinator struct {
	mu       sync.Mutex
	typing   map[string]map[string]time.Time // conversationID -> userID -> deadline
	ttl      time.Duration
	registry *registry.Registry
	logger   *slog.Logger
	now      func() time.Time // override in tests
}

// NewCoordinator creates a Coordinator broadcasting through reg.
// A ttl <= 0 falls back to DefaultTTL. Pass nil logger for default.
func NewCoordinator(reg *registry.Registry, ttl time.Duration, logger *slog.Logger) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		typing:   make(map[string]map[string]time.Time),
		ttl:      ttl,
		registry: reg,
		logger:   logger.With("component", "typing"),
		now:      time.Now,
	}
}

// Start adds userID to the conversation's typing set and broadcasts the
// updated set to all clients except the originating connection. Calling
// Start again refreshes the entry's deadline.
func (c *Coordinator) Start(conversationID, userID, originConnID string) {
	c.mu.Lock()
	if _, ok := c.typing[conversationID]; !ok {
		c.typing[conversationID] = make(map[string]time.Time)
	}
	c.typing[conversationID][userID] = c.now().Add(c.ttl)
	users := c.usersLocked(conversationID)
	c.mu.Unlock()

	c.broadcast(conversationID, users, originConnID)
}

// Stop removes userID from the conversation's typing set. The broadcast
// fires even when removal empties the set: recipients need the explicit
// "no one is typing" signal, not silence.
func (c *Coordinator) Stop(conversationID, userID, originConnID string) {
	c.mu.Lock()
	users, changed := c.removeLocked(conversationID, userID)
	c.mu.Unlock()

	if !changed {
		return
	}
	c.broadcast(conversationID, users, originConnID)
}

// TypingUsers returns the sorted set of users currently typing in a
// conversation, ignoring expired entries.
func (c *Coordinator) TypingUsers(conversationID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usersLocked(conversationID)
}

// Run owns the expiry sweep until ctx is cancelled. Conversations whose set
// shrinks from a sweep are re-broadcast with the reduced set.
func (c *Coordinator) Run(ctx context.Context) {
	interval := c.ttl / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep purges entries whose deadline has elapsed and re-broadcasts every
// conversation that changed.
func (c *Coordinator) sweep() {
	now := c.now()

	c.mu.Lock()
	changed := make(map[string][]string)
	for convID, users := range c.typing {
		expired := false
		for userID, deadline := range users {
			if deadline.Before(now) {
				delete(users, userID)
				expired = true
			}
		}
		if expired {
			changed[convID] = c.usersLocked(convID)
			if len(users) == 0 {
				delete(c.typing, convID)
			}
		}
	}
	c.mu.Unlock()

	for convID, users := range changed {
		c.logger.Debug("expired stale typing entries", "conversation_id", convID)
		c.broadcast(convID, users, "")
	}
}

// usersLocked returns the sorted unexpired typing users. Caller holds c.mu.
func (c *Coordinator) usersLocked(conversationID string) []string {
	now := c.now()
	users := make([]string, 0, len(c.typing[conversationID]))
	for userID, deadline := range c.typing[conversationID] {
		if !deadline.Before(now) {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users
}

// removeLocked deletes an entry and reports whether anything changed.
// Caller holds c.mu.
func (c *Coordinator) removeLocked(conversationID, userID string) ([]string, bool) {
	users, ok := c.typing[conversationID]
	if !ok {
		return nil, false
	}
	if _, ok := users[userID]; !ok {
		return nil, false
	}
	delete(users, userID)
	remaining := c.usersLocked(conversationID)
	if len(users) == 0 {
		delete(c.typing, conversationID)
	}
	return remaining, true
}

func (c *Coordinator) broadcast(conversationID string, users []string, excludeConnID string) {
	if users == nil {
		users = []string{}
	}
	c.registry.Broadcast(registry.Event{
		Type: registry.EventTypingUpdate,
		Payload: Update{
			ConversationID: conversationID,
			TypingUserIDs:  users,
		},
	}, excludeConnID)
}
