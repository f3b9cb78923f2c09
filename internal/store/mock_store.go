// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// errMockFailure simulates a persistence failure when injection is enabled
var errMockFailure = errors.New("mock store failure")

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	pairIndex     map[string]string        // keyed by "lo|hi" -> conversation ID
	messages      map[string]*Message      // keyed by message ID

	// Failure injection for dual-write tests
	FailSaveMessage       bool
	FailUpdateLastMessage bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		pairIndex:     make(map[string]string),
		messages:      make(map[string]*Message),
	}
}

func pairKey(a, b string) string {
	lo, hi := ParticipantPair(a, b)
	return lo + "|" + hi
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(conv.ParticipantA, conv.ParticipantB)
	if _, exists := m.pairIndex[key]; exists {
		return ErrDuplicateConversation
	}

	c := *conv
	m.conversations[c.ID] = &c
	m.pairIndex[key] = c.ID
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// GetConversationByParticipants retrieves a conversation for an unordered pair.
func (m *MockStore) GetConversationByParticipants(ctx context.Context, userA, userB string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.pairIndex[pairKey(userA, userB)]
	if !ok {
		return nil, ErrNotFound
	}
	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// ListConversations returns a user's conversations, most recently updated first.
func (m *MockStore) ListConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var convs []*Conversation
	for _, c := range m.conversations {
		if c.HasParticipant(userID) {
			result := *c
			convs = append(convs, &result)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// UpdateLastMessage replaces the projection unless a newer one is stored.
func (m *MockStore) UpdateLastMessage(ctx context.Context, conversationID string, lm LastMessage) error {
	if m.FailUpdateLastMessage {
		return errMockFailure
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if c.LastMessage.MessageID != "" && c.LastMessage.SentAt.After(lm.SentAt) {
		return nil // stale update, keep the newer projection
	}
	c.LastMessage = lm
	c.UpdatedAt = time.Now()
	return nil
}

// SetLastMessageSeen flips the projection seen flag if messageID is still current.
func (m *MockStore) SetLastMessageSeen(ctx context.Context, conversationID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if c.LastMessage.MessageID == messageID {
		c.LastMessage.Seen = true
	}
	return nil
}

// SaveMessage stores a message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	if m.FailSaveMessage {
		return errMockFailure
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mm := *msg
	m.messages[mm.ID] = &mm
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MockStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *msg
	return &result, nil
}

// ListMessages returns a conversation's messages ordered by (created_at, id).
func (m *MockStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var messages []*Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			result := *msg
			messages = append(messages, &result)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// MarkMessageSeen flips a message's seen flag.
func (m *MockStore) MarkMessageSeen(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Seen = true
	return nil
}

// MarkConversationSeen flips all unseen messages addressed to viewerID.
func (m *MockStore) MarkConversationSeen(ctx context.Context, conversationID, viewerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flipped []*Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.RecipientID == viewerID && !msg.Seen {
			msg.Seen = true
			flipped = append(flipped, msg)
		}
	}
	sort.Slice(flipped, func(i, j int) bool {
		if flipped[i].CreatedAt.Equal(flipped[j].CreatedAt) {
			return flipped[i].ID < flipped[j].ID
		}
		return flipped[i].CreatedAt.Before(flipped[j].CreatedAt)
	})

	ids := make([]string, 0, len(flipped))
	for _, msg := range flipped {
		ids = append(ids, msg.ID)
	}

	if len(ids) > 0 {
		if c, ok := m.conversations[conversationID]; ok && c.LastMessage.SenderID != viewerID {
			c.LastMessage.Seen = true
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// MessageCount returns the number of stored messages. Test helper.
func (m *MockStore) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// ConversationCount returns the number of stored conversations. Test helper.
func (m *MockStore) ConversationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
