// ABOUTME: Store interface and data types for pixelpals-chat persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a conversation for the same
// participant pair already exists
var ErrDuplicateConversation = errors.New("conversation already exists")

// Conversation is the durable record of an exchange between exactly two
// participants. Participants are stored lexically ordered so the unordered
// pair maps to a single row.
type Conversation struct {
	ID           string
	ParticipantA string // lexically smaller participant ID
	ParticipantB string // lexically larger participant ID
	LastMessage  LastMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasParticipant reports whether userID is one of the two participants.
// It never resolves accounts, so a withdrawn participant still matches.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.ParticipantA || userID == c.ParticipantB
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if userID == c.ParticipantA {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// ParticipantPair normalizes an unordered user pair to (lo, hi) order.
func ParticipantPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// LastMessage is the denormalized projection of a conversation's most recent
// message, kept for list rendering without a join. It is a cache: the message
// table stays authoritative and the projection is recomputable from it.
type LastMessage struct {
	MessageID string
	Text      string
	IsImage   bool
	SenderID  string
	Seen      bool
	SentAt    time.Time
}

// Message is a unit of communication belonging to one conversation.
// Immutable after creation except for the Seen flag, which only ever
// transitions false -> true.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Text           *string // nil if image-only
	ImageRef       *string // nil if text-only
	Seen           bool
	CreatedAt      time.Time
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByParticipants(ctx context.Context, userA, userB string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)

	// UpdateLastMessage replaces the projection only if lm.SentAt is not older
	// than the currently stored one, so concurrent sends converge on the
	// latest message regardless of write arrival order.
	UpdateLastMessage(ctx context.Context, conversationID string, lm LastMessage) error

	// SetLastMessageSeen flips the projection's seen flag, but only while
	// messageID is still the most recent message of the conversation.
	SetLastMessageSeen(ctx context.Context, conversationID, messageID string) error

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	MarkMessageSeen(ctx context.Context, id string) error
	MarkConversationSeen(ctx context.Context, conversationID, viewerID string) ([]string, error)

	// Close releases any resources held by the store
	Close() error
}
