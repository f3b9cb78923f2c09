// ABOUTME: Message Router - validates, persists, and routes direct messages
// ABOUTME: The durable write is authoritative; live push is best-effort and never fails a send

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/dedupe"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/media"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/store"
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetConversationByParticipants(ctx context.Context, userA, userB string) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID string, lm store.LastMessage) error
	SetLastMessageSeen(ctx context.Context, conversationID, messageID string) error

	SaveMessage(ctx context.Context, msg *store.Message) error
	GetMessage(ctx context.Context, id string) (*store.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
	MarkMessageSeen(ctx context.Context, id string) error
	MarkConversationSeen(ctx context.Context, conversationID, viewerID string) ([]string, error)
}

// LivePusher defines what the service needs from the connection registry
type LivePusher interface {
	Push(userID string, evt registry.Event) int
}

// Retry suppression window for client keys. A client that resends within
// the window gets ErrDuplicateSend instead of a second message.
const (
	retryWindow    = time.Minute
	retryCacheSize = 4096
)

// Service orchestrates message sends and seen-state updates between the
// durable store and live connections.
type Service struct {
	store   ConversationStore
	pusher  LivePusher
	media   media.Resolver
	retries *dedupe.Cache
	logger  *slog.Logger
}

// New creates a conversation Service. Pass nil logger for default.
func New(st ConversationStore, pusher LivePusher, resolver media.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		pusher:  pusher,
		media:   resolver,
		retries: dedupe.New(retryWindow, retryCacheSize),
		logger:  logger.With("component", "conversation"),
	}
}

// Close releases the service's background resources.
func (s *Service) Close() {
	s.retries.Close()
}

// SendRequest contains everything needed to send a direct message
type SendRequest struct {
	SenderID    string
	RecipientID string
	Text        string // optional if Image present
	Image       []byte // optional raw payload if Text present

	// ClientKey is an optional client-chosen key for retry suppression.
	// A resend with the same key within the retry window is rejected with
	// ErrDuplicateSend instead of creating a second message.
	ClientKey string
}

// MessageView is the wire shape of a message, shared by the HTTP API and the
// new-message push event.
type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	Text           string    `json:"text,omitempty"`
	ImageRef       string    `json:"img,omitempty"`
	Seen           bool      `json:"seen"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewMessageView converts a stored message to its wire shape.
func NewMessageView(msg *store.Message) MessageView {
	view := MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		Seen:           msg.Seen,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.Text != nil {
		view.Text = *msg.Text
	}
	if msg.ImageRef != nil {
		view.ImageRef = *msg.ImageRef
	}
	return view
}

// Send validates, persists, and routes a direct message.
//
// The function returns only after the message is durably persisted; pushing
// to the recipient's live connections is best-effort and never blocks or
// fails the returned result. An offline recipient observes the message on
// next fetch.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*store.Message, error) {
	if req.SenderID == "" || req.RecipientID == "" {
		return nil, fmt.Errorf("sender and recipient are required")
	}
	if req.SenderID == req.RecipientID {
		return nil, fmt.Errorf("cannot send a message to yourself")
	}
	if req.Text == "" && len(req.Image) == 0 {
		return nil, ErrEmptyMessage
	}

	// Retry suppression happens before the media upload: a retried image
	// send must not upload the payload twice.
	if req.ClientKey != "" && s.retries.Observe(req.SenderID+"|"+req.ClientKey) {
		s.logger.Debug("suppressed duplicate send",
			"sender_id", req.SenderID,
			"client_key", req.ClientKey,
		)
		return nil, ErrDuplicateSend
	}

	// Resolve the image payload before touching the store, so a failed
	// resolution aborts the send with no record created.
	var imageRef *string
	if len(req.Image) > 0 {
		ref, err := s.media.Resolve(ctx, req.Image)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMediaUpload, err)
		}
		imageRef = &ref
	}

	conv, err := s.ensureConversation(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving conversation: %v", ErrPersistence, err)
	}

	var text *string
	if req.Text != "" {
		text = &req.Text
	}

	now := time.Now()
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		RecipientID:    req.RecipientID,
		Text:           text,
		ImageRef:       imageRef,
		Seen:           false,
		CreatedAt:      now,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: recording message: %v", ErrPersistence, err)
	}

	// Projection update follows the message write immediately. A failure of
	// either is reported as one failed operation; the message row stays
	// authoritative and the projection is recomputable from history.
	lm := store.LastMessage{
		MessageID: msg.ID,
		Text:      req.Text,
		IsImage:   imageRef != nil,
		SenderID:  req.SenderID,
		Seen:      false,
		SentAt:    now,
	}
	if err := s.store.UpdateLastMessage(ctx, conv.ID, lm); err != nil {
		return nil, fmt.Errorf("%w: updating conversation summary: %v", ErrPersistence, err)
	}

	delivered := s.pusher.Push(req.RecipientID, registry.Event{
		Type:    registry.EventNewMessage,
		Payload: NewMessageView(msg),
	})

	s.logger.Debug("message sent",
		"message_id", msg.ID,
		"conversation_id", conv.ID,
		"sender_id", req.SenderID,
		"recipient_id", req.RecipientID,
		"live_deliveries", delivered,
	)
	return msg, nil
}

// ListMessages returns a conversation's messages in persistence order.
// The viewer must be a participant.
func (s *Service) ListMessages(ctx context.Context, conversationID, viewerID string, limit int) ([]*store.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

// ListConversations returns a user's conversations, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// ensureConversation resolves the conversation for an unordered participant
// pair, lazily creating it on first message. A concurrent create between the
// lookup and the insert is resolved by retrying the lookup.
func (s *Service) ensureConversation(ctx context.Context, senderID, recipientID string) (*store.Conversation, error) {
	conv, err := s.store.GetConversationByParticipants(ctx, senderID, recipientID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	lo, hi := store.ParticipantPair(senderID, recipientID)
	now := time.Now()
	conv = &store.Conversation{
		ID:           uuid.New().String(),
		ParticipantA: lo,
		ParticipantB: hi,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrDuplicateConversation) {
			existing, lookupErr := s.store.GetConversationByParticipants(ctx, senderID, recipientID)
			if lookupErr == nil {
				s.logger.Debug("found existing conversation after race", "conversation_id", existing.ID)
				return existing, nil
			}
			s.logger.Error("retry lookup failed after duplicate error", "lookup_error", lookupErr)
		}
		return nil, err
	}

	s.logger.Debug("conversation created",
		"conversation_id", conv.ID,
		"participant_a", lo,
		"participant_b", hi,
	)
	return conv, nil
}
