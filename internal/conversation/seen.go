// ABOUTME: Seen-State Synchronizer - flips seen flags and notifies the sender's connections
// ABOUTME: Single and bulk variants; bulk fires one aggregated event instead of a storm

package conversation

import (
	"context"
	"fmt"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
)

// SeenUpdate is the payload of a seen-update event, delivered to the
// ORIGINATING sender's connections so that client can update its delivery
// indicator.
type SeenUpdate struct {
	ConversationID string   `json:"conversationId"`
	UserID         string   `json:"userId"` // the viewer who saw the message(s)
	MessageIDs     []string `json:"messageIds,omitempty"`
}

// MarkSeen flips a single message's seen flag to true.
//
// The viewer must be a participant of the owning conversation; a viewer for
// whom the conversation is no longer accessible gets ErrNotParticipant.
// Marking an already-seen message is an idempotent no-op: seen stays true
// and no second event is pushed. Returns store.ErrNotFound if the message
// does not exist.
func (s *Service) MarkSeen(ctx context.Context, messageID, viewerID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	conv, err := s.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(viewerID) {
		return ErrNotParticipant
	}

	if msg.Seen {
		return nil
	}

	if err := s.store.MarkMessageSeen(ctx, messageID); err != nil {
		return fmt.Errorf("%w: marking message seen: %v", ErrPersistence, err)
	}
	if err := s.store.SetLastMessageSeen(ctx, msg.ConversationID, messageID); err != nil {
		return fmt.Errorf("%w: updating conversation seen flag: %v", ErrPersistence, err)
	}

	delivered := s.pusher.Push(msg.SenderID, seenEvent(msg.ConversationID, viewerID, []string{messageID}))

	s.logger.Debug("message marked seen",
		"message_id", messageID,
		"conversation_id", msg.ConversationID,
		"viewer_id", viewerID,
		"live_deliveries", delivered,
	)
	return nil
}

// MarkAllSeen flips every unseen message addressed to the viewer in the
// conversation and pushes ONE aggregated seen-update to the other
// participant, regardless of how large the backlog was. Nothing to flip
// means no event.
func (s *Service) MarkAllSeen(ctx context.Context, conversationID, viewerID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(viewerID) {
		return ErrNotParticipant
	}

	ids, err := s.store.MarkConversationSeen(ctx, conversationID, viewerID)
	if err != nil {
		return fmt.Errorf("%w: marking conversation seen: %v", ErrPersistence, err)
	}
	if len(ids) == 0 {
		return nil
	}

	sender := conv.OtherParticipant(viewerID)
	delivered := s.pusher.Push(sender, seenEvent(conversationID, viewerID, ids))

	s.logger.Debug("conversation marked seen",
		"conversation_id", conversationID,
		"viewer_id", viewerID,
		"count", len(ids),
		"live_deliveries", delivered,
	)
	return nil
}

func seenEvent(conversationID, viewerID string, messageIDs []string) registry.Event {
	return registry.Event{
		Type: registry.EventSeenUpdate,
		Payload: SeenUpdate{
			ConversationID: conversationID,
			UserID:         viewerID,
			MessageIDs:     messageIDs,
		},
	}
}
