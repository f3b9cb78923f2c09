// ABOUTME: HTTP API handlers for the request-style surface
// ABOUTME: sendMessage, listMessages, listConversations, markMessageSeen, markConversationSeen

package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/auth"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/conversation"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/store"
)

// SendMessageRequest is the JSON request body for POST /api/messages.
// The sender is always the authenticated user, never a body field.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`     // base64-encoded payload
	ClientKey   string `json:"clientKey,omitempty"` // optional retry-suppression key
}

// ConversationResponse is the JSON shape of a conversation with its
// last-message projection, used for list rendering without a join.
type ConversationResponse struct {
	ID           string              `json:"id"`
	Participants [2]string           `json:"participants"`
	LastMessage  LastMessageResponse `json:"lastMessage"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// LastMessageResponse is the denormalized last-message projection.
type LastMessageResponse struct {
	Text     string `json:"text"`
	IsImage  bool   `json:"isImage"`
	SenderID string `json:"sender"`
	Seen     bool   `json:"seen"`
}

// MessagesResponse is the JSON response for GET /api/conversations/{id}/messages.
type MessagesResponse struct {
	ConversationID string                     `json:"conversationId"`
	Messages       []conversation.MessageView `json:"messages"`
}

// PresenceResponse is the JSON response for GET /api/presence.
type PresenceResponse struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

// handleSendMessage handles POST /api/messages.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var image []byte
	if req.Image != "" {
		var err error
		image, err = base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "image must be base64 encoded")
			return
		}
	}

	msg, err := g.service.Send(r.Context(), &conversation.SendRequest{
		SenderID:    auth.UserIDFromContext(r.Context()),
		RecipientID: req.RecipientID,
		Text:        req.Text,
		Image:       image,
		ClientKey:   req.ClientKey,
	})
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conversation.NewMessageView(msg))
}

// handleListConversations handles GET /api/conversations.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	convs, err := g.service.ListConversations(r.Context(), userID)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	response := make([]ConversationResponse, 0, len(convs))
	for _, c := range convs {
		response = append(response, ConversationResponse{
			ID:           c.ID,
			Participants: [2]string{c.ParticipantA, c.ParticipantB},
			LastMessage: LastMessageResponse{
				Text:     c.LastMessage.Text,
				IsImage:  c.LastMessage.IsImage,
				SenderID: c.LastMessage.SenderID,
				Seen:     c.LastMessage.Seen,
			},
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleListMessages handles GET /api/conversations/{id}/messages.
// Messages are returned in persistence order (created_at, id tiebreak).
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	viewerID := auth.UserIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := g.service.ListMessages(r.Context(), conversationID, viewerID, limit)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	views := make([]conversation.MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, conversation.NewMessageView(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MessagesResponse{
		ConversationID: conversationID,
		Messages:       views,
	})
}

// handleMarkMessageSeen handles POST /api/messages/{id}/seen.
func (g *Gateway) handleMarkMessageSeen(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")
	viewerID := auth.UserIDFromContext(r.Context())

	if err := g.service.MarkSeen(r.Context(), messageID, viewerID); err != nil {
		g.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMarkConversationSeen handles POST /api/conversations/{id}/seen.
func (g *Gateway) handleMarkConversationSeen(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	viewerID := auth.UserIDFromContext(r.Context())

	if err := g.service.MarkAllSeen(r.Context(), conversationID, viewerID); err != nil {
		g.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePresence handles GET /api/presence.
func (g *Gateway) handlePresence(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PresenceResponse{
		OnlineUserIDs: g.presence.Snapshot(),
	})
}

// handleHealthz handles GET /healthz. Unauthenticated.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sendServiceError maps service errors to HTTP status codes.
func (g *Gateway) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrNotParticipant):
		g.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, conversation.ErrDuplicateSend):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, conversation.ErrMediaUpload):
		g.sendJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, conversation.ErrPersistence):
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		g.logger.Error("unhandled service error", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// sendJSONError writes a JSON error response with the given status code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
