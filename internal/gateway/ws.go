// ABOUTME: Websocket event channel - one long-lived connection task per client
// ABOUTME: Read pump handles typing and seen signals; write pump drains the registry connection

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/auth"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/conversation"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Identity comes from the verified token, not the origin.
		return true
	},
}

// handleWebSocket handles GET /ws. The connection is registered under the
// authenticated user identity and stays registered until the read side ends.
// A disconnect is an unregister, never a cancellation of in-flight work:
// sends and seen updates that already reached the service complete and their
// persisted effect stands.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}

	conn := registry.NewConnection(userID, g.logger)
	g.registry.Register(conn)

	go g.writePump(wsConn, conn)
	g.readPump(r, wsConn, conn)
}

// readPump decodes inbound frames until the peer goes away, then unregisters
// the connection handle that actually disconnected.
func (g *Gateway) readPump(r *http.Request, wsConn *websocket.Conn, conn *registry.Connection) {
	defer func() {
		g.registry.Unregister(conn)
		wsConn.Close()
	}()

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error", "error", err, "user_id", conn.UserID)
			}
			return
		}

		var evt clientEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			g.logger.Debug("dropping malformed client event", "error", err, "user_id", conn.UserID)
			continue
		}
		if evt.ConversationID == "" {
			continue
		}

		switch evt.Type {
		case clientEventTypingStart:
			g.typing.Start(evt.ConversationID, conn.UserID, conn.ID)

		case clientEventTypingStop:
			g.typing.Stop(evt.ConversationID, conn.UserID, conn.ID)

		case clientEventMarkSeen:
			if err := g.service.MarkAllSeen(r.Context(), evt.ConversationID, conn.UserID); err != nil {
				if errors.Is(err, conversation.ErrNotParticipant) || errors.Is(err, store.ErrNotFound) {
					// The conversation is gone or inaccessible to the viewer.
					// The signal is advisory, so this is a silent no-op.
					g.logger.Debug("ignoring seen signal for inaccessible conversation",
						"conversation_id", evt.ConversationID,
						"user_id", conn.UserID,
					)
				} else {
					g.logger.Warn("mark-seen failed",
						"error", err,
						"conversation_id", evt.ConversationID,
						"user_id", conn.UserID,
					)
				}
			}

		default:
			g.logger.Debug("unknown client event type", "type", evt.Type, "user_id", conn.UserID)
		}
	}
}

// writePump serializes queued events onto the socket. Ends when the
// connection handle is closed by Unregister.
func (g *Gateway) writePump(wsConn *websocket.Conn, conn *registry.Connection) {
	defer wsConn.Close()

	for evt := range conn.Events() {
		if err := wsConn.WriteJSON(evt); err != nil {
			// Dead socket: swallow, the read pump will notice and unregister.
			return
		}
	}
}
