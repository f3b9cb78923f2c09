// ABOUTME: Client-to-server event shapes for the websocket channel
// ABOUTME: Server-to-client events are registry.Event values produced by the components

package gateway

// Client-to-server event types.
const (
	clientEventTypingStart = "typing-start"
	clientEventTypingStop  = "typing-stop"
	clientEventMarkSeen    = "mark-seen"
)

// clientEvent is the decoded form of an inbound websocket frame. The acting
// user is always the connection's authenticated identity; a userId field in
// the frame is ignored.
type clientEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}
