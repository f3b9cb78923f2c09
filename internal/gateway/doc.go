// Package gateway exposes the conversation subsystem over HTTP.
//
// # HTTP API
//
//   - POST /api/messages - send a direct message
//   - GET  /api/conversations - list the caller's conversations
//   - GET  /api/conversations/{id}/messages - fetch message history
//   - POST /api/messages/{id}/seen - mark one message seen
//   - POST /api/conversations/{id}/seen - mark a whole conversation seen
//   - GET  /api/presence - snapshot of online users
//   - GET  /ws - websocket event channel
//   - GET  /healthz - liveness check (unauthenticated)
//
// All /api and /ws routes require a verified JWT; the acting user is always
// the token subject, never a request field.
//
// # Websocket Channel
//
// Inbound frames carry typing-start, typing-stop, and mark-seen signals.
// Outbound events (new-message, presence-update, typing-update, seen-update)
// are registry.Event values produced by the components and drained by the
// write pump.
package gateway
