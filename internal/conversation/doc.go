// Package conversation implements message routing and seen-state updates.
//
// The Service validates and persists sends, lazily creating the conversation
// for a participant pair on first message, then pushes a new-message event to
// the recipient's live connections. The durable write is authoritative; the
// live push never blocks or fails a send.
//
// Seen updates come in two shapes: MarkSeen for a single message and
// MarkAllSeen for a whole conversation, which flips the backlog in one store
// operation and emits one aggregated event.
package conversation
