// Package store provides persistent storage for pixelpals-chat using SQLite.
//
// # Data Models
//
//   - Conversation: the durable record of an exchange between exactly two
//     participants, with a denormalized last-message projection for list
//     rendering
//   - Message: a unit of communication; immutable after creation except for
//     the Seen flag, which only transitions false -> true
//
// Participants are stored lexically ordered (participant_a <= participant_b)
// so an unordered user pair maps to a single conversation row, enforced by a
// unique index.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as fixed-width RFC3339 text so lexical comparison in
// SQL matches time order. This is what lets the last-message projection guard
// (last_message_at <= ?) and the (created_at, id) retrieval order work with
// plain string comparison.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateConversation: a conversation for the pair already exists
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements the full Store interface
// in memory and carries failure-injection flags for dual-write tests.
package store
