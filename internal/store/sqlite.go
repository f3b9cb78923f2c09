// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is RFC3339 with fixed-width nanoseconds so that lexical order of
// stored timestamps matches time order. Message ordering relies on this.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id                    TEXT PRIMARY KEY,
			participant_a         TEXT NOT NULL,
			participant_b         TEXT NOT NULL,
			last_message_id       TEXT,
			last_message_text     TEXT NOT NULL DEFAULT '',
			last_message_is_image INTEGER NOT NULL DEFAULT 0,
			last_message_sender   TEXT NOT NULL DEFAULT '',
			last_message_seen     INTEGER NOT NULL DEFAULT 0,
			last_message_at       TEXT,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL,

			CHECK (participant_a <= participant_b)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_participants
			ON conversations(participant_a, participant_b);

		CREATE INDEX IF NOT EXISTS idx_conversations_participant_b
			ON conversations(participant_b);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			recipient_id    TEXT NOT NULL,
			text            TEXT,
			image_ref       TEXT,
			seen            INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,

			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			CHECK (text IS NOT NULL OR image_ref IS NOT NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_messages_recipient_unseen
			ON messages(conversation_id, recipient_id, seen);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateConversation creates a new conversation row.
// If a conversation for the same participant pair already exists,
// it returns ErrDuplicateConversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (
			id, participant_a, participant_b,
			last_message_id, last_message_text, last_message_is_image,
			last_message_sender, last_message_seen, last_message_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastMessageID, lastMessageAt *string
	if conv.LastMessage.MessageID != "" {
		lastMessageID = &conv.LastMessage.MessageID
		at := conv.LastMessage.SentAt.UTC().Format(timeFormat)
		lastMessageAt = &at
	}

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.ParticipantA,
		conv.ParticipantB,
		lastMessageID,
		conv.LastMessage.Text,
		boolToInt(conv.LastMessage.IsImage),
		conv.LastMessage.SenderID,
		boolToInt(conv.LastMessage.Seen),
		lastMessageAt,
		conv.CreatedAt.UTC().Format(timeFormat),
		conv.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation",
		"id", conv.ID,
		"participant_a", conv.ParticipantA,
		"participant_b", conv.ParticipantB,
	)
	return nil
}

const conversationColumns = `
	id, participant_a, participant_b,
	last_message_id, last_message_text, last_message_is_image,
	last_message_sender, last_message_seen, last_message_at,
	created_at, updated_at
`

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetConversationByParticipants retrieves the conversation for an unordered
// participant pair. Returns ErrNotFound if none exists.
func (s *SQLiteStore) GetConversationByParticipants(ctx context.Context, userA, userB string) (*Conversation, error) {
	lo, hi := ParticipantPair(userA, userB)
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE participant_a = ? AND participant_b = ?`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, lo, hi))
}

// ListConversations retrieves all conversations a user participates in,
// most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := s.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanConversation
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanConversation(row scanner) (*Conversation, error) {
	conv := &Conversation{}
	var lastMessageID, lastMessageAt sql.NullString
	var isImage, seen int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&conv.ID,
		&conv.ParticipantA,
		&conv.ParticipantB,
		&lastMessageID,
		&conv.LastMessage.Text,
		&isImage,
		&conv.LastMessage.SenderID,
		&seen,
		&lastMessageAt,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	conv.LastMessage.MessageID = lastMessageID.String
	conv.LastMessage.IsImage = isImage != 0
	conv.LastMessage.Seen = seen != 0

	if lastMessageAt.Valid {
		conv.LastMessage.SentAt, err = time.Parse(time.RFC3339Nano, lastMessageAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_message_at: %w", err)
		}
	}
	conv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return conv, nil
}

// UpdateLastMessage replaces a conversation's last-message projection.
// The guard on last_message_at makes concurrent updates converge on the
// message with the latest timestamp regardless of write arrival order;
// a stale update is silently skipped, not an error.
func (s *SQLiteStore) UpdateLastMessage(ctx context.Context, conversationID string, lm LastMessage) error {
	query := `
		UPDATE conversations
		SET last_message_id = ?, last_message_text = ?, last_message_is_image = ?,
		    last_message_sender = ?, last_message_seen = ?, last_message_at = ?,
		    updated_at = ?
		WHERE id = ? AND (last_message_at IS NULL OR last_message_at <= ?)
	`

	sentAt := lm.SentAt.UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, query,
		lm.MessageID,
		lm.Text,
		boolToInt(lm.IsImage),
		lm.SenderID,
		boolToInt(lm.Seen),
		sentAt,
		time.Now().UTC().Format(timeFormat),
		conversationID,
		sentAt,
	)
	if err != nil {
		return fmt.Errorf("updating last message: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		// Either the conversation is missing or a newer projection already
		// landed. Only the former is an error.
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking conversation existence: %w", err)
		}
		s.logger.Debug("skipped stale last message update", "conversation_id", conversationID, "message_id", lm.MessageID)
	}

	return nil
}

// SetLastMessageSeen flips the projection's seen flag while messageID is
// still the conversation's most recent message. Zero rows affected means the
// projection has moved on, which is fine.
func (s *SQLiteStore) SetLastMessageSeen(ctx context.Context, conversationID, messageID string) error {
	query := `
		UPDATE conversations
		SET last_message_seen = 1
		WHERE id = ? AND last_message_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, conversationID, messageID); err != nil {
		return fmt.Errorf("updating last message seen: %w", err)
	}
	return nil
}

// SaveMessage persists a message to the database
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, text, image_ref, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.RecipientID,
		msg.Text,
		msg.ImageRef,
		boolToInt(msg.Seen),
		msg.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("saved message",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_id", msg.SenderID,
	)
	return nil
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, text, image_ref, seen, created_at`

// GetMessage retrieves a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	msg := &Message{}
	var seen int
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Text,
		&msg.ImageRef,
		&seen,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	msg.Seen = seen != 0
	msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return msg, nil
}

// ListMessages retrieves messages for a conversation in persistence order
// (created_at ascending, message ID as tiebreak).
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		var seen int
		var createdAtStr string

		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.RecipientID,
			&msg.Text,
			&msg.ImageRef,
			&seen,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Seen = seen != 0
		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// MarkMessageSeen flips a message's seen flag to true. Monotonic: marking an
// already-seen message is a no-op, never a revert.
func (s *SQLiteStore) MarkMessageSeen(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET seen = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking message seen: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkConversationSeen flips every unseen message addressed to viewerID in
// the conversation and returns the IDs that were flipped. The conversation's
// projection seen flag is updated in the same transaction when the projected
// message was addressed to the viewer.
func (s *SQLiteStore) MarkConversationSeen(ctx context.Context, conversationID, viewerID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE conversation_id = ? AND recipient_id = ? AND seen = 0
		ORDER BY created_at ASC, id ASC
	`, conversationID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("querying unseen messages: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning message id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating message ids: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET seen = 1
		WHERE conversation_id = ? AND recipient_id = ? AND seen = 0
	`, conversationID, viewerID); err != nil {
		return nil, fmt.Errorf("marking messages seen: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_seen = 1
		WHERE id = ? AND last_message_sender <> ?
	`, conversationID, viewerID); err != nil {
		return nil, fmt.Errorf("updating conversation seen flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("marked conversation seen",
		"conversation_id", conversationID,
		"viewer_id", viewerID,
		"count", len(ids),
	)
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
