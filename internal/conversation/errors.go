// ABOUTME: Error taxonomy for the conversation service
// ABOUTME: Sentinels matched with errors.Is by the gateway for status mapping

package conversation

import "errors"

var (
	// ErrEmptyMessage means a send carried neither text nor an image.
	// Rejected before any write.
	ErrEmptyMessage = errors.New("message has neither text nor image")

	// ErrNotParticipant means the acting user is not a participant of the
	// conversation. Also covers seen notifications for conversations that
	// have become inaccessible to the viewer.
	ErrNotParticipant = errors.New("user is not a conversation participant")

	// ErrDuplicateSend means a send carried a client key that was already
	// observed within the retry window. The original send's effect stands.
	ErrDuplicateSend = errors.New("duplicate send")

	// ErrMediaUpload means image resolution failed; the whole send is
	// aborted and nothing is persisted. The caller may retry the operation.
	ErrMediaUpload = errors.New("media upload failed")

	// ErrPersistence means the message/projection dual write failed.
	// The message write is authoritative; a projection left behind can be
	// recomputed from message history.
	ErrPersistence = errors.New("persistence failed")
)
