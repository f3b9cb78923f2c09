// Package typing tracks transient per-conversation typing indicators with
// TTL-based expiry, so a vanished client cannot leave a stale indicator.
package typing
