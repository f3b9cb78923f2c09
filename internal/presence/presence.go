// ABOUTME: Derives the online-user set from the connection registry
// ABOUTME: Broadcasts the full snapshot to every client on registry mutation

package presence

import (
	"log/slog"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
)

// Update is the payload of a presence-update event. The snapshot is always
// sent in full: no diffing, no per-viewer filtering, which trades bandwidth
// for the absence of partial-update bugs.
type Update struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

// Broadcaster announces the online-user set to all connected clients.
type Broadcaster struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewBroadcaster wires a Broadcaster to the registry's change notifications.
// Pass nil logger for default.
func NewBroadcaster(reg *registry.Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		registry: reg,
		logger:   logger.With("component", "presence"),
	}
	reg.OnChange(b.broadcast)
	return b
}

// Snapshot returns the current set of online user identities.
func (b *Broadcaster) Snapshot() []string {
	return b.registry.OnlineUsers()
}

// broadcast resends the full snapshot to every connection. Runs after each
// register/unregister, so the reported set converges within one cycle of any
// connect or disconnect.
func (b *Broadcaster) broadcast() {
	snapshot := b.Snapshot()
	b.registry.Broadcast(registry.Event{
		Type:    registry.EventPresenceUpdate,
		Payload: Update{OnlineUserIDs: snapshot},
	}, "")

	b.logger.Debug("presence broadcast", "online_count", len(snapshot))
}
