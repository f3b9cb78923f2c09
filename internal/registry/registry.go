// ABOUTME: Maps user identities to their live connection handles
// ABOUTME: Set-valued so every open tab or device of a user receives pushes

package registry

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry tracks which users currently hold live connections. A user may
// hold several handles at once; unregistering removes only the handle that
// actually disconnected. State is purely in-memory and rebuilt from client
// reconnects after a restart.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]map[string]*Connection // userID -> connID -> conn
	listeners []func()
	logger    *slog.Logger
}

// New creates an empty Registry. Pass nil logger for default.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string]map[string]*Connection),
		logger: logger.With("component", "registry"),
	}
}

// OnChange registers a listener invoked after every successful register or
// unregister. Listeners run outside the registry lock, so they may call back
// into the registry.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Register binds a connection handle to its user identity.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	if _, ok := r.conns[conn.UserID]; !ok {
		r.conns[conn.UserID] = make(map[string]*Connection)
	}
	r.conns[conn.UserID][conn.ID] = conn
	total := len(r.conns[conn.UserID])
	listeners := r.listeners
	r.mu.Unlock()

	r.logger.Info("client connected",
		"user_id", conn.UserID,
		"conn_id", conn.ID,
		"user_connections", total,
	)

	for _, fn := range listeners {
		fn()
	}
}

// Unregister removes exactly the given handle and closes it. No-op if the
// handle is not registered.
func (r *Registry) Unregister(conn *Connection) {
	r.mu.Lock()
	userConns, ok := r.conns[conn.UserID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := userConns[conn.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(userConns, conn.ID)
	if len(userConns) == 0 {
		delete(r.conns, conn.UserID)
	}
	listeners := r.listeners
	r.mu.Unlock()

	conn.Close()

	r.logger.Info("client disconnected",
		"user_id", conn.UserID,
		"conn_id", conn.ID,
	)

	for _, fn := range listeners {
		fn()
	}
}

// Connections returns all live handles for a user. The slice is a copy.
func (r *Registry) Connections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns, ok := r.conns[userID]
	if !ok {
		return nil
	}
	result := make([]*Connection, 0, len(userConns))
	for _, c := range userConns {
		result = append(result, c)
	}
	return result
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineUsers returns the sorted set of user identities with at least one
// live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Push fans an event out to every live handle of a user. Returns the number
// of handles the event was queued on. Zero is not an error; the recipient
// will observe the change on next fetch.
func (r *Registry) Push(userID string, evt Event) int {
	targets := r.Connections(userID)

	delivered := 0
	for _, c := range targets {
		if c.Send(evt) {
			delivered++
		}
	}
	return delivered
}

// Broadcast sends an event to every live connection. If excludeConnID is
// non-empty, that connection is skipped (used to avoid echoing an event back
// to its originator).
func (r *Registry) Broadcast(evt Event, excludeConnID string) {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.conns))
	for _, userConns := range r.conns {
		for id, c := range userConns {
			if excludeConnID != "" && id == excludeConnID {
				continue
			}
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.Send(evt)
	}
}
