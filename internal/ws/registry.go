// Package ws provides the real-time chat surface: a WebSocket endpoint
// driving the chat pipeline and a per-user connection registry for pushing
// server-side events.
package ws

import (
	"log/slog"
	"sync"
)

// Conn is the subset of a WebSocket connection the registry needs.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// session is one registered connection. Writes are serialized because the
// underlying WebSocket connection supports a single concurrent writer.
type session struct {
	id   string
	conn Conn
	mu   sync.Mutex
}

func (s *session) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Registry tracks active connections per user address.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*session
	logger   *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]map[string]*session),
		logger:   logger.With("system", "ws"),
	}
}

// Add registers a connection under the user address and returns the
// connection identifier used to remove it.
func (r *Registry) Add(userAddress, id string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[userAddress] == nil {
		r.sessions[userAddress] = make(map[string]*session)
	}
	r.sessions[userAddress][id] = &session{id: id, conn: conn}
	r.logger.Info("websocket connected", "user", userAddress, "connection", id)
}

// Remove drops a connection. The last connection for a user removes the user
// entry entirely.
func (r *Registry) Remove(userAddress, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.sessions[userAddress]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(r.sessions, userAddress)
		}
	}
	r.logger.Info("websocket disconnected", "user", userAddress, "connection", id)
}

// Publish sends a message to every connection of the user. Per-connection
// write failures are logged and skipped so one dead socket cannot block the
// rest.
func (r *Registry) Publish(userAddress string, message any) {
	r.mu.RLock()
	sessions := make([]*session, 0, len(r.sessions[userAddress]))
	for _, s := range r.sessions[userAddress] {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if err := s.write(message); err != nil {
			r.logger.Warn("websocket write failed",
				"user", userAddress,
				"connection", s.id,
				"error", err)
		}
	}
}

// Status summarizes the registry for the status endpoint.
type Status struct {
	ActiveUsers      int      `json:"active_users"`
	TotalConnections int      `json:"total_connections"`
	Users            []string `json:"users"`
}

// Snapshot returns current connection statistics.
func (r *Registry) Snapshot() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		ActiveUsers: len(r.sessions),
		Users:       make([]string, 0, len(r.sessions)),
	}
	for user, conns := range r.sessions {
		status.Users = append(status.Users, user)
		status.TotalConnections += len(conns)
	}
	return status
}
