package session

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryRegistry implements Registry with in-memory maps guarded by one lock.
type MemoryRegistry struct {
	mu          sync.RWMutex
	connections map[string]Connection
	presenters  map[string]string
	now         func() time.Time
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		connections: make(map[string]Connection),
		presenters:  make(map[string]string),
		now:         time.Now,
	}
}

// Join records the connection and, for presenters, rebinds the session.
func (r *MemoryRegistry) Join(_ context.Context, connID, sessionID string, role Role) (JoinResult, error) {
	if sessionID == "" {
		return JoinResult{}, ErrMissingSessionID
	}
	if role != RolePresenter && role != RoleController {
		return JoinResult{}, ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result JoinResult

	// A connection that was bound as presenter elsewhere gives that binding up.
	if prev, ok := r.connections[connID]; ok && prev.Role == RolePresenter {
		if r.presenters[prev.SessionID] == connID && (prev.SessionID != sessionID || role != RolePresenter) {
			delete(r.presenters, prev.SessionID)
			result.Released = prev.SessionID
		}
	}

	if role == RolePresenter {
		if old, ok := r.presenters[sessionID]; ok && old != connID {
			delete(r.connections, old)
			result.Superseded = old
			slog.Info("presenter replaced", "session_id", sessionID, "previous", old, "current", connID)
		}
		r.presenters[sessionID] = connID
	}

	r.connections[connID] = Connection{
		ID:        connID,
		SessionID: sessionID,
		Role:      role,
		JoinedAt:  r.now(),
	}
	return result, nil
}

// VerifyController reports whether the session has a bound presenter.
func (r *MemoryRegistry) VerifyController(_ context.Context, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.presenters[sessionID]
	return ok
}

// Leave removes the connection and, if it is still the bound presenter,
// the session's presenter binding.
func (r *MemoryRegistry) Leave(_ context.Context, connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.connections, connID)

	if conn.Role == RolePresenter && r.presenters[conn.SessionID] == connID {
		delete(r.presenters, conn.SessionID)
	}
	return conn, true
}

// PresenterFor returns the bound presenter connection id.
func (r *MemoryRegistry) PresenterFor(_ context.Context, sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.presenters[sessionID]
	return id, ok
}

// SessionState returns StateActive when a presenter is bound.
func (r *MemoryRegistry) SessionState(ctx context.Context, sessionID string) State {
	if r.VerifyController(ctx, sessionID) {
		return StateActive
	}
	return StateNoPresenter
}

// Lookup returns the connection record.
func (r *MemoryRegistry) Lookup(_ context.Context, connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	return conn, ok
}

// Connections lists the connections joined to the session, oldest first.
func (r *MemoryRegistry) Connections(_ context.Context, sessionID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Connection
	for _, conn := range r.connections {
		if conn.SessionID == sessionID {
			result = append(result, conn)
		}
	}
	slices.SortFunc(result, func(a, b Connection) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

// Verify interface compliance.
var _ Registry = (*MemoryRegistry)(nil)
