// Package session tracks which device connections belong to which
// presentation session and which connection is the session's presenter.
// It defines the Registry interface and the roles a device can join with.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the part a device plays in a session.
type Role string

const (
	// RolePresenter records audio and executes recording commands.
	RolePresenter Role = "presenter"

	// RoleController remotely toggles the presenter's recording.
	RoleController Role = "controller"
)

// ErrInvalidRole is returned for an unrecognized role name.
var ErrInvalidRole = errors.New("invalid role")

// ErrMissingSessionID is returned when a join names no session.
var ErrMissingSessionID = errors.New("session id is required")

// ParseRole maps a client-supplied role name to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePresenter:
		return RolePresenter, nil
	case RoleController:
		return RoleController, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// State is the control-plane state of a session.
type State string

const (
	// StateNoPresenter means controllers cannot join and toggles fail.
	StateNoPresenter State = "no_presenter"

	// StateActive means a presenter is bound.
	StateActive State = "active"
)

// Connection is one device's membership in a session.
type Connection struct {
	ID        string    `json:"connectionId"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// JoinResult reports side effects of a join.
type JoinResult struct {
	// Superseded is the connection id of a presenter that was replaced by
	// this join. Empty when nothing was replaced.
	Superseded string

	// Released is the session whose presenter binding this connection
	// gave up by re-joining elsewhere. Empty when nothing was released.
	Released string
}

// Registry maps connections to sessions and sessions to their presenter.
type Registry interface {
	// Join records the connection. A presenter join replaces any existing
	// presenter binding for the session (last presenter wins).
	Join(ctx context.Context, connID, sessionID string, role Role) (JoinResult, error)

	// VerifyController reports whether the session has a bound presenter.
	VerifyController(ctx context.Context, sessionID string) bool

	// Leave removes the connection. The presenter binding is removed only
	// when this connection is still the bound presenter.
	Leave(ctx context.Context, connID string) (Connection, bool)

	// PresenterFor returns the bound presenter connection id.
	PresenterFor(ctx context.Context, sessionID string) (string, bool)

	// SessionState returns the control-plane state of the session.
	SessionState(ctx context.Context, sessionID string) State

	// Lookup returns the connection record.
	Lookup(ctx context.Context, connID string) (Connection, bool)

	// Connections lists the connections joined to the session.
	Connections(ctx context.Context, sessionID string) []Connection
}
