// Package audit provides an audit trail of session control and feedback
// events for the platform.
package audit

import (
	"context"
	"time"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves audit events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// Event represents an auditable event.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	DurationMS   int64          `json:"duration_ms"`
	Kind         Kind           `json:"kind"`
	SessionID    string         `json:"session_id"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Role         string         `json:"role,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	SessionID string
	Kind      Kind
	Success   *bool
	Limit     int
	Offset    int
}

// Matches reports whether the event satisfies the filter. Limit and Offset
// are not considered.
func (f QueryFilter) Matches(e Event) bool {
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	return true
}

// NoopLogger discards all audit events.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(_ context.Context, _ Event) error { return nil }

// Query returns no events.
func (NoopLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) { return nil, nil }

// Close does nothing.
func (NoopLogger) Close() error { return nil }

// LogAsync records the event in a background goroutine so callers on a hot
// path never wait on the audit backend.
func LogAsync(logger Logger, event *Event) {
	if logger == nil || event == nil {
		return
	}
	go func() {
		_ = logger.Log(context.Background(), *event)
	}()
}

// Verify interface compliance.
var _ Logger = NoopLogger{}
