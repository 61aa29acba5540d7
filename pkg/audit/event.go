package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind categorizes audit events.
type Kind string

const (
	// KindChunkIngested is a transcribed audio chunk being stored.
	KindChunkIngested Kind = "chunk_ingested"

	// KindSessionFinalized is a feedback report being produced.
	KindSessionFinalized Kind = "session_finalized"

	// KindSessionReset is an explicit clear of a session's chunks.
	KindSessionReset Kind = "session_reset"

	// KindJoin is a device joining a session room.
	KindJoin Kind = "join_session"

	// KindToggle is a controller asking the presenter to toggle recording.
	KindToggle Kind = "toggle_recording"

	// KindRecordingState is a presenter announcing its recording state.
	KindRecordingState Kind = "recording_state_update"

	// KindDisconnect is a device connection closing.
	KindDisconnect Kind = "disconnect"
)

// NewEvent creates a new audit event.
func NewEvent(kind Kind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Kind:      kind,
	}
}

// WithSession adds the session id to the event.
func (e *Event) WithSession(sessionID string) *Event {
	e.SessionID = sessionID
	return e
}

// WithConnection adds connection information to the event.
func (e *Event) WithConnection(connectionID, role string) *Event {
	e.ConnectionID = connectionID
	e.Role = role
	return e
}

// WithDetails adds details to the event.
func (e *Event) WithDetails(details map[string]any) *Event {
	e.Details = SanitizeDetails(details)
	return e
}

// WithResult adds result information to the event.
func (e *Event) WithResult(success bool, errorMsg string, durationMS int64) *Event {
	e.Success = success
	e.ErrorMessage = errorMsg
	e.DurationMS = durationMS
	return e
}

// SanitizeDetails removes sensitive values and raw transcript text from
// event details.
func SanitizeDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}

	redacted := map[string]bool{
		"api_key":    true,
		"token":      true,
		"secret":     true,
		"transcript": true,
		"audio":      true,
	}

	sanitized := make(map[string]any, len(details))
	for k, v := range details {
		if redacted[k] {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}
