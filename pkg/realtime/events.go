package realtime

import (
	"encoding/json"
)

// Client to server event names.
const (
	EventJoinSession          = "join_session"
	EventToggleRecording      = "toggle_recording"
	EventRecordingStateUpdate = "recording_state_update"
)

// Server to client event names.
const (
	EventSessionVerified        = "session_verified"
	EventError                  = "error"
	EventToggleRecordingCommand = "toggle_recording_command"
	EventRecordingStateChanged  = "recording_state_changed"
)

// Message texts sent to clients.
const (
	MsgSessionFound     = "Session found"
	MsgSessionNotFound  = "Session not found"
	MsgPresenterOffline = "Session not found or presenter is offline"
	MsgNotInSession     = "Not joined to this session"
	MsgInvalidPayload   = "Invalid payload"
	MsgUnknownEvent     = "Unknown event"

	toggleAction = "toggle"
)

// Message is the wire envelope for every realtime frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinSessionPayload is sent by a device to join a session room. Older
// clients send the role as deviceType.
type JoinSessionPayload struct {
	SessionID  string `json:"sessionId"`
	Role       string `json:"role,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
}

// RoleName returns the requested role, preferring Role over DeviceType.
func (p JoinSessionPayload) RoleName() string {
	if p.Role != "" {
		return p.Role
	}
	return p.DeviceType
}

// SessionPayload names the session a command targets.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// RecordingStatePayload is sent by the presenter when recording starts or stops.
type RecordingStatePayload struct {
	SessionID   string `json:"sessionId"`
	IsRecording *bool  `json:"isRecording"`
}

// SessionVerified answers a controller's join.
type SessionVerified struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ErrorEvent reports a failed command to its sender.
type ErrorEvent struct {
	Message string `json:"message"`
}

// ToggleRecordingCommand asks the presenter to flip its recording state.
type ToggleRecordingCommand struct {
	Action string `json:"action"`
}

// RecordingStateChanged relays the presenter's recording state.
type RecordingStateChanged struct {
	IsRecording bool `json:"isRecording"`
}

// NewMessage builds an envelope with data encoded as JSON.
func NewMessage(event string, data any) Message {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = nil
	}
	return Message{Event: event, Data: raw}
}

// Decode unmarshals the message data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Data, v)
}

func sessionVerifiedMessage(valid bool) Message {
	msg := MsgSessionFound
	if !valid {
		msg = MsgSessionNotFound
	}
	return NewMessage(EventSessionVerified, SessionVerified{Valid: valid, Message: msg})
}

func errorMessage(text string) Message {
	return NewMessage(EventError, ErrorEvent{Message: text})
}

func toggleCommandMessage() Message {
	return NewMessage(EventToggleRecordingCommand, ToggleRecordingCommand{Action: toggleAction})
}

func recordingStateMessage(isRecording bool) Message {
	return NewMessage(EventRecordingStateChanged, RecordingStateChanged{IsRecording: isRecording})
}
