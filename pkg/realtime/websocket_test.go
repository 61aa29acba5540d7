package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/talkback/pkg/session"
)

const wsTestTimeout = 2 * time.Second

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wsTestTimeout)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandler_EndToEnd(t *testing.T) {
	reg := session.NewMemoryRegistry()
	hub := NewHub(reg)
	srv := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer srv.Close()
	ctx := context.Background()

	presenter := dialTestServer(t, srv)
	require.NoError(t, presenter.WriteJSON(NewMessage(EventJoinSession,
		JoinSessionPayload{SessionID: hubTestSess, DeviceType: "presenter"})))

	require.Eventually(t, func() bool {
		return reg.VerifyController(ctx, hubTestSess)
	}, wsTestTimeout, 5*time.Millisecond)

	controller := dialTestServer(t, srv)
	require.NoError(t, controller.WriteJSON(NewMessage(EventJoinSession,
		JoinSessionPayload{SessionID: hubTestSess, DeviceType: "controller"})))

	msg := readMessage(t, controller)
	require.Equal(t, EventSessionVerified, msg.Event)
	assert.True(t, decode[SessionVerified](t, msg).Valid)

	require.NoError(t, controller.WriteJSON(NewMessage(EventToggleRecording,
		SessionPayload{SessionID: hubTestSess})))
	msg = readMessage(t, presenter)
	assert.Equal(t, EventToggleRecordingCommand, msg.Event)

	recording := true
	require.NoError(t, presenter.WriteJSON(NewMessage(EventRecordingStateUpdate,
		RecordingStatePayload{SessionID: hubTestSess, IsRecording: &recording})))
	msg = readMessage(t, controller)
	assert.Equal(t, EventRecordingStateChanged, msg.Event)
	assert.True(t, decode[RecordingStateChanged](t, msg).IsRecording)

	// Closing the presenter socket unbinds the session.
	require.NoError(t, presenter.Close())
	require.Eventually(t, func() bool {
		return !reg.VerifyController(ctx, hubTestSess)
	}, wsTestTimeout, 5*time.Millisecond)

	require.NoError(t, controller.WriteJSON(NewMessage(EventToggleRecording,
		SessionPayload{SessionID: hubTestSess})))
	msg = readMessage(t, controller)
	assert.Equal(t, EventError, msg.Event)
	assert.Equal(t, MsgPresenterOffline, decode[ErrorEvent](t, msg).Message)
}

func TestHandler_InvalidFrame(t *testing.T) {
	hub := NewHub(session.NewMemoryRegistry())
	srv := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer srv.Close()

	conn := dialTestServer(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	msg := readMessage(t, conn)
	assert.Equal(t, EventError, msg.Event)
	assert.Equal(t, MsgInvalidPayload, decode[ErrorEvent](t, msg).Message)

	// The connection stays usable after a bad frame.
	require.NoError(t, conn.WriteJSON(Message{Event: "nope"}))
	msg = readMessage(t, conn)
	assert.Equal(t, MsgUnknownEvent, decode[ErrorEvent](t, msg).Message)
}

func TestHandler_EmptyOrTruncatedFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"truncated object", `{"event":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(session.NewMemoryRegistry())
			srv := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
			defer srv.Close()

			conn := dialTestServer(t, srv)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))

			msg := readMessage(t, conn)
			assert.Equal(t, EventError, msg.Event)
			assert.Equal(t, MsgInvalidPayload, decode[ErrorEvent](t, msg).Message)

			require.NoError(t, conn.WriteJSON(Message{Event: "nope"}))
			msg = readMessage(t, conn)
			assert.Equal(t, MsgUnknownEvent, decode[ErrorEvent](t, msg).Message)
		})
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no restriction", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"no origin header", []string{"https://app.example"}, "", true},
		{"allowed", []string{"https://app.example"}, "https://app.example", true},
		{"allowed trailing slash", []string{"https://app.example/"}, "https://APP.example", true},
		{"rejected", []string{"https://app.example"}, "https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(NewHub(session.NewMemoryRegistry()), HandlerConfig{AllowedOrigins: tt.allowed})
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(r))
		})
	}
}
