// Package realtime relays recording commands between the devices of a
// presentation session. Devices join a room per session; controllers may
// only join while a presenter is bound, and commands fan out to the other
// members of the sender's room.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/talkback/pkg/audit"
	"github.com/txn2/talkback/pkg/session"
)

const defaultSendBuffer = 16

// Errors returned by Hub operations. Each is also reported to the sender
// as an error event unless noted otherwise.
var (
	ErrPresenterOffline = errors.New("presenter is offline")
	ErrNotInSession     = errors.New("connection has not joined the session")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrClientClosed     = errors.New("client is closed")
)

// Client is one device connection attached to the hub. Its outbound queue
// is drained by the transport.
type Client struct {
	id   string
	send chan Message

	// guarded by Hub.mu
	room   string
	role   session.Role
	closed bool
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Outbound returns the queue of events to write to the device. It is closed
// when the client disconnects.
func (c *Client) Outbound() <-chan Message { return c.send }

// deliver enqueues msg without blocking. Must be called with Hub.mu held.
func (c *Client) deliver(msg Message) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		slog.Warn("dropping realtime event, send buffer full", "connection_id", c.id, "event", msg.Event)
		return false
	}
}

// Hub routes realtime events between clients grouped into session rooms.
// All routing happens under one lock so every member of a room observes
// that room's events in the order the hub processed them.
type Hub struct {
	mu       sync.Mutex
	registry session.Registry
	clients  map[string]*Client
	rooms    map[string]map[string]*Client

	auditLogger audit.Logger
	sendBuffer  int
}

// Option configures a Hub.
type Option func(*Hub)

// WithAuditLogger records control events to logger.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.auditLogger = logger
		}
	}
}

// WithSendBuffer sets the per-client outbound queue size.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// NewHub creates a hub over registry.
func NewHub(registry session.Registry, opts ...Option) *Hub {
	h := &Hub{
		registry:    registry,
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		auditLogger: audit.NoopLogger{},
		sendBuffer:  defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect attaches a new client with a fresh connection id.
func (h *Hub) Connect() *Client {
	c := &Client{
		id:   uuid.NewString(),
		send: make(chan Message, h.sendBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	slog.Debug("realtime client connected", "connection_id", c.id)
	return c
}

// Join places the client in the session room with the given role. A
// controller is first verified against the registry and told the outcome
// with a session_verified event; it is admitted only when a presenter is
// bound. A presenter join replaces any previous presenter, which is
// removed from the room.
func (h *Hub) Join(ctx context.Context, c *Client, sessionID, roleName string) error {
	start := time.Now()
	role, err := session.ParseRole(roleName)
	if err == nil && sessionID == "" {
		err = session.ErrMissingSessionID
	}
	if err != nil {
		h.reply(c, errorMessage(MsgInvalidPayload))
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return ErrClientClosed
	}

	if role == session.RoleController {
		valid := h.registry.VerifyController(ctx, sessionID)
		// The bound presenter cannot become its own controller: joining
		// would release the only binding the verification relied on.
		if presenter, ok := h.registry.PresenterFor(ctx, sessionID); ok && presenter == c.id {
			valid = false
		}
		c.deliver(sessionVerifiedMessage(valid))
		if !valid {
			h.mu.Unlock()
			h.record(audit.NewEvent(audit.KindJoin).
				WithSession(sessionID).
				WithConnection(c.id, string(role)).
				WithResult(false, MsgSessionNotFound, time.Since(start).Milliseconds()))
			return ErrPresenterOffline
		}
	}

	res, err := h.registry.Join(ctx, c.id, sessionID, role)
	if err != nil {
		c.deliver(errorMessage(MsgInvalidPayload))
		h.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	h.leaveRoomLocked(c)
	h.joinRoomLocked(c, sessionID, role)
	if res.Superseded != "" {
		if old, ok := h.clients[res.Superseded]; ok {
			h.leaveRoomLocked(old)
		}
	}
	members := len(h.rooms[sessionID])
	h.mu.Unlock()

	slog.Info("device joined session",
		"session_id", sessionID, "connection_id", c.id, "role", role, "members", members)

	details := map[string]any{"members": members}
	if res.Superseded != "" {
		details["superseded"] = res.Superseded
	}
	h.record(audit.NewEvent(audit.KindJoin).
		WithSession(sessionID).
		WithConnection(c.id, string(role)).
		WithDetails(details).
		WithResult(true, "", time.Since(start).Milliseconds()))
	return nil
}

// ToggleRecording asks the session's presenter to flip its recording
// state. The command goes to every other member of the room.
func (h *Hub) ToggleRecording(ctx context.Context, c *Client, sessionID string) error {
	start := time.Now()

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return ErrClientClosed
	}
	if _, ok := h.registry.PresenterFor(ctx, sessionID); !ok {
		c.deliver(errorMessage(MsgPresenterOffline))
		role := c.role
		h.mu.Unlock()
		h.record(audit.NewEvent(audit.KindToggle).
			WithSession(sessionID).
			WithConnection(c.id, string(role)).
			WithResult(false, MsgPresenterOffline, time.Since(start).Milliseconds()))
		return ErrPresenterOffline
	}
	if c.room != sessionID {
		c.deliver(errorMessage(MsgNotInSession))
		h.mu.Unlock()
		return ErrNotInSession
	}
	delivered := h.broadcastLocked(sessionID, c.id, toggleCommandMessage())
	role := c.role
	h.mu.Unlock()

	slog.Info("toggle recording relayed", "session_id", sessionID, "connection_id", c.id, "delivered", delivered)
	h.record(audit.NewEvent(audit.KindToggle).
		WithSession(sessionID).
		WithConnection(c.id, string(role)).
		WithDetails(map[string]any{"delivered": delivered}).
		WithResult(true, "", time.Since(start).Milliseconds()))
	return nil
}

// UpdateRecordingState relays the presenter's recording state to the other
// members of the room. Any member may send it.
func (h *Hub) UpdateRecordingState(_ context.Context, c *Client, sessionID string, isRecording bool) error {
	start := time.Now()

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return ErrClientClosed
	}
	if c.room != sessionID {
		c.deliver(errorMessage(MsgNotInSession))
		h.mu.Unlock()
		return ErrNotInSession
	}
	delivered := h.broadcastLocked(sessionID, c.id, recordingStateMessage(isRecording))
	role := c.role
	h.mu.Unlock()

	slog.Debug("recording state relayed", "session_id", sessionID, "is_recording", isRecording, "delivered", delivered)
	h.record(audit.NewEvent(audit.KindRecordingState).
		WithSession(sessionID).
		WithConnection(c.id, string(role)).
		WithDetails(map[string]any{"is_recording": isRecording, "delivered": delivered}).
		WithResult(true, "", time.Since(start).Milliseconds()))
	return nil
}

// Disconnect detaches the client: it leaves the registry and its room and
// its outbound queue is closed. Other members are not notified. Calling
// Disconnect more than once is a no-op.
func (h *Hub) Disconnect(ctx context.Context, c *Client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	h.leaveRoomLocked(c)
	c.closed = true
	close(c.send)
	delete(h.clients, c.id)
	conn, wasMember := h.registry.Leave(ctx, c.id)
	h.mu.Unlock()

	slog.Debug("realtime client disconnected", "connection_id", c.id)
	if wasMember {
		h.record(audit.NewEvent(audit.KindDisconnect).
			WithSession(conn.SessionID).
			WithConnection(c.id, string(conn.Role)).
			WithResult(true, "", 0))
	}
}

// Dispatch decodes an inbound message and runs the matching operation.
func (h *Hub) Dispatch(ctx context.Context, c *Client, msg Message) error {
	switch msg.Event {
	case EventJoinSession:
		var p JoinSessionPayload
		if err := msg.Decode(&p); err != nil {
			return h.invalid(c, err)
		}
		return h.Join(ctx, c, p.SessionID, p.RoleName())

	case EventToggleRecording:
		var p SessionPayload
		if err := msg.Decode(&p); err != nil {
			return h.invalid(c, err)
		}
		return h.ToggleRecording(ctx, c, p.SessionID)

	case EventRecordingStateUpdate:
		var p RecordingStatePayload
		if err := msg.Decode(&p); err != nil {
			return h.invalid(c, err)
		}
		if p.IsRecording == nil {
			return h.invalid(c, errors.New("isRecording is required"))
		}
		return h.UpdateRecordingState(ctx, c, p.SessionID, *p.IsRecording)

	default:
		h.reply(c, errorMessage(MsgUnknownEvent))
		return fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
}

// Shutdown disconnects every attached client. Their writers see the closed
// queue and close the underlying connections.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Disconnect(ctx, c)
	}
	if len(clients) > 0 {
		slog.Info("realtime hub shut down", "connections", len(clients))
	}
}

// RoomSize returns the number of clients in the session room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) invalid(c *Client, err error) error {
	h.reply(c, errorMessage(MsgInvalidPayload))
	return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
}

// reply enqueues a message for a single client.
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.deliver(msg)
}

func (h *Hub) joinRoomLocked(c *Client, sessionID string, role session.Role) {
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[sessionID] = room
	}
	room[c.id] = c
	c.room = sessionID
	c.role = role
}

func (h *Hub) leaveRoomLocked(c *Client) {
	if c.room == "" {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
	c.role = ""
}

// broadcastLocked delivers msg to every member of the room except the
// sender and returns how many queues accepted it.
func (h *Hub) broadcastLocked(sessionID, exceptID string, msg Message) int {
	delivered := 0
	for id, member := range h.rooms[sessionID] {
		if id == exceptID {
			continue
		}
		if member.deliver(msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) record(event *audit.Event) {
	audit.LogAsync(h.auditLogger, event)
}
