package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	redactedValue       = "[REDACTED]"
	eventTestDurationMS = 100
	memTestCapacity     = 3
)

func TestNewEvent(t *testing.T) {
	event := NewEvent(KindToggle)

	if event.Kind != KindToggle {
		t.Errorf("Kind = %q, want %q", event.Kind, KindToggle)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestEvent_Builders(t *testing.T) {
	event := NewEvent(KindJoin).
		WithSession("sess-1").
		WithConnection("conn-1", "controller").
		WithDetails(map[string]any{"valid": true}).
		WithResult(false, "presenter offline", eventTestDurationMS)

	if event.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want %q", event.SessionID, "sess-1")
	}
	if event.ConnectionID != "conn-1" || event.Role != "controller" {
		t.Errorf("connection = %q/%q, want conn-1/controller", event.ConnectionID, event.Role)
	}
	if event.Details["valid"] != true {
		t.Error("Details not set correctly")
	}
	if event.Success {
		t.Error("Success = true, want false")
	}
	if event.ErrorMessage != "presenter offline" {
		t.Errorf("ErrorMessage = %q", event.ErrorMessage)
	}
	if event.DurationMS != eventTestDurationMS {
		t.Errorf("DurationMS = %d, want %d", event.DurationMS, eventTestDurationMS)
	}
}

func TestSanitizeDetails(t *testing.T) {
	if SanitizeDetails(nil) != nil {
		t.Error("SanitizeDetails(nil) should be nil")
	}

	got := SanitizeDetails(map[string]any{
		"transcript":  "the whole talk",
		"api_key":     "k",
		"chunk_index": 3,
	})
	if got["transcript"] != redactedValue {
		t.Errorf("transcript = %v, want redacted", got["transcript"])
	}
	if got["api_key"] != redactedValue {
		t.Errorf("api_key = %v, want redacted", got["api_key"])
	}
	if got["chunk_index"] != 3 {
		t.Errorf("chunk_index = %v, want 3", got["chunk_index"])
	}
}

func TestQueryFilter_Matches(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := Event{Timestamp: base, SessionID: "s1", Kind: KindToggle, Success: true}
	before := base.Add(-time.Minute)
	after := base.Add(time.Minute)
	yes, no := true, false

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{"empty filter", QueryFilter{}, true},
		{"session match", QueryFilter{SessionID: "s1"}, true},
		{"session mismatch", QueryFilter{SessionID: "s2"}, false},
		{"kind mismatch", QueryFilter{Kind: KindJoin}, false},
		{"success match", QueryFilter{Success: &yes}, true},
		{"success mismatch", QueryFilter{Success: &no}, false},
		{"in window", QueryFilter{StartTime: &before, EndTime: &after}, true},
		{"before window", QueryFilter{StartTime: &after}, false},
		{"after window", QueryFilter{EndTime: &before}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(event))
		})
	}
}

func TestMemoryLogger_QueryNewestFirst(t *testing.T) {
	logger := NewMemoryLogger(0)
	ctx := context.Background()

	for i := range 5 {
		e := NewEvent(KindChunkIngested).WithSession(fmt.Sprintf("s%d", i%2))
		require.NoError(t, logger.Log(ctx, *e))
	}

	events, err := logger.Query(ctx, QueryFilter{SessionID: "s0"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.False(t, events[0].Timestamp.Before(events[2].Timestamp))

	limited, err := logger.Query(ctx, QueryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryLogger_DropsOldest(t *testing.T) {
	logger := NewMemoryLogger(memTestCapacity)
	ctx := context.Background()

	for i := range memTestCapacity + 2 {
		require.NoError(t, logger.Log(ctx, Event{ID: fmt.Sprintf("e%d", i)}))
	}

	events, err := logger.Query(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, events, memTestCapacity)
	assert.Equal(t, "e4", events[0].ID)
	assert.Equal(t, "e2", events[2].ID)
	assert.NoError(t, logger.Close())
}

func TestLogAsync(t *testing.T) {
	logger := NewMemoryLogger(0)

	LogAsync(logger, NewEvent(KindDisconnect).WithSession("s1"))
	LogAsync(nil, NewEvent(KindDisconnect))
	LogAsync(logger, nil)

	assert.Eventually(t, func() bool {
		events, _ := logger.Query(context.Background(), QueryFilter{Kind: KindDisconnect})
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNoopLogger(t *testing.T) {
	var logger Logger = NoopLogger{}
	ctx := context.Background()

	require.NoError(t, logger.Log(ctx, Event{}))
	events, err := logger.Query(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, logger.Close())
}
