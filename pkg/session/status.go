package session

import (
	"context"
	"time"

	"github.com/txn2/talkback/pkg/transcript"
)

// Status combines the chunk store and control-plane views of one session.
type Status struct {
	SessionID    string     `json:"sessionId"`
	ChunkCount   int        `json:"chunkCount"`
	LastIngestAt *time.Time `json:"lastIngestAt,omitempty"`
	State        State      `json:"state"`
	Connections  int        `json:"connections"`
}

// Describe reports what store and registry know about sessionID. ok is
// false when neither holds any record of it.
func Describe(ctx context.Context, store transcript.Store, registry Registry, sessionID string) (Status, bool) {
	status := Status{SessionID: sessionID, State: StateNoPresenter}

	for _, info := range store.Sessions(ctx) {
		if info.ID == sessionID {
			status.ChunkCount = info.ChunkCount
			at := info.LastIngestAt
			status.LastIngestAt = &at
			break
		}
	}
	if registry != nil {
		status.State = registry.SessionState(ctx, sessionID)
		status.Connections = len(registry.Connections(ctx, sessionID))
	}
	return status, status.ChunkCount > 0 || status.Connections > 0
}
