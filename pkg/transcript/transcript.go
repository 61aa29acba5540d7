// Package transcript accumulates per-session transcribed audio chunks and
// assembles them into one ordered transcript with absolute segment offsets.
// Chunks may arrive in any order; assembly always sorts by chunk index.
package transcript

import (
	"context"
	"errors"
	"time"
)

// ChunkDurationSeconds is the fixed length of every recorded audio chunk.
// Segment offsets within chunk i are shifted by i*ChunkDurationSeconds.
const ChunkDurationSeconds = 30

// ErrEmptySession is returned when a session has no stored chunks.
var ErrEmptySession = errors.New("no transcripts found for this session")

// ErrInvalidChunk is returned when a chunk cannot be stored.
var ErrInvalidChunk = errors.New("invalid chunk")

// Segment is a timed span of recognized speech. Start and End are seconds,
// relative to the chunk when stored and absolute once assembled.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Chunk is one transcribed audio chunk.
type Chunk struct {
	Index      int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Segments   []Segment `json:"segments,omitempty"`
	AudioHash  string    `json:"audioHash,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Assembly is the ordered, concatenated transcript for a session.
type Assembly struct {
	SessionID  string    `json:"sessionId"`
	Text       string    `json:"text"`
	Segments   []Segment `json:"segments"`
	ChunkCount int       `json:"chunkCount"`
}

// SessionInfo summarizes a session's stored chunks.
type SessionInfo struct {
	ID           string    `json:"sessionId"`
	ChunkCount   int       `json:"chunkCount"`
	LastIngestAt time.Time `json:"lastIngestAt"`
}

// Store holds chunk collections keyed by session id.
type Store interface {
	// Ingest stores a chunk. A chunk with the same index replaces the
	// previous one (last write wins).
	Ingest(ctx context.Context, sessionID string, chunk Chunk) error

	// Lookup returns the stored chunk at index, if any.
	Lookup(ctx context.Context, sessionID string, index int) (Chunk, bool)

	// Assemble builds the transcript without modifying the session.
	// Returns ErrEmptySession when no chunks are stored.
	Assemble(ctx context.Context, sessionID string) (*Assembly, error)

	// Take assembles and clears the session as one atomic step.
	// Returns ErrEmptySession, without mutating, when no chunks are stored.
	Take(ctx context.Context, sessionID string) (*Assembly, error)

	// Clear removes all chunks for the session.
	Clear(ctx context.Context, sessionID string) error

	// Exists reports whether the session has at least one chunk.
	Exists(ctx context.Context, sessionID string) bool

	// Sessions lists sessions that currently hold chunks.
	Sessions(ctx context.Context) []SessionInfo

	// Close stops background routines.
	Close() error
}
