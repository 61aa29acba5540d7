package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// collection is the chunk set for one session.
type collection struct {
	chunks       map[int]Chunk
	lastIngestAt time.Time
}

// MemoryStore implements Store with an in-memory map guarded by one lock.
// Ingest and Take on the same session are serialized, so a Take never
// observes a half-written chunk and never drops a chunk ingested after it.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*collection
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates an empty in-memory chunk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*collection),
		now:      time.Now,
	}
}

// Ingest stores a chunk. A chunk with the same index replaces the previous one.
func (s *MemoryStore) Ingest(_ context.Context, sessionID string, chunk Chunk) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidChunk)
	}
	if chunk.Index < 0 {
		return fmt.Errorf("%w: chunk index %d is negative", ErrInvalidChunk, chunk.Index)
	}

	now := s.now()
	if chunk.ReceivedAt.IsZero() {
		chunk.ReceivedAt = now
	}
	chunk.Segments = slices.Clone(chunk.Segments)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		c = &collection{chunks: make(map[int]Chunk)}
		s.sessions[sessionID] = c
	}
	if _, replaced := c.chunks[chunk.Index]; replaced {
		slog.Debug("replacing transcript chunk", "session_id", sessionID, "chunk_index", chunk.Index)
	}
	c.chunks[chunk.Index] = chunk
	c.lastIngestAt = now
	return nil
}

// Lookup returns the stored chunk at index, if any.
func (s *MemoryStore) Lookup(_ context.Context, sessionID string, index int) (Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		return Chunk{}, false
	}
	chunk, ok := c.chunks[index]
	if !ok {
		return Chunk{}, false
	}
	chunk.Segments = slices.Clone(chunk.Segments)
	return chunk, true
}

// Assemble builds the transcript without modifying the session.
func (s *MemoryStore) Assemble(_ context.Context, sessionID string) (*Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[sessionID]
	if !ok || len(c.chunks) == 0 {
		return nil, ErrEmptySession
	}
	return assemble(sessionID, c.chunks), nil
}

// Take assembles and clears the session under a single write lock.
func (s *MemoryStore) Take(_ context.Context, sessionID string) (*Assembly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok || len(c.chunks) == 0 {
		return nil, ErrEmptySession
	}
	a := assemble(sessionID, c.chunks)
	delete(s.sessions, sessionID)
	return a, nil
}

// Clear removes all chunks for the session.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Exists reports whether the session has at least one chunk.
func (s *MemoryStore) Exists(_ context.Context, sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[sessionID]
	return ok && len(c.chunks) > 0
}

// Sessions lists sessions that currently hold chunks, ordered by id.
func (s *MemoryStore) Sessions(_ context.Context) []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SessionInfo, 0, len(s.sessions))
	for _, id := range slices.Sorted(maps.Keys(s.sessions)) {
		c := s.sessions[id]
		result = append(result, SessionInfo{
			ID:           id,
			ChunkCount:   len(c.chunks),
			LastIngestAt: c.lastIngestAt,
		})
	}
	return result
}

// EvictIdle removes sessions with no ingest for longer than idleTTL and
// returns how many were removed.
func (s *MemoryStore) EvictIdle(_ context.Context, idleTTL time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idleTTL)
	evicted := 0
	for id, c := range s.sessions {
		if c.lastIngestAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartCleanupRoutine starts a background goroutine that periodically evicts
// sessions idle for longer than idleTTL. The goroutine is stopped when Close
// is called.
func (s *MemoryStore) StartCleanupRoutine(idleTTL, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.EvictIdle(ctx, idleTTL); n > 0 {
					slog.Info("evicted idle transcript sessions", "count", n, "idle_ttl", idleTTL)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// assemble orders chunks by index, joins their text with single spaces and
// shifts segment offsets by the chunk's start time.
func assemble(sessionID string, chunks map[int]Chunk) *Assembly {
	indexes := slices.Collect(maps.Keys(chunks))
	sort.Ints(indexes)

	texts := make([]string, 0, len(indexes))
	segments := make([]Segment, 0)
	for _, idx := range indexes {
		chunk := chunks[idx]
		if text := strings.TrimSpace(chunk.Text); text != "" {
			texts = append(texts, text)
		}
		offset := float64(idx * ChunkDurationSeconds)
		for _, seg := range chunk.Segments {
			segments = append(segments, Segment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  seg.Text,
			})
		}
	}

	return &Assembly{
		SessionID:  sessionID,
		Text:       strings.Join(texts, " "),
		Segments:   segments,
		ChunkCount: len(indexes),
	}
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
