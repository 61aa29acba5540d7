package transcript

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	memTestSess1        = "sess-1"
	memTestSess2        = "sess-2"
	memTestGoroutines   = 10
	memTestIterations   = 50
	memTestIdleTTL      = 50 * time.Millisecond
	memTestCleanupEvery = 10 * time.Millisecond
	memTestDelta        = 1e-9
)

func TestMemoryStore_AssembleOrdersByIndex(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 2, Text: "world"}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "hello"}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 1, Text: "there"}))

	a, err := store.Assemble(ctx, memTestSess1)
	require.NoError(t, err)
	assert.Equal(t, "hello there world", a.Text)
	assert.Equal(t, 3, a.ChunkCount)
	assert.Equal(t, memTestSess1, a.SessionID)
}

func TestMemoryStore_SegmentOffsets(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{
		Index:    1,
		Text:     "b",
		Segments: []Segment{{Start: 2, End: 5, Text: "b"}},
	}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{
		Index:    0,
		Text:     "a",
		Segments: []Segment{{Start: 0.5, End: 4.25, Text: "a"}},
	}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{
		Index:    3,
		Text:     "d",
		Segments: []Segment{{Start: 0, End: 29.5, Text: "d"}},
	}))

	a, err := store.Assemble(ctx, memTestSess1)
	require.NoError(t, err)
	require.Len(t, a.Segments, 3)

	assert.InDelta(t, 0.5, a.Segments[0].Start, memTestDelta)
	assert.InDelta(t, 4.25, a.Segments[0].End, memTestDelta)
	assert.InDelta(t, 32.0, a.Segments[1].Start, memTestDelta)
	assert.InDelta(t, 35.0, a.Segments[1].End, memTestDelta)
	assert.InDelta(t, 90.0, a.Segments[2].Start, memTestDelta)
	assert.InDelta(t, 119.5, a.Segments[2].End, memTestDelta)
}

func TestMemoryStore_EmptyTextSkipped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "one"}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 1, Text: "  "}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 2, Text: "two"}))

	a, err := store.Assemble(ctx, memTestSess1)
	require.NoError(t, err)
	assert.Equal(t, "one two", a.Text)
	assert.Equal(t, 3, a.ChunkCount)
}

func TestMemoryStore_DuplicateIndexLastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "first"}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "retry"}))

	a, err := store.Assemble(ctx, memTestSess1)
	require.NoError(t, err)
	assert.Equal(t, "retry", a.Text)
	assert.Equal(t, 1, a.ChunkCount)
}

func TestMemoryStore_IngestValidation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Ingest(ctx, "", Chunk{Index: 0, Text: "x"})
	require.ErrorIs(t, err, ErrInvalidChunk)

	err = store.Ingest(ctx, memTestSess1, Chunk{Index: -1, Text: "x"})
	require.ErrorIs(t, err, ErrInvalidChunk)

	assert.False(t, store.Exists(ctx, memTestSess1))
	assert.Empty(t, store.Sessions(ctx))
}

func TestMemoryStore_AssembleEmpty(t *testing.T) {
	store := NewMemoryStore()

	a, err := store.Assemble(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrEmptySession)
	assert.Nil(t, a)
}

func TestMemoryStore_AssembleDoesNotMutate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "hi"}))
	_, err := store.Assemble(ctx, memTestSess1)
	require.NoError(t, err)
	assert.True(t, store.Exists(ctx, memTestSess1))
}

func TestMemoryStore_TakeClears(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "hi"}))
	require.NoError(t, store.Ingest(ctx, memTestSess2, Chunk{Index: 0, Text: "other"}))

	a, err := store.Take(ctx, memTestSess1)
	require.NoError(t, err)
	assert.Equal(t, "hi", a.Text)

	assert.False(t, store.Exists(ctx, memTestSess1))
	assert.True(t, store.Exists(ctx, memTestSess2), "take must not touch other sessions")

	_, err = store.Take(ctx, memTestSess1)
	require.ErrorIs(t, err, ErrEmptySession)
}

func TestMemoryStore_IngestAfterTakeStartsFresh(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "old"}))
	_, err := store.Take(ctx, memTestSess1)
	require.NoError(t, err)

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 4, Text: "new"}))
	a, err := store.Assemble(ctx, memTestSess1)
	require.NoError(t, err)
	assert.Equal(t, "new", a.Text)
	assert.Equal(t, 1, a.ChunkCount)
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "hi"}))
	require.NoError(t, store.Clear(ctx, memTestSess1))
	assert.False(t, store.Exists(ctx, memTestSess1))

	require.NoError(t, store.Clear(ctx, "never-existed"))
}

func TestMemoryStore_Lookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 3, Text: "hi", AudioHash: "abc"}))

	got, ok := store.Lookup(ctx, memTestSess1, 3)
	require.True(t, ok)
	assert.Equal(t, "abc", got.AudioHash)
	assert.False(t, got.ReceivedAt.IsZero())

	_, ok = store.Lookup(ctx, memTestSess1, 4)
	assert.False(t, ok)
	_, ok = store.Lookup(ctx, memTestSess2, 3)
	assert.False(t, ok)
}

func TestMemoryStore_Sessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess2, Chunk{Index: 0, Text: "a"}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "a"}))
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 1, Text: "b"}))

	infos := store.Sessions(ctx)
	require.Len(t, infos, 2)
	assert.Equal(t, memTestSess1, infos[0].ID)
	assert.Equal(t, 2, infos[0].ChunkCount)
	assert.Equal(t, memTestSess2, infos[1].ID)
	assert.Equal(t, 1, infos[1].ChunkCount)
}

func TestMemoryStore_EvictIdle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "old"}))

	store.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, store.Ingest(ctx, memTestSess2, Chunk{Index: 0, Text: "fresh"}))

	assert.Equal(t, 1, store.EvictIdle(ctx, 30*time.Minute))
	assert.False(t, store.Exists(ctx, memTestSess1))
	assert.True(t, store.Exists(ctx, memTestSess2))
}

func TestMemoryStore_CleanupRoutine(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, memTestSess1, Chunk{Index: 0, Text: "hi"}))
	store.StartCleanupRoutine(memTestIdleTTL, memTestCleanupEvery)
	defer func() { require.NoError(t, store.Close()) }()

	assert.Eventually(t, func() bool {
		return !store.Exists(ctx, memTestSess1)
	}, time.Second, memTestCleanupEvery)
}

func TestMemoryStore_CloseWithoutRoutine(t *testing.T) {
	assert.NoError(t, NewMemoryStore().Close())
}

func TestMemoryStore_ConcurrentIngestAndTake(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for g := range memTestGoroutines {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range memTestIterations {
				_ = store.Ingest(ctx, memTestSess1, Chunk{
					Index: g*memTestIterations + i,
					Text:  fmt.Sprintf("g%d-%d", g, i),
				})
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range memTestIterations {
			if a, err := store.Take(ctx, memTestSess1); err == nil {
				mu.Lock()
				taken += a.ChunkCount
				mu.Unlock()
			}
		}
	}()
	wg.Wait()

	remaining := 0
	if a, err := store.Take(ctx, memTestSess1); err == nil {
		remaining = a.ChunkCount
	}
	assert.Equal(t, memTestGoroutines*memTestIterations, taken+remaining,
		"every ingested chunk is either taken exactly once or still stored")
}
