package audit

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1000

// MemoryLogger keeps the most recent events in a bounded in-memory buffer.
// It is used when no database is configured.
type MemoryLogger struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewMemoryLogger creates a MemoryLogger holding at most capacity events.
func NewMemoryLogger(capacity int) *MemoryLogger {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryLogger{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Log records an audit event, dropping the oldest when full.
func (l *MemoryLogger) Log(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == l.capacity {
		copy(l.events, l.events[1:])
		l.events = l.events[:len(l.events)-1]
	}
	l.events = append(l.events, event)
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryLogger) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	skipped := 0
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Close does nothing.
func (*MemoryLogger) Close() error { return nil }

// Verify interface compliance.
var _ Logger = (*MemoryLogger)(nil)
