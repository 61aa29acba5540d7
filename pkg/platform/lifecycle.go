package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// hook pairs a component's start with the stop that undoes it. Either may
// be nil.
type hook struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// Lifecycle manages the startup and shutdown of platform components.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []hook
	started bool
	stopped bool
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Append registers a named start/stop pair. Hooks start in registration
// order and stop in reverse.
func (l *Lifecycle) Append(name string, start, stop func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook{name: name, start: start, stop: stop})
}

// OnStop registers a stop-only hook for a resource that needs no start.
func (l *Lifecycle) OnStop(name string, stop func(context.Context) error) {
	l.Append(name, nil, stop)
}

// RegisterCloser registers c to be closed on shutdown.
func (l *Lifecycle) RegisterCloser(name string, c interface{ Close() error }) {
	l.OnStop(name, func(context.Context) error { return c.Close() })
}

// Start runs every start hook. If one fails, everything already started
// and every stop-only resource is stopped, and the error is returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started || l.stopped {
		return errors.New("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.start == nil {
			continue
		}
		if err := h.start(ctx); err != nil {
			_ = l.stopLocked(ctx, func(j int, hk hook) bool { return j < i || hk.start == nil })
			return fmt.Errorf("starting %s: %w", h.name, err)
		}
	}
	l.started = true
	return nil
}

// Stop runs stop hooks in reverse order and joins their errors. A
// lifecycle that was never started still releases its stop-only
// resources. Stop is idempotent.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return nil
	}
	started := l.started
	return l.stopLocked(ctx, func(_ int, hk hook) bool { return started || hk.start == nil })
}

func (l *Lifecycle) stopLocked(ctx context.Context, include func(int, hook) bool) error {
	var errs []error
	for i := len(l.hooks) - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.stop == nil || !include(i, h) {
			continue
		}
		if err := h.stop(ctx); err != nil {
			slog.Warn("lifecycle stop failed", "component", h.name, "error", err)
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
		}
	}
	l.started = false
	l.stopped = true
	return errors.Join(errs...)
}

// IsStarted returns whether the lifecycle is running.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
