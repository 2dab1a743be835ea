package eventlog

import (
	"context"
	"sync"

	"github.com/braidworks/braid/core"
)

// InMemory is a Log backed by process memory. It is the default for embedded
// use and for tests; events vanish with the process.
type InMemory struct {
	mu    sync.RWMutex
	runs  map[string][]core.Event
	seen  map[string]struct{}
	order []string
}

// NewInMemory creates an empty in-memory event log.
func NewInMemory() *InMemory {
	return &InMemory{
		runs: make(map[string][]core.Event),
		seen: make(map[string]struct{}),
	}
}

// Append implements Log.
func (l *InMemory) Append(_ context.Context, ev core.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.ID != "" {
		if _, dup := l.seen[ev.ID]; dup {
			return nil
		}
		l.seen[ev.ID] = struct{}{}
	}
	if _, ok := l.runs[ev.RunID]; !ok {
		l.order = append(l.order, ev.RunID)
	}
	l.runs[ev.RunID] = append(l.runs[ev.RunID], ev)
	return nil
}

// Read implements Log.
func (l *InMemory) Read(_ context.Context, runID string) ([]core.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events, ok := l.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]core.Event, len(events))
	copy(out, events)
	return out, nil
}

// Runs implements Log.
func (l *InMemory) Runs(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out, nil
}

// Close implements Log. It is a no-op for the in-memory log.
func (l *InMemory) Close() error { return nil }
