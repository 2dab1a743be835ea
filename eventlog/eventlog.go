// Package eventlog persists run event streams for replay. A Log stores every
// event a run emits, in sequence order; Replay folds a stored stream back
// into the call graph it described. The run pipeline appends as it goes, so
// a crash loses at most the in-flight event.
package eventlog

import (
	"context"
	"errors"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/graph"
)

// ErrNotFound is returned when a run has no stored events.
var ErrNotFound = errors.New("eventlog: run not found")

// Log stores and retrieves run event streams. Append must be safe for
// concurrent use; implementations treat re-appending an event id already
// stored as a no-op so pipeline retries stay idempotent.
type Log interface {
	// Append stores one event under its RunID.
	Append(ctx context.Context, ev core.Event) error

	// Read returns a run's events ordered by Seq. It returns ErrNotFound
	// when the run has no events.
	Read(ctx context.Context, runID string) ([]core.Event, error)

	// Runs lists stored run ids, oldest first.
	Runs(ctx context.Context) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// Replay reads a run's stored events and rebuilds its call graph.
func Replay(ctx context.Context, log Log, runID string) (*graph.Graph, error) {
	events, err := log.Read(ctx, runID)
	if err != nil {
		return nil, err
	}
	return graph.FromEvents(events)
}
