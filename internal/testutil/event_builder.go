package testutil

import (
	"fmt"
	"time"

	"github.com/braidworks/braid/core"
)

// EventBuilder provides a fluent helper for constructing positioned events
// in tests.
// Example:
//
//	ev := NewEventBuilder().Node("n1").Payload(core.TaskBegin{Name: "root"}).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	id       string
	seq      int64
	runID    string
	nodeID   string
	parentID string
	path     []string
	ts       time.Time
	payload  core.Payload
}

// NewEventBuilder creates a builder with an empty envelope.
func NewEventBuilder() *EventBuilder { return &EventBuilder{} }

// ID overrides the event id. Use where idempotency matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Seq sets the monotonic index (chainable).
func (b *EventBuilder) Seq(n int64) *EventBuilder { b.seq = n; return b }

// Run sets the run id (chainable).
func (b *EventBuilder) Run(id string) *EventBuilder { b.runID = id; return b }

// Node sets the node id the event describes (chainable).
func (b *EventBuilder) Node(id string) *EventBuilder { b.nodeID = id; return b }

// Parent sets the parent node id (chainable).
func (b *EventBuilder) Parent(id string) *EventBuilder { b.parentID = id; return b }

// Path sets the node path (chainable).
func (b *EventBuilder) Path(names ...string) *EventBuilder { b.path = names; return b }

// At pins the timestamp (chainable). Defaults to time.Now in UTC.
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.ts = ts; return b }

// Payload sets the event payload (chainable).
func (b *EventBuilder) Payload(p core.Payload) *EventBuilder { b.payload = p; return b }

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ts := b.ts
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return core.Event{
		ID:        b.id,
		Seq:       b.seq,
		RunID:     b.runID,
		NodeID:    b.nodeID,
		ParentID:  b.parentID,
		Path:      b.path,
		Timestamp: ts,
		Payload:   b.payload,
	}
}

// Ev is shorthand for a positioned event with just a node and payload.
func Ev(nodeID, parentID string, p core.Payload) core.Event {
	return NewEventBuilder().Node(nodeID).Parent(parentID).Payload(p).Build()
}

// Numbered assigns deterministic ids ("evt-1", ...) and sequence numbers to
// events that lack them, in slice order.
func Numbered(events ...core.Event) []core.Event {
	out := make([]core.Event, len(events))
	for i, ev := range events {
		if ev.ID == "" {
			ev.ID = fmt.Sprintf("evt-%d", i+1)
		}
		if ev.Seq == 0 {
			ev.Seq = int64(i + 1)
		}
		out[i] = ev
	}
	return out
}
