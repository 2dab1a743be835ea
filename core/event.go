package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the payload carried by an Event.
type EventKind string

// Event kinds emitted by the runtime. Task kinds describe the task owning the
// loop; subtask kinds describe a tool or nested task invoked on its behalf.
const (
	KindTaskBegin       EventKind = "task.begin"
	KindStepBegin       EventKind = "task.step.begin"
	KindStepCall        EventKind = "task.step.call"
	KindStepEnd         EventKind = "task.step.end"
	KindStepRetry       EventKind = "task.step.retry"
	KindTaskEnd         EventKind = "task.end"
	KindTaskError       EventKind = "task.error"
	KindSubtaskBegin    EventKind = "subtask.begin"
	KindSubtaskEnd      EventKind = "subtask.end"
	KindSubtaskError    EventKind = "subtask.error"
	KindSubtaskProgress EventKind = "subtask.progress"
	KindContentDelta    EventKind = "content.delta"
	KindCustom          EventKind = "custom"
)

// NewID generates a unique identifier suitable for runs and nodes.
func NewID() string { return uuid.NewString() }

// Event is an immutable record of something that happened during a run. The
// envelope fields locate the event within the run: Seq is the monotonic index
// assigned when the run pipeline admits the event, NodeID/ParentID/Path are
// the position of the node it describes, and the Payload carries the
// kind-specific data.
//
// Envelope fields are applied as defaults while an event travels outward
// through the interceptor chain: a field already set by an inner layer is
// never overwritten.
type Event struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	RunID     string    `json:"runId,omitempty"`
	NodeID    string    `json:"nodeId"`
	ParentID  string    `json:"parentId,omitempty"`
	Path      []string  `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"-"`
}

// Payload is the closed union of event payloads. Concrete payload types
// implement the unexported isPayload marker.
type Payload interface {
	Kind() EventKind
	isPayload()
}

// NewEvent wraps p in an envelope stamped with the current UTC time. Position
// fields are filled in later by the interceptor chain and the run pipeline.
func NewEvent(p Payload) Event {
	return Event{Timestamp: time.Now().UTC(), Payload: p}
}

// Kind returns the payload's kind, or "" for an event without one.
func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// IsTerminal reports whether the event ends the node it references.
func (e Event) IsTerminal() bool {
	switch e.Kind() {
	case KindTaskEnd, KindTaskError, KindSubtaskEnd, KindSubtaskError:
		return true
	}
	return false
}

// ContentBearing reports whether the event commits response content to the
// consumer. Once a step has emitted a content-bearing event it must not be
// retried: text deltas would restart garbled, and a dispatched sub-task may
// already have had side effects.
func (e Event) ContentBearing() bool {
	switch e.Kind() {
	case KindContentDelta, KindSubtaskBegin:
		return true
	}
	return false
}

// WithNodeDefaults returns a copy of e with NodeID, ParentID and Path filled
// from n where unset, and Timestamp stamped if zero. An event that already
// carries a NodeID keeps its own position untouched: inner layers stay
// authoritative for events they positioned themselves.
func (e Event) WithNodeDefaults(n *Node) Event {
	if n != nil && e.NodeID == "" {
		e.NodeID = n.ID()
		if e.ParentID == "" {
			e.ParentID = n.ParentID()
		}
		if e.Path == nil {
			e.Path = n.Path()
		}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// TaskBegin marks a task entering its loop.
type TaskBegin struct {
	Name  string `json:"name"`
	Input string `json:"input,omitempty"`
}

// StepBegin marks the start of loop iteration Step (1-based).
type StepBegin struct {
	Step int `json:"step"`
}

// StepCall records one completed model invocation within a step, including
// the model identity and the token usage it reported. Usage accumulates
// additively on the task's graph node; it is never overwritten.
type StepCall struct {
	Step  int    `json:"step"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// StepEnd closes a loop iteration and carries the messages appended to memory
// during it.
type StepEnd struct {
	Step     int       `json:"step"`
	Messages []Message `json:"messages,omitempty"`
}

// StepRetry records that a failed step attempt is being retried. Attempt is
// the 1-based number of the attempt that failed.
type StepRetry struct {
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason"`
}

// TaskEnd marks a task completing normally.
type TaskEnd struct {
	Output string `json:"output,omitempty"`
}

// TaskError marks a task failing. Canceled distinguishes cooperative
// cancellation from a genuine failure; both terminate the node as failed.
type TaskError struct {
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
	Canceled bool   `json:"canceled,omitempty"`
}

// SubtaskBegin marks a tool call or nested task starting under the current
// step. SubKind is "tool" or "task".
type SubtaskBegin struct {
	Name    string `json:"name"`
	SubKind string `json:"kind"`
	Input   string `json:"input,omitempty"`
}

// SubtaskEnd marks a sub-task completing normally.
type SubtaskEnd struct {
	Output string `json:"output,omitempty"`
}

// SubtaskError marks a sub-task failing. Stack is populated when the failure
// was a recovered panic.
type SubtaskError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// SubtaskProgress carries intermediate data reported by a running sub-task.
type SubtaskProgress struct {
	Data map[string]any `json:"data,omitempty"`
}

// ContentDelta carries a fragment of the primary response text.
type ContentDelta struct {
	Text string `json:"text"`
}

// Custom carries a domain-specific event injected by a tool, an interceptor
// or an embedding application. The engine forwards it untouched.
type Custom struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

func (TaskBegin) Kind() EventKind       { return KindTaskBegin }
func (StepBegin) Kind() EventKind       { return KindStepBegin }
func (StepCall) Kind() EventKind        { return KindStepCall }
func (StepEnd) Kind() EventKind         { return KindStepEnd }
func (StepRetry) Kind() EventKind       { return KindStepRetry }
func (TaskEnd) Kind() EventKind         { return KindTaskEnd }
func (TaskError) Kind() EventKind       { return KindTaskError }
func (SubtaskBegin) Kind() EventKind    { return KindSubtaskBegin }
func (SubtaskEnd) Kind() EventKind      { return KindSubtaskEnd }
func (SubtaskError) Kind() EventKind    { return KindSubtaskError }
func (SubtaskProgress) Kind() EventKind { return KindSubtaskProgress }
func (ContentDelta) Kind() EventKind    { return KindContentDelta }
func (Custom) Kind() EventKind          { return KindCustom }

func (TaskBegin) isPayload()       {}
func (StepBegin) isPayload()       {}
func (StepCall) isPayload()        {}
func (StepEnd) isPayload()         {}
func (StepRetry) isPayload()       {}
func (TaskEnd) isPayload()         {}
func (TaskError) isPayload()       {}
func (SubtaskBegin) isPayload()    {}
func (SubtaskEnd) isPayload()      {}
func (SubtaskError) isPayload()    {}
func (SubtaskProgress) isPayload() {}
func (ContentDelta) isPayload()    {}
func (Custom) isPayload()          {}
