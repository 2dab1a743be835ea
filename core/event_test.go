package core

import (
	"testing"
	"time"
)

// Event envelope & helper method tests
func TestEvent_ConstructorAndKind(t *testing.T) {
	e := NewEvent(TaskBegin{Name: "research", Input: "tell me about go"})
	if e.Kind() != KindTaskBegin {
		t.Fatalf("expected kind %q, got %q", KindTaskBegin, e.Kind())
	}
	if e.Timestamp.IsZero() {
		t.Fatal("NewEvent should stamp a timestamp")
	}
	if e.NodeID != "" || e.Seq != 0 {
		t.Fatalf("position fields must start unset: %+v", e)
	}

	var empty Event
	if empty.Kind() != "" {
		t.Fatalf("event without payload should report empty kind, got %q", empty.Kind())
	}
}

func TestEvent_IsTerminal(t *testing.T) {
	terminal := []Payload{TaskEnd{}, TaskError{Message: "boom"}, SubtaskEnd{}, SubtaskError{Message: "boom"}}
	for _, p := range terminal {
		if !NewEvent(p).IsTerminal() {
			t.Errorf("%s should be terminal", p.Kind())
		}
	}
	open := []Payload{TaskBegin{}, StepBegin{Step: 1}, StepRetry{Attempt: 1}, SubtaskBegin{}, SubtaskProgress{}, ContentDelta{Text: "x"}, Custom{Name: "x"}}
	for _, p := range open {
		if NewEvent(p).IsTerminal() {
			t.Errorf("%s should not be terminal", p.Kind())
		}
	}
}

func TestEvent_ContentBearing(t *testing.T) {
	if !NewEvent(ContentDelta{Text: "hi"}).ContentBearing() {
		t.Error("content.delta commits content")
	}
	if !NewEvent(SubtaskBegin{Name: "search", SubKind: "tool"}).ContentBearing() {
		t.Error("subtask.begin commits content: the sub-task may have side effects")
	}
	for _, p := range []Payload{TaskBegin{}, StepBegin{}, StepEnd{}, SubtaskProgress{}, Custom{}} {
		if NewEvent(p).ContentBearing() {
			t.Errorf("%s should not be content-bearing", p.Kind())
		}
	}
}

func TestEvent_WithNodeDefaults(t *testing.T) {
	root := NewNode("root", nil)
	child := NewNode("worker", root)

	e := NewEvent(ContentDelta{Text: "hi"}).WithNodeDefaults(child)
	if e.NodeID != child.ID() || e.ParentID != root.ID() {
		t.Fatalf("defaults not applied: %+v", e)
	}
	if len(e.Path) != 2 || e.Path[0] != "root" || e.Path[1] != "worker" {
		t.Fatalf("unexpected path: %v", e.Path)
	}

	// An event positioned by an inner layer keeps its own position.
	inner := NewEvent(SubtaskProgress{}).WithNodeDefaults(child)
	restamped := inner.WithNodeDefaults(root)
	if restamped.NodeID != child.ID() || restamped.ParentID != root.ID() {
		t.Fatalf("outer layer overwrote inner position: %+v", restamped)
	}

	// A zero timestamp is stamped, an existing one preserved.
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fixed := Event{Timestamp: ts, Payload: Custom{Name: "x"}}.WithNodeDefaults(root)
	if !fixed.Timestamp.Equal(ts) {
		t.Fatalf("timestamp overwritten: %v", fixed.Timestamp)
	}
	blank := Event{Payload: Custom{Name: "x"}}.WithNodeDefaults(nil)
	if blank.Timestamp.IsZero() {
		t.Fatal("zero timestamp should be stamped")
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == b {
		t.Error("Expected unique IDs")
	}
}

// IO Parts discrimination tests
func TestParts_DiscriminatedUnion(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"k": "v"}},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "f"}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "f"}},
	}
	for _, p := range parts {
		switch pt := p.(type) {
		case TextPart, DataPart, FunctionCallPart, FunctionResponsePart:
		default:
			t.Fatalf("Unexpected part type: %T (%v)", pt, pt)
		}
	}
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	u = u.Add(Usage{InputTokens: 7, OutputTokens: 5, TotalTokens: 12})
	if u.InputTokens != 17 || u.OutputTokens != 10 || u.TotalTokens != 27 {
		t.Fatalf("usage sums wrong: %+v", u)
	}
	if u.IsZero() {
		t.Error("non-zero usage reported zero")
	}
	if !(Usage{}).IsZero() {
		t.Error("zero usage not detected")
	}
}
