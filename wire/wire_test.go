package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/braidworks/braid/core"
)

func TestMarshal_SelfDescribing(t *testing.T) {
	ev := core.Event{
		Seq:       7,
		ID:        "ev-7",
		RunID:     "run-1",
		NodeID:    "n1",
		ParentID:  "n0",
		Path:      []string{"assistant", "search"},
		Timestamp: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Payload:   core.SubtaskBegin{Name: "search", SubKind: "tool", Input: `{"q":"go"}`},
	}

	b, err := Marshal(ev)
	require.NoError(t, err)

	// The document is queryable without decoding.
	assert.Equal(t, "subtask.begin", gjson.GetBytes(b, "type").Str)
	assert.Equal(t, "search", gjson.GetBytes(b, "payload.name").Str)
	assert.Equal(t, "tool", gjson.GetBytes(b, "payload.kind").Str)
	assert.Equal(t, int64(7), gjson.GetBytes(b, "seq").Int())
	assert.Equal(t, "run-1", gjson.GetBytes(b, "runId").Str)
	assert.Equal(t, "n0", gjson.GetBytes(b, "parentId").Str)
}

func TestRoundTrip(t *testing.T) {
	base := core.Event{
		Seq:       3,
		ID:        "ev-3",
		RunID:     "run-9",
		NodeID:    "n2",
		ParentID:  "n1",
		Path:      []string{"a", "b"},
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	payloads := []core.Payload{
		core.TaskBegin{Name: "assistant", Input: "hello"},
		core.StepCall{Step: 2, Model: "gpt-x", Usage: core.Usage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14}},
		core.StepEnd{Step: 2, Messages: []core.Message{
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "fc1", Name: "sum", Arguments: `{"a":1}`}},
			}},
			core.NewToolMessage("fc1", "sum", "3", nil),
		}},
		core.TaskError{Message: "boom", Canceled: true},
		core.SubtaskProgress{Data: map[string]any{"pct": float64(42)}},
		core.ContentDelta{Text: "hel"},
		core.Custom{Name: "audit", Data: map[string]any{"actor": "ci"}},
	}

	for _, p := range payloads {
		ev := base
		ev.Payload = p

		b, err := Marshal(ev)
		require.NoError(t, err, "kind %s", p.Kind())

		got, err := Unmarshal(b)
		require.NoError(t, err, "kind %s", p.Kind())

		assert.Equal(t, ev.Seq, got.Seq)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ev.RunID, got.RunID)
		assert.Equal(t, ev.NodeID, got.NodeID)
		assert.Equal(t, ev.ParentID, got.ParentID)
		assert.Equal(t, ev.Path, got.Path)
		assert.True(t, ev.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, p, got.Payload, "kind %s", p.Kind())
	}
}

func TestUnmarshal_Rejects(t *testing.T) {
	_, err := Marshal(core.Event{})
	require.Error(t, err) // events without payloads never travel

	_, err = Unmarshal([]byte(`{"seq":1}`))
	assert.ErrorContains(t, err, "missing event type")

	_, err = Unmarshal([]byte(`{"type":"task.begin","seq":1}`))
	assert.ErrorContains(t, err, "missing payload")

	_, err = Unmarshal([]byte(`{"type":"bogus","payload":{}}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = Unmarshal([]byte(`not json`))
	require.Error(t, err)
}

func TestKindPeek(t *testing.T) {
	b, err := Marshal(core.NewEvent(core.ContentDelta{Text: "x"}))
	require.NoError(t, err)

	assert.Equal(t, core.KindContentDelta, Kind(b))
	assert.Equal(t, core.EventKind(""), Kind([]byte(`{}`)))
}
