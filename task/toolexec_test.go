package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
	"github.com/braidworks/braid/stream"
	"github.com/braidworks/braid/tool"
)

// drainSide closes the side channel and collects everything it buffered.
func drainSide(side *stream.SideChannel[core.Event]) []core.Event {
	side.Close()
	var evs []core.Event
	for ev := range side.Out() {
		evs = append(evs, ev)
	}
	return evs
}

func emptyParams() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func TestDispatch_BoundsParallelism(t *testing.T) {
	var (
		mu     sync.Mutex
		active int
		peak   int
	)
	gauge := tool.NewFunctionTool("gauge", "Tracks concurrency", emptyParams(),
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(30 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return "ok", nil
		})

	tk := New("bounded", model.NewMockModel("m1"), func(o *Options) {
		o.Tools = []tool.Tool{gauge}
		o.MaxParallelTools = 2
	})

	calls := []core.FunctionCall{
		{ID: "1", Name: "gauge", Arguments: "{}"},
		{ID: "2", Name: "gauge", Arguments: "{}"},
		{ID: "3", Name: "gauge", Arguments: "{}"},
		{ID: "4", Name: "gauge", Arguments: "{}"},
	}

	side := stream.NewSideChannel[core.Event]()
	msgs := tk.dispatch(context.Background(), core.NewEnv("run-par", nil, nil), calls, side)
	evs := drainSide(side)

	require.Len(t, msgs, 4)
	for i, msg := range msgs {
		responses := msg.FunctionResponses()
		require.Len(t, responses, 1)
		assert.Equal(t, calls[i].ID, responses[0].ID)
		assert.Empty(t, responses[0].Error)
	}

	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)

	// Four begin/end pairs, one per call, each on its own node.
	begins := byKind(evs, core.KindSubtaskBegin)
	require.Len(t, begins, 4)
	require.Len(t, byKind(evs, core.KindSubtaskEnd), 4)
	seen := map[string]bool{}
	for _, ev := range begins {
		assert.False(t, seen[ev.NodeID])
		seen[ev.NodeID] = true
	}
}

func TestDispatch_ResponsesKeepCallOrder(t *testing.T) {
	slow := tool.NewFunctionTool("slow", "Answers late", emptyParams(),
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			time.Sleep(40 * time.Millisecond)
			return "slow", nil
		})
	fast := tool.NewFunctionTool("fast", "Answers at once", emptyParams(),
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return "fast", nil
		})

	tk := New("ordered", model.NewMockModel("m1"), func(o *Options) {
		o.Tools = []tool.Tool{slow, fast}
	})

	calls := []core.FunctionCall{
		{ID: "fc-slow", Name: "slow", Arguments: "{}"},
		{ID: "fc-fast", Name: "fast", Arguments: "{}"},
	}

	side := stream.NewSideChannel[core.Event]()
	msgs := tk.dispatch(context.Background(), core.NewEnv("run-order", nil, nil), calls, side)
	drainSide(side)

	// Responses line up with the request order even though the second call
	// finished first.
	require.Len(t, msgs, 2)
	first := msgs[0].FunctionResponses()
	second := msgs[1].FunctionResponses()
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "fc-slow", first[0].ID)
	assert.Equal(t, "slow", first[0].Response)
	assert.Equal(t, "fc-fast", second[0].ID)
	assert.Equal(t, "fast", second[0].Response)
}

func TestDispatch_UnknownToolAnswersWithError(t *testing.T) {
	tk := New("bare", model.NewMockModel("m1"))

	side := stream.NewSideChannel[core.Event]()
	msgs := tk.dispatch(context.Background(), core.NewEnv("run-unknown", nil, nil),
		[]core.FunctionCall{{ID: "fc1", Name: "ghost", Arguments: "{}"}}, side)
	evs := drainSide(side)

	require.Len(t, msgs, 1)
	responses := msgs[0].FunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "not found")

	require.Len(t, evs, 2)
	assert.Equal(t, core.KindSubtaskBegin, evs[0].Kind())
	assert.Equal(t, core.KindSubtaskError, evs[1].Kind())
}

func TestDispatch_BadArgumentsJSON(t *testing.T) {
	echo := tool.NewFunctionTool("echo", "Echoes", emptyParams(),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return args, nil
		})

	tk := New("strict", model.NewMockModel("m1"), func(o *Options) {
		o.Tools = []tool.Tool{echo}
	})

	side := stream.NewSideChannel[core.Event]()
	msgs := tk.dispatch(context.Background(), core.NewEnv("run-bad", nil, nil),
		[]core.FunctionCall{{ID: "fc1", Name: "echo", Arguments: "{not json"}}, side)
	evs := drainSide(side)

	require.Len(t, msgs, 1)
	responses := msgs[0].FunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "unmarshal args")

	require.Len(t, evs, 2)
	assert.Equal(t, core.KindSubtaskError, evs[1].Kind())
}

func TestTask_ToolPanicIsContained(t *testing.T) {
	mock := model.NewMockModel("m1")
	mock.AddToolCalls("explode", core.FunctionCall{ID: "fc1", Name: "bomb", Arguments: `{}`})
	mock.AddResponse("explode", "survived")

	bomb := tool.NewFunctionTool("bomb", "Panics on call", emptyParams(),
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			panic("kaboom")
		})

	tk := New("sapper", mock, func(o *Options) {
		o.Tools = []tool.Tool{bomb}
	})

	evs, res := runToCompletion(t, tk, "explode")
	require.NoError(t, res.Err)
	assert.Equal(t, "survived", res.Output.Text())

	errs := byKind(evs, core.KindSubtaskError)
	require.Len(t, errs, 1)
	payload := errs[0].Payload.(core.SubtaskError)
	assert.Contains(t, payload.Message, "kaboom")
	assert.NotEmpty(t, payload.Stack)
}

func TestTask_ToolProgressEvents(t *testing.T) {
	mock := model.NewMockModel("m1")
	mock.AddToolCalls("work", core.FunctionCall{ID: "fc1", Name: "worker", Arguments: `{}`})
	mock.AddResponse("work", "finished")

	worker := tool.NewFunctionTool("worker", "Reports progress", emptyParams(),
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			tc.Progress(map[string]any{"pct": 10})
			tc.Progress(map[string]any{"pct": 90})
			return "done", nil
		})

	tk := New("steady", mock, func(o *Options) {
		o.Tools = []tool.Tool{worker}
	})

	evs, res := runToCompletion(t, tk, "work")
	require.NoError(t, res.Err)

	progress := byKind(evs, core.KindSubtaskProgress)
	require.Len(t, progress, 2)

	// Progress rides on the call's node, between its begin and end markers.
	begin := byKind(evs, core.KindSubtaskBegin)[0]
	for _, ev := range progress {
		assert.Equal(t, begin.NodeID, ev.NodeID)
	}
	assert.Equal(t, 10, progress[0].Payload.(core.SubtaskProgress).Data["pct"])
	assert.Equal(t, 90, progress[1].Payload.(core.SubtaskProgress).Data["pct"])
}

func TestRenderResult(t *testing.T) {
	assert.Equal(t, "", renderResult(nil))
	assert.Equal(t, "plain", renderResult("plain"))
	assert.Equal(t, "4", renderResult(float64(4)))
	assert.Equal(t, `{"a":1}`, renderResult(map[string]any{"a": 1}))
	assert.Equal(t, "[1,2]", renderResult([]int{1, 2}))
}
