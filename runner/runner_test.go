package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/graph"
	"github.com/braidworks/braid/interceptor"
	"github.com/braidworks/braid/internal/testutil"
	"github.com/braidworks/braid/model"
	"github.com/braidworks/braid/runner"
	"github.com/braidworks/braid/task"
	"github.com/braidworks/braid/telemetry"
	"github.com/braidworks/braid/tool"
)

func greeterTask() *task.Task {
	m := model.NewMockModel("mock-1")
	m.AddResponse("hello", "hi there")
	return task.New("greeter", m)
}

func collect(ch <-chan core.Event) []core.Event {
	var out []core.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestRunner_RunToCompletion(t *testing.T) {
	r := runner.New()

	run, err := r.Start(context.Background(), greeterTask(), core.NewUserMessage("hello"))
	require.NoError(t, err)

	evs := collect(run.Events())

	out, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Text())

	require.NotEmpty(t, evs)
	assert.Equal(t, core.KindTaskBegin, evs[0].Kind())
	assert.Equal(t, core.KindTaskEnd, evs[len(evs)-1].Kind())
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, run.ID(), ev.RunID)
	}

	root, ok := run.Graph()
	require.True(t, ok)
	assert.Equal(t, graph.StatusCompleted, root.Status)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "greeter", root.Children[0].Name)

	// Finished runs leave the active registry.
	assert.Eventually(t, func() bool {
		_, active := r.Get(run.ID())
		return !active
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_PersistsEvents(t *testing.T) {
	log := eventlog.NewInMemory()
	r := runner.New(func(o *runner.Options) { o.Log = log })
	ctx := context.Background()

	run, err := r.Start(ctx, greeterTask(), core.NewUserMessage("hello"))
	require.NoError(t, err)

	evs := collect(run.Events())
	_, err = run.Wait(ctx)
	require.NoError(t, err)

	stored, err := log.Read(ctx, run.ID())
	require.NoError(t, err)
	require.Len(t, stored, len(evs))
	for i, ev := range stored {
		assert.Equal(t, evs[i].ID, ev.ID)
		assert.Equal(t, evs[i].Seq, ev.Seq)
	}

	// The stored stream replays into the same graph shape.
	g, err := eventlog.Replay(ctx, log, run.ID())
	require.NoError(t, err)
	root, ok := g.Root()
	require.True(t, ok)
	assert.Equal(t, graph.StatusCompleted, root.Status)
}

func TestRunner_SubscribeReplaysFinishedRun(t *testing.T) {
	r := runner.New()

	run, err := r.Start(context.Background(), greeterTask(), core.NewUserMessage("hello"))
	require.NoError(t, err)

	live := collect(run.Events())
	_, err = run.Wait(context.Background())
	require.NoError(t, err)

	replayed := collect(run.Subscribe())
	require.Len(t, replayed, len(live))
	for i, ev := range replayed {
		assert.Equal(t, live[i].ID, ev.ID)
	}
}

// blockingTarget emits one event and then holds the run open until its
// context is canceled.
type blockingTarget struct{}

func (blockingTarget) Name() string { return "blocker" }

func (blockingTarget) Execute(ctx context.Context, _ *core.Env, _ core.Message) (<-chan core.Event, <-chan interceptor.TaskResult) {
	out := make(chan core.Event, 4)
	res := make(chan interceptor.TaskResult, 1)
	go func() {
		out <- testutil.Ev("T", "", core.TaskBegin{Name: "blocker"})
		<-ctx.Done()
		out <- testutil.Ev("T", "", core.TaskError{Message: ctx.Err().Error(), Canceled: true})
		close(out)
		res <- interceptor.TaskResult{Err: ctx.Err()}
	}()
	return out, res
}

func TestRunner_CancelActiveRun(t *testing.T) {
	r := runner.New()

	run, err := r.Start(context.Background(), blockingTarget{}, core.NewUserMessage("x"))
	require.NoError(t, err)

	first := <-run.Events()
	assert.Equal(t, core.KindTaskBegin, first.Kind())

	require.NoError(t, r.Cancel(run.ID()))

	evs := collect(run.Events())
	require.NotEmpty(t, evs)
	assert.Equal(t, core.KindTaskError, evs[len(evs)-1].Kind())

	_, err = run.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	root, ok := run.Graph()
	require.True(t, ok)
	assert.Equal(t, graph.StatusFailed, root.Status)
}

func TestRunner_CancelUnknownRun(t *testing.T) {
	r := runner.New()

	err := r.Cancel("nope")

	assert.ErrorIs(t, err, runner.ErrNotFound)
}

// corruptTarget emits a stream whose second event contradicts the first
// about the node's kind.
type corruptTarget struct{}

func (corruptTarget) Name() string { return "corrupt" }

func (corruptTarget) Execute(context.Context, *core.Env, core.Message) (<-chan core.Event, <-chan interceptor.TaskResult) {
	out := make(chan core.Event, 4)
	res := make(chan interceptor.TaskResult, 1)
	go func() {
		out <- testutil.Ev("T", "", core.TaskBegin{Name: "corrupt"})
		out <- testutil.Ev("T", "", core.SubtaskBegin{Name: "corrupt", SubKind: "tool"})
		close(out)
		res <- interceptor.TaskResult{Output: core.NewAssistantMessage("ok")}
	}()
	return out, res
}

func TestRunner_ConsistencyErrorFailsRun(t *testing.T) {
	r := runner.New()

	run, err := r.Start(context.Background(), corruptTarget{}, core.NewUserMessage("x"))
	require.NoError(t, err)

	// Only the event admitted before the corruption reaches subscribers.
	evs := collect(run.Events())
	require.Len(t, evs, 1)
	assert.Equal(t, core.KindTaskBegin, evs[0].Kind())

	_, err = run.Wait(context.Background())
	require.Error(t, err)
	var cerr *graph.ConsistencyError
	assert.ErrorAs(t, err, &cerr)
}

func TestRunner_NestedTaskRun(t *testing.T) {
	innerMock := model.NewMockModel("inner-m")
	innerMock.AddResponse("look up the answer", "the answer is 42")
	research := task.New("researcher", innerMock, func(o *task.Options) {
		o.Description = "Looks things up."
	})

	outerMock := model.NewMockModel("outer-m")
	outerMock.AddToolCalls("question", core.FunctionCall{ID: "fc1", Name: "researcher", Arguments: `{"input":"look up the answer"}`})
	outerMock.AddResponse("question", "It is 42.")
	assistant := task.New("assistant", outerMock, func(o *task.Options) {
		o.Tools = []tool.Tool{research.AsTool()}
	})

	r := runner.New(func(o *runner.Options) { o.Metrics = telemetry.New() })

	run, err := r.Start(context.Background(), assistant, core.NewUserMessage("question"))
	require.NoError(t, err)

	evs := collect(run.Events())
	out, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "It is 42.", out.Text())

	// Sequence numbers stay strictly increasing across the interleaved
	// nested stream.
	for i := 1; i < len(evs); i++ {
		assert.Equal(t, evs[i-1].Seq+1, evs[i].Seq)
	}

	root, ok := run.Graph()
	require.True(t, ok)
	require.Len(t, root.Children, 1)
	outer := root.Children[0]
	assert.Equal(t, "assistant", outer.Name)
	require.Len(t, outer.Children, 1)
	dispatch := outer.Children[0]
	assert.Equal(t, graph.KindSubtask, dispatch.Kind)
	require.Len(t, dispatch.Children, 1)
	assert.Equal(t, "researcher", dispatch.Children[0].Name)
	assert.Equal(t, graph.StatusCompleted, dispatch.Children[0].Status)
}
