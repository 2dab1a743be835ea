package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/stream"
)

// subtaskKinder lets a tool declare what flavor of sub-task it dispatches as.
// Wrapped tasks report "task"; everything else defaults to "tool".
type subtaskKinder interface {
	subtaskKind() string
}

// dispatch runs the step's function calls, bounded by maxParallelTools, and
// returns exactly one response message per call in the original call order so
// the model sees a deterministic pairing. Lifecycle events stream through the
// side channel in completion order as the calls progress.
//
// A tool failure never fails the step: it becomes an error-bearing response
// message the model can react to, alongside a subtask.error event.
func (t *Task) dispatch(ctx context.Context, env *core.Env, calls []core.FunctionCall, side *stream.SideChannel[core.Event]) []core.Message {
	n := len(calls)
	responses := make([]core.Message, n)

	maxPar := t.maxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		// Calls not yet launched when the run is canceled still get their
		// paired response, but no node events: they were never dispatched.
		if ctx.Err() != nil {
			responses[i] = core.NewToolMessage(calls[i].ID, calls[i].Name, nil, ctx.Err())
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			responses[idx] = t.callTool(ctx, env, fc, side)
		}(i, calls[i])
	}
	wg.Wait()

	env.LogDebug(
		"task.tools.batch.complete",
		"task", t.name,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return responses
}

// callTool executes one function call under a fresh execution node: begin
// event, the tool itself (panic safe), then exactly one terminal event. The
// returned message pairs the call id with the result or the error.
func (t *Task) callTool(ctx context.Context, env *core.Env, fc core.FunctionCall, side *stream.SideChannel[core.Event]) core.Message {
	parent, _ := core.CurrentNode(ctx)
	node := core.NewNode(fc.Name, parent)
	callCtx := core.WithNode(ctx, node)

	emit := func(p core.Payload) {
		side.Push(core.NewEvent(p).WithNodeDefaults(node))
	}

	impl, registered := t.tools[fc.Name]

	emit(core.SubtaskBegin{Name: fc.Name, SubKind: dispatchKind(impl), Input: fc.Arguments})

	if !registered {
		err := fmt.Errorf("tool %s not found", fc.Name)
		emit(core.SubtaskError{Message: err.Error()})
		return core.NewToolMessage(fc.ID, fc.Name, nil, err)
	}

	argMap := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &argMap); err != nil {
			err = fmt.Errorf("unmarshal args: %w", err)
			emit(core.SubtaskError{Message: err.Error()})
			return core.NewToolMessage(fc.ID, fc.Name, nil, err)
		}
	}

	toolCtx := core.NewToolContext(callCtx, env, node, fc.ID, side.Push)

	start := time.Now()
	var (
		result     any
		err        error
		panicStack string
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				panicStack = string(debug.Stack())
				env.LogError("task.tool.panic", "task", t.name, "tool", fc.Name, "recover", r)
			}
		}()
		result, err = impl.Call(toolCtx, argMap)
	}()

	env.LogInfo(
		"task.tool.executed",
		"task", t.name,
		"tool", fc.Name,
		"fc_id", fc.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		emit(core.SubtaskError{Message: err.Error(), Stack: panicStack})
		return core.NewToolMessage(fc.ID, fc.Name, nil, err)
	}

	emit(core.SubtaskEnd{Output: renderResult(result)})
	return core.NewToolMessage(fc.ID, fc.Name, result, nil)
}

func dispatchKind(impl any) string {
	if k, ok := impl.(subtaskKinder); ok {
		return k.subtaskKind()
	}
	return "tool"
}

// renderResult stringifies a tool result for the terminal event. Strings pass
// through; everything else is JSON-encoded.
func renderResult(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
