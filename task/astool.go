package task

import (
	"fmt"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/tool"
)

// AsToolOptions configure the tool wrapper around a task.
type AsToolOptions struct {
	// Description overrides the description shown to the delegating model.
	Description string
}

// AsTool exposes the task as a callable tool. The model invokes it like any
// function; the nested run executes under the calling step's node, and every
// event it produces surfaces through the caller's stream as it happens.
// Interceptors active at the call site are offered to the nested run through
// their propagation rules.
func (t *Task) AsTool(optFns ...func(o *AsToolOptions)) tool.Tool {
	opts := AsToolOptions{Description: t.description}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Description == "" {
		opts.Description = fmt.Sprintf("Delegate a request to the %s task and return its final answer.", t.name)
	}

	return &taskTool{task: t, description: opts.Description}
}

type taskTool struct {
	task        *Task
	description string
}

func (tt *taskTool) Name() string { return tt.task.Name() }

func (tt *taskTool) Description() string { return tt.description }

func (tt *taskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "The request to hand to the task.",
			},
		},
		"required": []string{"input"},
	}
}

func (tt *taskTool) subtaskKind() string { return "task" }

// Call runs the wrapped task to completion, forwarding its events into the
// caller's side channel, and returns the final answer text. A failed nested
// run surfaces as a tool error, which the dispatcher turns into an
// error-bearing response message for the delegating model.
func (tt *taskTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	input, _ := args["input"].(string)
	if input == "" {
		return nil, tool.NewToolError(tt.Name(), "missing string argument: input", "VALIDATION_ERROR")
	}

	events, resultCh := tt.task.Execute(toolCtx.Context(), toolCtx.Env(), core.NewUserMessage(input))
	for ev := range events {
		toolCtx.Emit(ev)
	}
	res := <-resultCh

	if res.Err != nil {
		return nil, res.Err
	}
	return res.Output.Text(), nil
}
