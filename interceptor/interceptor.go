package interceptor

import (
	"context"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
)

// Call carries the mutable state of one step through the chain. The pointer
// is stable across retry attempts: an interceptor that swaps the model or
// bumps Attempt is seen by every layer below it on the next invocation.
type Call struct {
	Task    core.TaskInfo
	Step    int // 1-based loop iteration
	Attempt int // 1-based attempt within the step, maintained by retrying layers
	Model   model.Model
	Request model.Request
	Env     *core.Env
}

// StepResult is the completion record of one step. Err is set when the step
// failed; the remaining fields describe a successful step.
type StepResult struct {
	FinishReason string         // model's finish indication for the step
	Messages     []core.Message // messages produced during the step, in order
	Usage        core.Usage
	Err          error
}

// StepHandler executes one step. It returns the step's event stream and a
// single-value channel that delivers the result. The contract every handler
// and interceptor must honor: exactly one result is sent, it is sent after
// the event stream closes, and the result channel is buffered so the send
// never blocks. Consumers drain events first, then receive the result.
type StepHandler func(ctx context.Context, call *Call) (<-chan core.Event, <-chan StepResult)

// StepInterceptor wraps step execution with a cross-cutting behavior.
type StepInterceptor interface {
	Name() string
	InterceptStep(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult)
}

// TaskCall describes a whole task execution to task-level interceptors.
type TaskCall struct {
	Task  core.TaskInfo
	Input core.Message
	Env   *core.Env
}

// TaskResult is the completion record of a whole task.
type TaskResult struct {
	Output core.Message
	Err    error
}

// TaskHandler executes a whole task, from its begin event to its terminal
// event. Same stream/result contract as StepHandler.
type TaskHandler func(ctx context.Context, call *TaskCall) (<-chan core.Event, <-chan TaskResult)

// TaskInterceptor wraps an entire task execution.
type TaskInterceptor interface {
	Name() string
	InterceptTask(ctx context.Context, call *TaskCall, next TaskHandler) (<-chan core.Event, <-chan TaskResult)
}

// ComposeStep builds a single handler from interceptors wrapped around base,
// first interceptor outermost. Each layer's output stream passes through
// Stamp, so an event injected anywhere in the chain carries full position
// metadata when it leaves the outermost layer.
func ComposeStep(interceptors []StepInterceptor, base StepHandler) StepHandler {
	h := stampStep(base)
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic, inner := interceptors[i], h
		h = stampStep(func(ctx context.Context, call *Call) (<-chan core.Event, <-chan StepResult) {
			return ic.InterceptStep(ctx, call, inner)
		})
	}
	return h
}

// ComposeTask is ComposeStep for task-level interceptors.
func ComposeTask(interceptors []TaskInterceptor, base TaskHandler) TaskHandler {
	h := stampTask(base)
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic, inner := interceptors[i], h
		h = stampTask(func(ctx context.Context, call *TaskCall) (<-chan core.Event, <-chan TaskResult) {
			return ic.InterceptTask(ctx, call, inner)
		})
	}
	return h
}

func stampStep(h StepHandler) StepHandler {
	return func(ctx context.Context, call *Call) (<-chan core.Event, <-chan StepResult) {
		events, result := h(ctx, call)
		return Stamp(ctx, events), result
	}
}

func stampTask(h TaskHandler) TaskHandler {
	return func(ctx context.Context, call *TaskCall) (<-chan core.Event, <-chan TaskResult) {
		events, result := h(ctx, call)
		return Stamp(ctx, events), result
	}
}

// Stamp forwards in, applying the current node's position as defaults to
// every event that lacks one. Without an active node scope the stream is
// returned untouched.
func Stamp(ctx context.Context, in <-chan core.Event) <-chan core.Event {
	node, ok := core.CurrentNode(ctx)
	if !ok {
		return in
	}
	out := make(chan core.Event)
	go func() {
		defer close(out)
		for ev := range in {
			out <- ev.WithNodeDefaults(node)
		}
	}()
	return out
}

// StepFunc adapts a function to the StepInterceptor interface.
type StepFunc struct {
	name string
	fn   func(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult)
}

// NewStepFunc names fn so it can participate in a chain.
func NewStepFunc(name string, fn func(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult)) *StepFunc {
	return &StepFunc{name: name, fn: fn}
}

// Name implements StepInterceptor.
func (s *StepFunc) Name() string { return s.name }

// InterceptStep implements StepInterceptor.
func (s *StepFunc) InterceptStep(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult) {
	return s.fn(ctx, call, next)
}

// TaskFunc adapts a function to the TaskInterceptor interface.
type TaskFunc struct {
	name string
	fn   func(ctx context.Context, call *TaskCall, next TaskHandler) (<-chan core.Event, <-chan TaskResult)
}

// NewTaskFunc names fn so it can participate in a chain.
func NewTaskFunc(name string, fn func(ctx context.Context, call *TaskCall, next TaskHandler) (<-chan core.Event, <-chan TaskResult)) *TaskFunc {
	return &TaskFunc{name: name, fn: fn}
}

// Name implements TaskInterceptor.
func (t *TaskFunc) Name() string { return t.name }

// InterceptTask implements TaskInterceptor.
func (t *TaskFunc) InterceptTask(ctx context.Context, call *TaskCall, next TaskHandler) (<-chan core.Event, <-chan TaskResult) {
	return t.fn(ctx, call, next)
}
