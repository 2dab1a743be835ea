package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/interceptor"
	"github.com/braidworks/braid/memory"
	"github.com/braidworks/braid/model"
	"github.com/braidworks/braid/tool"
)

// ErrMaxStepsExceeded is returned when a task loop reaches its hard step cap
// before its stop condition fires. The cap exists independently of the
// configured stop condition; hitting it is a configuration error, never a
// normal termination.
var ErrMaxStepsExceeded = errors.New("task: max steps exceeded")

// Options configure a Task instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Description is shown to models when the task is exposed as a tool.
	Description string

	// Instructions is the system prompt sent on every model call.
	Instructions string

	// InstructionsProvider resolves the system prompt at step time and wins
	// over Instructions when set. Use for prompts that depend on runtime
	// state; see TemplateInstructions.
	InstructionsProvider InstructionsProvider

	// Tools the model may call during steps.
	Tools []tool.Tool

	// Stream requests partial content deltas from the model.
	Stream bool

	// Stop decides after each completed step whether the loop is done.
	// Defaults to StopOnFinish().
	Stop StopCondition

	// MaxSteps is the hard iteration cap. Exceeding it fails the task with
	// ErrMaxStepsExceeded regardless of the stop condition.
	MaxSteps int

	// MaxParallelTools bounds concurrent tool execution within one step.
	// 0 or less means one goroutine per call.
	MaxParallelTools int

	// StepInterceptors wrap every step of this task, first one outermost.
	StepInterceptors []interceptor.StepInterceptor

	// TaskInterceptors wrap the whole task execution, first one outermost.
	TaskInterceptors []interceptor.TaskInterceptor

	// NewMemory builds the message store backing one execution. Defaults to
	// a fresh in-memory store per run.
	NewMemory func() core.Memory
}

// Task is a reusable definition of one agent loop: a model, its tools, its
// instructions and its termination rules. A Task holds no per-run state, so
// Execute may be called concurrently from multiple goroutines.
type Task struct {
	name             string
	description      string
	model            model.Model
	instructions     InstructionsProvider
	tools            map[string]tool.Tool
	stream           bool
	stop             StopCondition
	maxSteps         int
	maxParallelTools int
	interceptors     *interceptor.Set
	newMemory        func() core.Memory
}

// New constructs a Task with sensible defaults: stop once the model finishes
// without requesting tools, a hard cap of 25 steps, unbounded tool
// parallelism and a fresh in-memory message store per run.
func New(name string, m model.Model, optFns ...func(o *Options)) *Task {
	opts := Options{
		Stop:     StopOnFinish(),
		MaxSteps: 25,
		NewMemory: func() core.Memory {
			return memory.NewInMemory()
		},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	instructions := opts.InstructionsProvider
	if instructions == nil {
		instructions = staticInstructions(opts.Instructions)
	}

	t := &Task{
		name:             name,
		description:      opts.Description,
		model:            m,
		instructions:     instructions,
		tools:            make(map[string]tool.Tool),
		stream:           opts.Stream,
		stop:             opts.Stop,
		maxSteps:         opts.MaxSteps,
		maxParallelTools: opts.MaxParallelTools,
		newMemory:        opts.NewMemory,
	}

	info := t.Info()
	t.interceptors = interceptor.NewSet().
		UseStep(info, opts.StepInterceptors...).
		UseTask(info, opts.TaskInterceptors...)

	t.RegisterTools(opts.Tools...)

	return t
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Description returns the task's description.
func (t *Task) Description() string { return t.description }

// Info returns the task's identity record used in scopes and propagation
// decisions.
func (t *Task) Info() core.TaskInfo { return core.TaskInfo{Name: t.name, Kind: "task"} }

// RegisterTool adds a tool to the task's registry. Registration is wiring
// time configuration; it must not race with a running Execute.
func (t *Task) RegisterTool(tl tool.Tool) {
	t.tools[tl.Name()] = tl
}

// RegisterTools adds multiple tools to the task's registry.
func (t *Task) RegisterTools(tools ...tool.Tool) {
	for _, tl := range tools {
		t.RegisterTool(tl)
	}
}

// Execute starts one run of the task and returns its event stream plus a
// single-value result channel. The result is delivered after the event
// stream closes.
//
// The task's node is created under the node currently in scope, making
// Execute the same entry point for root runs and for nested runs dispatched
// as tool calls. Interceptors active at the call site are consulted for
// propagation; survivors wrap this task's own interceptors.
func (t *Task) Execute(ctx context.Context, env *core.Env, input core.Message) (<-chan core.Event, <-chan interceptor.TaskResult) {
	if env == nil {
		env = core.NewEnv(core.NewID(), nil, nil)
	}

	info := t.Info()

	inherited := interceptor.NewSet()
	if active, ok := interceptor.Active(ctx); ok {
		delegator, _ := core.CurrentTask(ctx)
		inherited = active.ForChild(delegator, info)
	}
	active := inherited.Extend(t.interceptors)

	parent, _ := core.CurrentNode(ctx)
	node := core.NewNode(t.name, parent)

	ctx = core.WithNode(ctx, node)
	ctx = core.WithTask(ctx, info)
	ctx = interceptor.WithActive(ctx, active)

	handler := active.ComposeTask(t.run)

	return handler(ctx, &interceptor.TaskCall{Task: info, Input: input, Env: env})
}

// run is the base TaskHandler beneath the task-level interceptor chain. It
// drives the loop in a goroutine and converts panics into a task failure so
// a broken tool or stop condition cannot take down the process silently.
func (t *Task) run(ctx context.Context, call *interceptor.TaskCall) (<-chan core.Event, <-chan interceptor.TaskResult) {
	out := make(chan core.Event, 16)
	result := make(chan interceptor.TaskResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("task panic: %v", r)
				out <- core.NewEvent(core.TaskError{Message: err.Error(), Stack: string(debug.Stack())})
				close(out)
				result <- interceptor.TaskResult{Err: err}
			}
		}()

		res := t.loop(ctx, call, out)
		close(out)
		result <- res
	}()

	return out, result
}

// loop runs the task state machine: begin, seed memory, then one step per
// iteration until the stop condition fires, the step cap trips, the context
// is canceled or a step fails.
func (t *Task) loop(ctx context.Context, call *interceptor.TaskCall, out chan<- core.Event) interceptor.TaskResult {
	env := call.Env

	env.LogDebug("task.run.start", "task", t.name, "run", env.RunID)

	out <- core.NewEvent(core.TaskBegin{Name: t.name, Input: call.Input.Text()})

	mem := t.newMemory()
	if err := mem.Store(ctx, call.Input); err != nil {
		return t.fail(env, out, fmt.Errorf("seed input: %w", err))
	}
	// Move the checkpoint past the seed so the first step-end carries only
	// what the step itself appended.
	if _, err := mem.Appended(ctx); err != nil {
		return t.fail(env, out, fmt.Errorf("seed input: %w", err))
	}

	active, _ := interceptor.Active(ctx)
	step := active.ComposeStep(t.step)

	var output core.Message

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return t.fail(env, out, err)
		}
		if n > t.maxSteps {
			return t.fail(env, out, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, t.maxSteps))
		}

		out <- core.NewEvent(core.StepBegin{Step: n})

		history, err := mem.Read(ctx)
		if err != nil {
			return t.fail(env, out, fmt.Errorf("read memory: %w", err))
		}
		instructions, err := t.instructions.Instructions(ctx)
		if err != nil {
			return t.fail(env, out, fmt.Errorf("resolve instructions: %w", err))
		}

		sc := &interceptor.Call{
			Task:    call.Task,
			Step:    n,
			Attempt: 1,
			Model:   t.model,
			Request: model.Request{
				Instructions: instructions,
				Messages:     history,
				Tools:        t.toolDefinitions(),
				Stream:       t.stream,
			},
			Env: env,
		}

		events, resultCh := step(ctx, sc)
		for ev := range events {
			out <- ev
		}
		res := <-resultCh

		if res.Err != nil {
			return t.fail(env, out, fmt.Errorf("step %d: %w", n, res.Err))
		}

		for _, msg := range res.Messages {
			if err := mem.Store(ctx, msg); err != nil {
				return t.fail(env, out, fmt.Errorf("store step messages: %w", err))
			}
		}
		appended, err := mem.Appended(ctx)
		if err != nil {
			return t.fail(env, out, fmt.Errorf("checkpoint: %w", err))
		}
		out <- core.NewEvent(core.StepEnd{Step: n, Messages: appended})

		env.LogDebug(
			"task.step.complete",
			"task", t.name,
			"step", n,
			"finish", res.FinishReason,
			"messages", len(appended),
		)

		state := StopState{
			Step:         n,
			FinishReason: res.FinishReason,
			Messages:     append(history, appended...),
		}
		if t.stop(state) {
			output = finalMessage(res.Messages)
			break
		}
	}

	out <- core.NewEvent(core.TaskEnd{Output: output.Text()})

	env.LogInfo("task.run.complete", "task", t.name, "run", env.RunID)

	return interceptor.TaskResult{Output: output}
}

// fail emits the task's terminal error event and builds the failed result.
// Cancellation is flagged on the event so consumers can tell an aborted run
// from a broken one.
func (t *Task) fail(env *core.Env, out chan<- core.Event, err error) interceptor.TaskResult {
	canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	out <- core.NewEvent(core.TaskError{Message: err.Error(), Canceled: canceled})

	env.LogError("task.run.error", "task", t.name, "run", env.RunID, "error", err.Error(), "canceled", canceled)

	return interceptor.TaskResult{Err: err}
}

// toolDefinitions renders the registry as model-facing declarations, sorted
// by name so requests are deterministic.
func (t *Task) toolDefinitions() []model.ToolDefinition {
	if len(t.tools) == 0 {
		return nil
	}

	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		tl := t.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        tl.Name(),
				Description: tl.Description(),
				Parameters:  tl.Parameters(),
			},
		})
	}
	return defs
}

// finalMessage picks the task's output from the closing step's messages: the
// latest assistant message with text, falling back to the last message.
func finalMessage(msgs []core.Message) core.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleAssistant && msgs[i].Text() != "" {
			return msgs[i]
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1]
	}
	return core.Message{}
}
