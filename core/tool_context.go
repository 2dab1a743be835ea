package core

import (
	"context"
	"fmt"

	"github.com/braidworks/braid/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked during a step. It carries the tool call's own node,
// the run environment, and an emitter that feeds the step's side channel so a
// tool can surface progress without blocking on the consumer.
type ToolContext struct {
	ctx    context.Context
	env    *Env
	node   *Node
	callID string
	emit   func(Event) bool

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to the sub-task node created
// for one function call. emit may be nil for tools that never report progress.
func NewToolContext(ctx context.Context, env *Env, node *Node, callID string, emit func(Event) bool) *ToolContext {
	var logger logging.Logger
	if env != nil {
		logger = env.Logger()
	}
	return &ToolContext{
		ctx:           ctx,
		env:           env,
		node:          node,
		callID:        callID,
		emit:          emit,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation. It carries
// the run's cancellation signal and the tool's node scope.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the run the tool invocation belongs to.
func (tc *ToolContext) RunID() string {
	if tc.env == nil {
		return ""
	}
	return tc.env.RunID
}

// Env returns the run environment shared across the run's tree.
func (tc *ToolContext) Env() *Env { return tc.env }

// Node returns the execution node created for this tool call.
func (tc *ToolContext) Node() *Node { return tc.node }

// CallID returns the function call id the invocation answers.
func (tc *ToolContext) CallID() string { return tc.callID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Progress emits a subtask.progress event carrying data. The push is
// non-blocking; false means the side channel is already closed.
func (tc *ToolContext) Progress(data map[string]any) bool {
	return tc.Emit(NewEvent(SubtaskProgress{Data: data}))
}

// EmitCustom emits a custom event under the tool's node.
func (tc *ToolContext) EmitCustom(name string, data map[string]any) bool {
	return tc.Emit(NewEvent(Custom{Name: name, Data: data}))
}

// Emit pushes ev onto the step's side channel, stamping the tool's node
// position first. It never blocks; false means the channel is closed.
func (tc *ToolContext) Emit(ev Event) bool {
	if tc.emit == nil {
		return false
	}
	return tc.emit(ev.WithNodeDefaults(tc.node))
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.node == nil || tc.callID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
