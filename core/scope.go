package core

import "context"

// The engine needs "current node" and "current task" to survive across
// asynchronous continuations: a tool's internal goroutine, a model adapter's
// streaming callback, or a retry attempt resumed long after the frame that
// started it returned. Plain lexical capture cannot express that, so both
// values ride on context.Context, which every blocking operation in the
// module already threads. Each value is scoped independently; installing one
// never disturbs the other.
//
// Reading a value outside any scope reports ok=false. Callers must treat
// absence as "I am a root", never as an error.

type nodeKey struct{}
type taskKey struct{}

// TaskInfo identifies the task currently driving execution. It is a plain
// value record so it can be propagated and compared without aliasing the
// task's mutable state.
type TaskInfo struct {
	Name string // Task name (unique within an engine registry)
	Kind string // Task flavor, e.g. "task" or "tool"
}

// WithNode returns a context whose current node is n. Continuations derived
// from the returned context observe n until they enter a nested WithNode.
func WithNode(ctx context.Context, n *Node) context.Context {
	return context.WithValue(ctx, nodeKey{}, n)
}

// CurrentNode reports the node installed by the nearest enclosing WithNode.
// ok is false when no node scope is active.
func CurrentNode(ctx context.Context) (*Node, bool) {
	n, ok := ctx.Value(nodeKey{}).(*Node)
	return n, ok && n != nil
}

// WithTask returns a context whose current task is info.
func WithTask(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, taskKey{}, info)
}

// CurrentTask reports the task installed by the nearest enclosing WithTask.
// ok is false when no task scope is active.
func CurrentTask(ctx context.Context) (TaskInfo, bool) {
	info, ok := ctx.Value(taskKey{}).(TaskInfo)
	return info, ok
}
