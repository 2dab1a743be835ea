package interceptor

import (
	"context"

	"github.com/braidworks/braid/core"
)

// Relationship describes one propagation decision point: Owner is the task
// that registered the interceptor, Delegator is the task about to invoke
// Target as a sub-task or tool.
type Relationship struct {
	Owner     core.TaskInfo
	Delegator core.TaskInfo
	Target    core.TaskInfo
}

// Propagator is implemented by interceptors that want to keep applying to
// work spawned below the task that registered them. The runtime consults it
// at every task entry. An interceptor that does not implement Propagator
// applies only to its own task.
type Propagator interface {
	Propagate(rel Relationship) bool
}

type stepEntry struct {
	ic    StepInterceptor
	owner core.TaskInfo
}

type taskEntry struct {
	ic    TaskInterceptor
	owner core.TaskInfo
}

// Set is the ordered interceptor collection in force for one task's subtree,
// outermost first. The owner is recorded per entry so propagation decisions
// can see which task contributed an interceptor.
type Set struct {
	steps []stepEntry
	tasks []taskEntry
}

// NewSet returns an empty set.
func NewSet() *Set { return &Set{} }

// UseStep appends step interceptors registered by owner.
func (s *Set) UseStep(owner core.TaskInfo, ics ...StepInterceptor) *Set {
	for _, ic := range ics {
		s.steps = append(s.steps, stepEntry{ic: ic, owner: owner})
	}
	return s
}

// UseTask appends task interceptors registered by owner.
func (s *Set) UseTask(owner core.TaskInfo, ics ...TaskInterceptor) *Set {
	for _, ic := range ics {
		s.tasks = append(s.tasks, taskEntry{ic: ic, owner: owner})
	}
	return s
}

// Len reports the number of entries across both granularities.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.steps) + len(s.tasks)
}

// ForChild returns the subset that continues to apply when delegator invokes
// target. Each entry's Propagate is consulted with the full relationship;
// entries that opt in keep their original owner so the decision stays stable
// further down the tree.
func (s *Set) ForChild(delegator, target core.TaskInfo) *Set {
	out := NewSet()
	if s == nil {
		return out
	}
	for _, e := range s.steps {
		if p, ok := e.ic.(Propagator); ok && p.Propagate(Relationship{Owner: e.owner, Delegator: delegator, Target: target}) {
			out.steps = append(out.steps, e)
		}
	}
	for _, e := range s.tasks {
		if p, ok := e.ic.(Propagator); ok && p.Propagate(Relationship{Owner: e.owner, Delegator: delegator, Target: target}) {
			out.tasks = append(out.tasks, e)
		}
	}
	return out
}

// Extend returns a new set with s's entries outermost followed by own's.
// Inherited interceptors therefore wrap the child's own interceptors, the
// same way they wrapped the parent's.
func (s *Set) Extend(own *Set) *Set {
	out := NewSet()
	if s != nil {
		out.steps = append(out.steps, s.steps...)
		out.tasks = append(out.tasks, s.tasks...)
	}
	if own != nil {
		out.steps = append(out.steps, own.steps...)
		out.tasks = append(out.tasks, own.tasks...)
	}
	return out
}

// StepInterceptors returns the step entries in composition order.
func (s *Set) StepInterceptors() []StepInterceptor {
	if s == nil {
		return nil
	}
	out := make([]StepInterceptor, 0, len(s.steps))
	for _, e := range s.steps {
		out = append(out, e.ic)
	}
	return out
}

// TaskInterceptors returns the task entries in composition order.
func (s *Set) TaskInterceptors() []TaskInterceptor {
	if s == nil {
		return nil
	}
	out := make([]TaskInterceptor, 0, len(s.tasks))
	for _, e := range s.tasks {
		out = append(out, e.ic)
	}
	return out
}

// ComposeStep composes the set's step interceptors around base.
func (s *Set) ComposeStep(base StepHandler) StepHandler {
	return ComposeStep(s.StepInterceptors(), base)
}

// ComposeTask composes the set's task interceptors around base.
func (s *Set) ComposeTask(base TaskHandler) TaskHandler {
	return ComposeTask(s.TaskInterceptors(), base)
}

type setKey struct{}

// WithActive returns a context whose active interceptor set is s. Like the
// node and task scopes it is continuation-scoped and independently nestable.
func WithActive(ctx context.Context, s *Set) context.Context {
	return context.WithValue(ctx, setKey{}, s)
}

// Active reports the set installed by the nearest enclosing WithActive.
// ok is false when no set scope is active.
func Active(ctx context.Context) (*Set, bool) {
	s, ok := ctx.Value(setKey{}).(*Set)
	return s, ok && s != nil
}

// PropagateStep attaches an explicit propagation rule to a step interceptor.
func PropagateStep(ic StepInterceptor, rule func(Relationship) bool) StepInterceptor {
	return &propagatingStep{StepInterceptor: ic, rule: rule}
}

// PropagateTask attaches an explicit propagation rule to a task interceptor.
func PropagateTask(ic TaskInterceptor, rule func(Relationship) bool) TaskInterceptor {
	return &propagatingTask{TaskInterceptor: ic, rule: rule}
}

type propagatingStep struct {
	StepInterceptor
	rule func(Relationship) bool
}

func (p *propagatingStep) Propagate(rel Relationship) bool { return p.rule(rel) }

type propagatingTask struct {
	TaskInterceptor
	rule func(Relationship) bool
}

func (p *propagatingTask) Propagate(rel Relationship) bool { return p.rule(rel) }
