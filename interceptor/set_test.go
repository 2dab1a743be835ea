package interceptor

import (
	"context"
	"testing"

	"github.com/braidworks/braid/core"
)

type nopStep struct{ name string }

func (n nopStep) Name() string { return n.name }
func (n nopStep) InterceptStep(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult) {
	return next(ctx, call)
}

type nopTask struct{ name string }

func (n nopTask) Name() string { return n.name }
func (n nopTask) InterceptTask(ctx context.Context, call *TaskCall, next TaskHandler) (<-chan core.Event, <-chan TaskResult) {
	return next(ctx, call)
}

func TestSet_DefaultNoPropagation(t *testing.T) {
	owner := core.TaskInfo{Name: "root", Kind: "task"}
	s := NewSet().
		UseStep(owner, nopStep{"plain-step"}).
		UseTask(owner, nopTask{"plain-task"})

	child := s.ForChild(owner, core.TaskInfo{Name: "sub", Kind: "task"})
	if child.Len() != 0 {
		t.Fatalf("undeclared interceptors must not propagate, got %d entries", child.Len())
	}
}

func TestSet_PropagationSeesRelationship(t *testing.T) {
	owner := core.TaskInfo{Name: "root", Kind: "task"}
	delegator := core.TaskInfo{Name: "middle", Kind: "task"}

	var seen Relationship
	toTasksOnly := PropagateStep(nopStep{"traced"}, func(rel Relationship) bool {
		seen = rel
		return rel.Target.Kind == "task"
	})

	s := NewSet().UseStep(owner, toTasksOnly)

	sub := core.TaskInfo{Name: "sub", Kind: "task"}
	if got := s.ForChild(delegator, sub); got.Len() != 1 {
		t.Fatalf("expected propagation to a task target, got %d entries", got.Len())
	}
	if seen.Owner != owner || seen.Delegator != delegator || seen.Target != sub {
		t.Fatalf("relationship misreported: %+v", seen)
	}

	if got := s.ForChild(delegator, core.TaskInfo{Name: "grep", Kind: "tool"}); got.Len() != 0 {
		t.Fatal("rule rejected tools, but the entry propagated")
	}
}

// Propagated entries keep their original owner so a decision two levels down
// still reasons about the task that registered the interceptor.
func TestSet_OwnerStableAcrossLevels(t *testing.T) {
	owner := core.TaskInfo{Name: "root", Kind: "task"}
	always := PropagateStep(nopStep{"deep"}, func(rel Relationship) bool { return true })
	s := NewSet().UseStep(owner, always)

	level1 := core.TaskInfo{Name: "child", Kind: "task"}
	level2 := core.TaskInfo{Name: "grandchild", Kind: "task"}

	var seen Relationship
	inspect := PropagateStep(nopStep{"probe"}, func(rel Relationship) bool {
		seen = rel
		return true
	})
	one := s.ForChild(owner, level1)
	one.UseStep(level1, inspect)
	one.ForChild(level1, level2)

	if seen.Owner != level1 || seen.Delegator != level1 || seen.Target != level2 {
		t.Fatalf("relationship at depth 2 wrong: %+v", seen)
	}

	two := s.ForChild(owner, level1).ForChild(level1, level2)
	if two.Len() != 1 {
		t.Fatalf("always-propagating entry lost at depth 2: %d", two.Len())
	}
}

func TestSet_ExtendKeepsInheritedOutermost(t *testing.T) {
	parentOwner := core.TaskInfo{Name: "parent", Kind: "task"}
	childOwner := core.TaskInfo{Name: "child", Kind: "task"}

	inherited := NewSet().UseStep(parentOwner, nopStep{"outer"})
	own := NewSet().UseStep(childOwner, nopStep{"inner"})

	active := inherited.Extend(own)
	ics := active.StepInterceptors()
	if len(ics) != 2 || ics[0].Name() != "outer" || ics[1].Name() != "inner" {
		names := make([]string, 0, len(ics))
		for _, ic := range ics {
			names = append(names, ic.Name())
		}
		t.Fatalf("composition order wrong: %v", names)
	}
}

func TestActive_ContextScope(t *testing.T) {
	ctx := context.Background()
	if _, ok := Active(ctx); ok {
		t.Fatal("fresh context must have no active set")
	}

	outer := NewSet().UseStep(core.TaskInfo{Name: "a"}, nopStep{"x"})
	ctx = WithActive(ctx, outer)
	if got, ok := Active(ctx); !ok || got != outer {
		t.Fatal("active set not visible")
	}

	inner := NewSet()
	nested := WithActive(ctx, inner)
	if got, _ := Active(nested); got != inner {
		t.Fatal("nested scope not applied")
	}
	if got, _ := Active(ctx); got != outer {
		t.Fatal("outer scope disturbed")
	}
}

func TestSet_ComposeRuns(t *testing.T) {
	var order []string
	owner := core.TaskInfo{Name: "root", Kind: "task"}
	s := NewSet().UseStep(owner, recording("first", &order), recording("second", &order))

	h := s.ComposeStep(emptyStep(&order))
	_, res := drain(h(context.Background(), &Call{}))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "base" {
		t.Fatalf("set composition order wrong: %v", order)
	}
}
