package graph

import (
	"fmt"
	"sync"

	"github.com/braidworks/braid/core"
)

// ConsistencyError reports an event the current tree cannot have produced:
// a node changing kind, or a node acquiring a second parent. It is a
// programming-error-class fault; callers should fail the run, not coerce.
type ConsistencyError struct {
	NodeID string
	Reason string
}

// Error implements error.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("graph: inconsistent event for node %q: %s", e.NodeID, e.Reason)
}

// Graph incrementally builds the execution tree from events. It is safe for
// one writer (ProcessEvent) and any number of concurrent readers; readers
// always receive detached snapshots.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
	root  *node
	seen  map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
		seen:  make(map[string]struct{}),
	}
}

// FromEvents replays a recorded sequence into a fresh graph. Replay of the
// same sequence always yields a structurally identical tree.
func FromEvents(events []core.Event) (*Graph, error) {
	g := New()
	for _, ev := range events {
		if err := g.ProcessEvent(ev); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ProcessEvent applies one event to the tree. Application is idempotent per
// event id: an event whose id has been seen before is a no-op. Events must
// arrive in emission order per node (begin first, terminal last); across
// nodes any interleaving is fine.
func (g *Graph) ProcessEvent(ev core.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ev.ID != "" {
		if _, dup := g.seen[ev.ID]; dup {
			return nil
		}
		g.seen[ev.ID] = struct{}{}
	}
	if ev.NodeID == "" {
		return &ConsistencyError{Reason: "event carries no node id"}
	}

	n := g.resolve(ev.NodeID)
	if len(n.path) == 0 && len(ev.Path) > 0 {
		n.path = append([]string(nil), ev.Path...)
	}
	if err := g.link(n, ev); err != nil {
		return err
	}
	return g.apply(n, ev)
}

// resolve returns the node for id, creating an unknown placeholder on first
// reference.
func (g *Graph) resolve(id string) *node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &node{id: id, kind: KindUnknown, status: StatusPending}
	g.nodes[id] = n
	return n
}

// link attaches n to its parent on first sight. A parentless node is wrapped
// by the synthetic root; an event naming a different parent than the one
// already fixed is a consistency fault.
func (g *Graph) link(n *node, ev core.Event) error {
	if n == g.root {
		return nil
	}
	if n.parent != nil {
		if ev.ParentID != "" && ev.ParentID != n.parent.id {
			return &ConsistencyError{
				NodeID: n.id,
				Reason: fmt.Sprintf("parent already fixed to %q, event names %q", n.parent.id, ev.ParentID),
			}
		}
		return nil
	}

	if ev.ParentID != "" {
		p := g.resolve(ev.ParentID)
		n.parent = p
		p.children = append(p.children, n)
		return nil
	}

	// Top-level node: wrap it in the synthetic root, creating the root the
	// first time one appears.
	if g.root == nil {
		g.root = &node{id: RootID, kind: KindRoot, status: StatusPending, path: []string{}}
		g.nodes[RootID] = g.root
	}
	n.parent = g.root
	g.root.children = append(g.root.children, n)
	return nil
}

// apply folds the payload into the node's accumulated state.
func (g *Graph) apply(n *node, ev core.Event) error {
	switch p := ev.Payload.(type) {
	case core.TaskBegin:
		if err := fixKind(n, KindTask); err != nil {
			return err
		}
		n.name = p.Name
		if p.Input != "" {
			n.input = p.Input
		}
		n.advance(StatusRunning)
		g.mirrorRoot(n)

	case core.StepBegin:
		if p.Step > n.steps {
			n.steps = p.Step
		}

	case core.StepCall:
		n.usage = n.usage.Add(p.Usage)
		if p.Model != "" {
			n.models = append(n.models, p.Model)
		}
		if p.Step > n.steps {
			n.steps = p.Step
		}

	case core.StepEnd:
		n.messages = append(n.messages, p.Messages...)
		if p.Step > n.steps {
			n.steps = p.Step
		}

	case core.StepRetry:
		n.retries++

	case core.TaskEnd:
		n.output = p.Output
		n.advance(StatusCompleted)
		g.mirrorRoot(n)

	case core.TaskError:
		n.err = &NodeError{Message: p.Message, Stack: p.Stack, Canceled: p.Canceled}
		n.advance(StatusFailed)
		g.mirrorRoot(n)

	case core.SubtaskBegin:
		if err := fixKind(n, KindSubtask); err != nil {
			return err
		}
		n.name = p.Name
		if p.Input != "" {
			n.input = p.Input
		}
		n.advance(StatusRunning)

	case core.SubtaskEnd:
		n.output = p.Output
		n.advance(StatusCompleted)

	case core.SubtaskError:
		n.err = &NodeError{Message: p.Message, Stack: p.Stack}
		n.advance(StatusFailed)

	case core.SubtaskProgress, core.ContentDelta, core.Custom:
		// Referencing the node was enough; no structural change.

	case nil:
		return &ConsistencyError{NodeID: n.id, Reason: "event carries no payload"}
	}
	return nil
}

// fixKind upgrades an unknown node to kind, erroring when the node's kind
// was already fixed to something else.
func fixKind(n *node, kind Kind) error {
	if n.kind == KindUnknown {
		n.kind = kind
		return nil
	}
	if n.kind != kind {
		return &ConsistencyError{
			NodeID: n.id,
			Reason: fmt.Sprintf("kind already fixed to %s, event implies %s", n.kind, kind),
		}
	}
	return nil
}

// mirrorRoot copies the primary task's status onto the synthetic root. Only
// the first child drives the mirror.
func (g *Graph) mirrorRoot(n *node) {
	if g.root == nil || len(g.root.children) == 0 || g.root.children[0] != n {
		return
	}
	g.root.advance(n.status)
	if n.status == StatusFailed && n.err != nil {
		e := *n.err
		g.root.err = &e
	}
}

// Node returns a snapshot of id's subtree.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.snapshot(), true
}

// Root returns a snapshot of the whole tree. ok is false until the first
// top-level node has appeared.
func (g *Graph) Root() (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.root == nil {
		return Node{}, false
	}
	return g.root.snapshot(), true
}

// Len reports the number of nodes, including the synthetic root once it
// exists.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
