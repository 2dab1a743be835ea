package graph

import (
	"github.com/braidworks/braid/core"
)

// RootID is the id of the synthetic root wrapper.
const RootID = "root"

// Kind classifies a graph node.
type Kind string

const (
	KindRoot    Kind = "root"
	KindTask    Kind = "task"
	KindSubtask Kind = "subtask"
	KindUnknown Kind = "unknown"
)

// Status is the lifecycle state of a graph node. It only ever moves forward
// through pending -> running -> {completed | failed}.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return 0
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s.rank() == 2 }

// NodeError captures the failure attached to a failed node.
type NodeError struct {
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
	Canceled bool   `json:"canceled,omitempty"`
}

// Node is a point-in-time snapshot of one graph node and its subtree.
// Children are nested in discovery order.
type Node struct {
	ID       string         `json:"id"`
	Kind     Kind           `json:"kind"`
	Name     string         `json:"name,omitempty"`
	Status   Status         `json:"status"`
	Path     []string       `json:"path,omitempty"`
	ParentID string         `json:"parentId,omitempty"`
	Children []Node         `json:"children,omitempty"`
	Input    string         `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	Error    *NodeError     `json:"error,omitempty"`
	Messages []core.Message `json:"messages,omitempty"`
	Usage    core.Usage     `json:"usage"`
	Models   []string       `json:"models,omitempty"`
	Steps    int            `json:"steps,omitempty"`
	Retries  int            `json:"retries,omitempty"`
}

// Walk visits the snapshot and every descendant, depth first.
func (n Node) Walk(visit func(Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// node is the mutable arena entry behind a snapshot.
type node struct {
	id       string
	kind     Kind
	name     string
	status   Status
	path     []string
	parent   *node
	children []*node
	input    string
	output   string
	err      *NodeError
	messages []core.Message
	usage    core.Usage
	models   []string
	steps    int
	retries  int
}

// advance moves status forward; backward transitions are ignored. The first
// terminal status wins.
func (n *node) advance(to Status) {
	if to.rank() > n.status.rank() {
		n.status = to
	}
}

func (n *node) snapshot() Node {
	out := Node{
		ID:      n.id,
		Kind:    n.kind,
		Name:    n.name,
		Status:  n.status,
		Input:   n.input,
		Output:  n.output,
		Usage:   n.usage,
		Steps:   n.steps,
		Retries: n.retries,
	}
	if n.parent != nil {
		out.ParentID = n.parent.id
	}
	if n.err != nil {
		e := *n.err
		out.Error = &e
	}
	if len(n.path) > 0 {
		out.Path = append([]string(nil), n.path...)
	}
	if len(n.messages) > 0 {
		out.Messages = append([]core.Message(nil), n.messages...)
	}
	if len(n.models) > 0 {
		out.Models = append([]string(nil), n.models...)
	}
	for _, c := range n.children {
		out.Children = append(out.Children, c.snapshot())
	}
	return out
}
