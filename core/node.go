package core

// Node is the identity and tree-position record for one logical execution: a
// task, or a sub-task/tool call made on its behalf. A Node is created once by
// the call frame that owns the execution and is immutable afterwards.
//
// Children hold a non-owning back-reference to their parent; it exists only so
// the path can be computed and must never be used to mutate the parent.
type Node struct {
	id     string
	name   string
	parent *Node
	path   []string
}

// NewNode creates a node named name under parent. A nil parent makes the node
// a root; its path is then just its own name.
func NewNode(name string, parent *Node) *Node {
	n := &Node{id: NewID(), name: name, parent: parent}
	if parent != nil {
		n.path = append(append([]string(nil), parent.path...), name)
	} else {
		n.path = []string{name}
	}
	return n
}

// ID returns the node's opaque identifier.
func (n *Node) ID() string { return n.id }

// Name returns the name the node was created with.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// ParentID returns the parent's identifier, or "" for a root.
func (n *Node) ParentID() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.id
}

// Path returns the ordered list of names from the root to this node. The
// returned slice is a copy; callers may retain it.
func (n *Node) Path() []string {
	return append([]string(nil), n.path...)
}

// Depth returns the number of ancestors above this node.
func (n *Node) Depth() int { return len(n.path) - 1 }
