package hierarchy

import "fmt"

// NodeType classifies a node. The set is fixed; each format uses a subset.
type NodeType string

const (
	TypeDocument   NodeType = "document"
	TypeElement    NodeType = "element"
	TypeAttribute  NodeType = "attribute"
	TypeKey        NodeType = "key"
	TypeArrayItem  NodeType = "array-item"
	TypeHeading    NodeType = "heading"
	TypeParagraph  NodeType = "paragraph"
	TypeList       NodeType = "list"
	TypeCode       NodeType = "code"
	TypeBlockquote NodeType = "blockquote"
	TypeTable      NodeType = "table"
	TypeHTML       NodeType = "html"
	TypeRule       NodeType = "rule"
)

// NodeTypes lists every node type.
func NodeTypes() []NodeType {
	return []NodeType{
		TypeDocument, TypeElement, TypeAttribute, TypeKey, TypeArrayItem,
		TypeHeading, TypeParagraph, TypeList, TypeCode, TypeBlockquote,
		TypeTable, TypeHTML, TypeRule,
	}
}

// Node is one structural unit of a normalized document.
// ParentID is a back-reference only; the tree owns nodes through ChildIDs.
type Node struct {
	ID       string            `json:"id"`
	Type     NodeType          `json:"type"`
	Name     string            `json:"name,omitempty"`
	Path     string            `json:"path"`
	Level    int               `json:"level"`
	ParentID string            `json:"parent_id,omitempty"`
	ChildIDs []string          `json:"child_ids,omitempty"`
	Content  string            `json:"content,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`

	// Offset is the byte offset of the node in its source, -1 when unknown.
	Offset    int64 `json:"offset"`
	EndOffset int64 `json:"end_offset,omitempty"`
	Line      int   `json:"line,omitempty"`
}

// Clone creates a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	if n.ChildIDs != nil {
		clone.ChildIDs = append([]string(nil), n.ChildIDs...)
	}
	if n.Attrs != nil {
		clone.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			clone.Attrs[k] = v
		}
	}
	return &clone
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.ChildIDs) == 0
}

// Tree is a parsed document. Nodes are held in document (pre-)order.
type Tree struct {
	Source string  `json:"source"`
	Format Format  `json:"format"`
	RootID string  `json:"root_id"`
	Nodes  []*Node `json:"nodes"`

	byID map[string]*Node
}

func newTree(source string, f Format) *Tree {
	return &Tree{Source: source, Format: f, byID: make(map[string]*Node)}
}

// NewTree assembles a tree from nodes already in document order.
func NewTree(source string, f Format, nodes []*Node) (*Tree, error) {
	t := newTree(source, f)
	for _, n := range nodes {
		if _, dup := t.byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %s at %s", n.ID, n.Path)
		}
		t.byID[n.ID] = n
		t.Nodes = append(t.Nodes, n)
	}
	if len(nodes) > 0 {
		t.RootID = nodes[0].ID
	}
	return t, t.Validate()
}

func (t *Tree) add(n *Node) {
	if t.RootID == "" {
		t.RootID = n.ID
	}
	t.Nodes = append(t.Nodes, n)
	t.byID[n.ID] = n
}

// Node returns the node with the given id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node {
	return t.byID[t.RootID]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// IDs returns all node ids in document order.
func (t *Tree) IDs() []string {
	ids := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// AllNodes returns the nodes in document order.
func (t *Tree) AllNodes() []*Node {
	return t.Nodes
}

// Children returns the direct children of id in document order.
func (t *Tree) Children(id string) []*Node {
	n, ok := t.byID[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		out = append(out, t.byID[cid])
	}
	return out
}

// Subtree returns id and all of its descendants in document order.
func (t *Tree) Subtree(id string) []*Node {
	n, ok := t.byID[id]
	if !ok {
		return nil
	}
	var out []*Node
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		for i := len(cur.ChildIDs) - 1; i >= 0; i-- {
			stack = append(stack, t.byID[cur.ChildIDs[i]])
		}
	}
	return out
}

// Branch returns a new tree holding copies of id and its descendants.
// The branch root keeps its level and parent reference, so ids, paths and
// levels match the full tree.
func (t *Tree) Branch(id string) (*Tree, bool) {
	nodes := t.Subtree(id)
	if nodes == nil {
		return nil, false
	}
	b := newTree(t.Source, t.Format)
	for _, n := range nodes {
		b.add(n.Clone())
	}
	return b, true
}

// FindPath returns the node with exactly the given path.
func (t *Tree) FindPath(path string) (*Node, bool) {
	for _, n := range t.Nodes {
		if n.Path == path {
			return n, true
		}
	}
	return nil, false
}

// LeafNodes returns all nodes without children.
func (t *Tree) LeafNodes() []*Node {
	var leaves []*Node
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// Validate checks the structural invariants: unique ids, resolvable
// parents, level = parent level + 1 and child lists that point back.
// Only the root may reference a parent outside the tree.
func (t *Tree) Validate() error {
	if len(t.Nodes) == 0 {
		return nil
	}
	if t.byID == nil || len(t.byID) != len(t.Nodes) {
		t.byID = make(map[string]*Node, len(t.Nodes))
		for _, n := range t.Nodes {
			if _, dup := t.byID[n.ID]; dup {
				return fmt.Errorf("duplicate node id %s", n.ID)
			}
			t.byID[n.ID] = n
		}
	}
	for _, n := range t.Nodes {
		if n.ID == t.RootID {
			// A branch root keeps its parent reference, which lies
			// outside the tree.
			if _, inside := t.byID[n.ParentID]; inside {
				return fmt.Errorf("root %s has parent %s inside the tree", n.Path, n.ParentID)
			}
			continue
		}
		parent, ok := t.byID[n.ParentID]
		if !ok {
			return fmt.Errorf("node %s: parent %s not found", n.Path, n.ParentID)
		}
		if n.Level != parent.Level+1 {
			return fmt.Errorf("node %s: level %d under parent level %d", n.Path, n.Level, parent.Level)
		}
	}
	for _, n := range t.Nodes {
		for _, cid := range n.ChildIDs {
			child, ok := t.byID[cid]
			if !ok || child.ParentID != n.ID {
				return fmt.Errorf("node %s: child %s does not point back", n.Path, cid)
			}
		}
	}
	return nil
}
