package index

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// ByID returns the node with the given id.
func (idx *Index) ByID(id string) (*hierarchy.Node, bool) {
	e, ok := idx.Entries[id]
	if !ok {
		return nil, false
	}
	return e.Node, true
}

// ByPath returns the node at path, or with prefix set every node at or
// beneath path, in document order. Prefix matching respects step
// boundaries: root/a does not match root/ab.
func (idx *Index) ByPath(path string, prefix bool) []*hierarchy.Node {
	if !prefix {
		ord, ok := idx.byPath[path]
		if !ok {
			return nil
		}
		return []*hierarchy.Node{idx.nodes[ord]}
	}

	bm := roaring.New()
	for i := sort.SearchStrings(idx.paths, path); i < len(idx.paths); i++ {
		p := idx.paths[i]
		if !strings.HasPrefix(p, path) {
			break
		}
		if hierarchy.HasPathPrefix(p, path) {
			bm.Add(idx.byPath[p])
		}
	}
	return idx.collect(bm)
}

// ByType returns every node of type t in document order.
func (idx *Index) ByType(t hierarchy.NodeType) []*hierarchy.Node {
	return idx.collect(idx.byType[t])
}

// ByLevel returns every node at level in document order.
func (idx *Index) ByLevel(level int) []*hierarchy.Node {
	return idx.collect(idx.byLevel[level])
}

// ByContent returns nodes whose content contains pattern, or matches it
// as a regular expression when regex is set.
func (idx *Index) ByContent(pattern string, regex bool) ([]*hierarchy.Node, error) {
	match := func(s string) bool { return strings.Contains(s, pattern) }
	if regex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("content pattern: %w", err)
		}
		match = re.MatchString
	}
	var out []*hierarchy.Node
	for _, n := range idx.nodes {
		if n.Content != "" && match(n.Content) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Ancestors walks parent references from id to the root. The parent comes
// first and the root last.
func (idx *Index) Ancestors(id string) ([]*hierarchy.Node, error) {
	n, ok := idx.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var out []*hierarchy.Node
	for n.ParentID != "" {
		parent, ok := idx.ByID(n.ParentID)
		if !ok {
			return nil, corrupt(idx.Source, -1, "node %s: parent %s not indexed", n.ID, n.ParentID)
		}
		out = append(out, parent)
		n = parent
		if len(out) > len(idx.Order) {
			return nil, corrupt(idx.Source, -1, "parent cycle at %s", id)
		}
	}
	return out, nil
}

// Descendants returns every node beneath id in document order, excluding
// id itself.
func (idx *Index) Descendants(id string) ([]*hierarchy.Node, error) {
	n, ok := idx.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var out []*hierarchy.Node
	stack := make([]string, 0, len(n.ChildIDs))
	for i := len(n.ChildIDs) - 1; i >= 0; i-- {
		stack = append(stack, n.ChildIDs[i])
	}
	for len(stack) > 0 {
		cid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c, ok := idx.ByID(cid)
		if !ok {
			return nil, corrupt(idx.Source, -1, "node %s: child %s not indexed", n.ID, cid)
		}
		out = append(out, c)
		for i := len(c.ChildIDs) - 1; i >= 0; i-- {
			stack = append(stack, c.ChildIDs[i])
		}
	}
	return out, nil
}

// Kind names one of the supported query shapes.
type Kind string

const (
	KindID          Kind = "id"
	KindPath        Kind = "path"
	KindType        Kind = "type"
	KindLevel       Kind = "level"
	KindContent     Kind = "content"
	KindAncestors   Kind = "ancestors"
	KindDescendants Kind = "descendants"
)

// Kinds lists the supported query kinds.
func Kinds() []Kind {
	return []Kind{KindID, KindPath, KindType, KindLevel, KindContent, KindAncestors, KindDescendants}
}

// ParseKind parses a query kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown query kind %q", s)
}

// Query is one request against an index. Prefix applies to path queries
// and Regex to content queries.
type Query struct {
	Kind   Kind
	Arg    string
	Prefix bool
	Regex  bool
}

// Run dispatches q. Unknown ids yield ErrNotFound; other queries with no
// match return an empty result.
func (idx *Index) Run(q Query) ([]*hierarchy.Node, error) {
	switch q.Kind {
	case KindID:
		n, ok := idx.ByID(q.Arg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, q.Arg)
		}
		return []*hierarchy.Node{n}, nil
	case KindPath:
		return idx.ByPath(q.Arg, q.Prefix), nil
	case KindType:
		t := hierarchy.NodeType(q.Arg)
		if !slices.Contains(hierarchy.NodeTypes(), t) {
			return nil, fmt.Errorf("unknown node type %q (valid: %v)", q.Arg, hierarchy.NodeTypes())
		}
		return idx.ByType(t), nil
	case KindLevel:
		level, err := strconv.Atoi(q.Arg)
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", q.Arg, err)
		}
		return idx.ByLevel(level), nil
	case KindContent:
		return idx.ByContent(q.Arg, q.Regex)
	case KindAncestors:
		return idx.Ancestors(q.Arg)
	case KindDescendants:
		return idx.Descendants(q.Arg)
	}
	return nil, fmt.Errorf("unknown query kind %q", q.Kind)
}
