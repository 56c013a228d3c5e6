package hierarchy

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// MaxDepth bounds nesting so adversarial documents fail instead of
// exhausting memory.
const MaxDepth = 10000

// parseFunc normalizes content into the tree held by b. When b has an
// anchor the content is a fragment whose top-level value belongs to the
// anchor node.
type parseFunc func(b *builder, content []byte) error

// Anchor places a fragment inside a larger document: the fragment's top
// value becomes the node at Path.
type Anchor struct {
	Path     string
	Level    int
	ParentID string
	Type     NodeType
	Name     string
}

// Parse normalizes content of the given format into a tree. Parsing is
// all or nothing: on error no tree is returned.
func Parse(source string, f Format, content []byte) (*Tree, error) {
	parse := f.parser()
	if parse == nil {
		return nil, &FormatError{Path: source, Reason: fmt.Sprintf("no parser for %s", f)}
	}
	b := newBuilder(source, f, content, nil)
	if err := parse(b, content); err != nil {
		return nil, err
	}
	return b.tree, nil
}

// ParseFile detects the format of path and parses it.
func ParseFile(path string) (*Tree, error) {
	f, err := DetectFile(path, DefaultPrefixBytes)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, f, content)
}

// ParseFragment normalizes a fragment of source rooted at anchor. Node ids
// and paths equal those a full parse of source would assign. Offsets are
// relative to the fragment and therefore reported as unknown.
func ParseFragment(source string, f Format, anchor Anchor, content []byte) (*Tree, error) {
	parse := f.parser()
	if parse == nil {
		return nil, &FormatError{Path: source, Reason: fmt.Sprintf("no parser for %s", f)}
	}
	b := newBuilder(source, f, content, &anchor)
	if err := parse(b, content); err != nil {
		return nil, err
	}
	for _, n := range b.tree.Nodes {
		n.Offset, n.EndOffset, n.Line = -1, 0, 0
	}
	return b.tree, nil
}

// AnchorFor derives the anchor of the node at path in a document of
// format f, without parsing the document.
func AnchorFor(source string, f Format, path string) (Anchor, error) {
	steps := SplitPath(path)
	if len(steps) == 0 {
		return Anchor{}, fmt.Errorf("empty path")
	}
	a := Anchor{Path: path, Level: len(steps) - 1}
	if len(steps) > 1 {
		a.ParentID = NodeID(source, ParentPath(path))
	}
	last := steps[len(steps)-1]

	switch f {
	case JSON, YAML:
		switch {
		case len(steps) == 1:
			if last != RootStep {
				return Anchor{}, fmt.Errorf("path %q must start at %q", path, RootStep)
			}
			a.Type = TypeDocument
		case strings.HasPrefix(last, "["):
			if _, err := ParseStep(last); err != nil {
				return Anchor{}, err
			}
			a.Type, a.Name = TypeArrayItem, last
		default:
			a.Type, a.Name = TypeKey, UnescapeStep(last)
		}
	case XML:
		st, err := ParseStep(last)
		if err != nil {
			return Anchor{}, err
		}
		switch {
		case st.Attribute:
			a.Type, a.Name = TypeAttribute, st.Name
		case len(steps) == 1 || st.HasIndex:
			a.Type, a.Name = TypeElement, st.Name
		default:
			return Anchor{}, fmt.Errorf("xml step %q needs a sibling index", last)
		}
	default:
		return Anchor{}, fmt.Errorf("%s documents cannot be addressed by fragment", f)
	}
	return a, nil
}

// builder accumulates nodes in document order and assigns ids, paths and
// levels.
type builder struct {
	source  string
	format  Format
	tree    *Tree
	anchor  *Anchor
	content []byte
	lines   []int
	sibling map[string]map[string]int
}

func newBuilder(source string, f Format, content []byte, anchor *Anchor) *builder {
	b := &builder{
		source:  source,
		format:  f,
		tree:    newTree(source, f),
		anchor:  anchor,
		content: content,
		sibling: make(map[string]map[string]int),
	}
	b.lines = append(b.lines, 0)
	for i, c := range content {
		if c == '\n' {
			b.lines = append(b.lines, i+1)
		}
	}
	return b
}

// root creates the top node. For fragments the anchor decides its
// identity and typ/name/step are ignored.
func (b *builder) root(typ NodeType, name, step string, offset int64) *Node {
	n := &Node{Type: typ, Name: name, Path: step, Offset: offset}
	if b.anchor != nil {
		n.Type = b.anchor.Type
		n.Name = b.anchor.Name
		n.Path = b.anchor.Path
		n.Level = b.anchor.Level
		n.ParentID = b.anchor.ParentID
	}
	n.ID = NodeID(b.source, n.Path)
	n.Line = b.lineAt(offset)
	b.tree.add(n)
	return n
}

func (b *builder) child(parent *Node, typ NodeType, name, step string, offset int64) (*Node, error) {
	if parent.Level+1-b.baseLevel() >= MaxDepth {
		return nil, b.errorf(offset, "nesting exceeds %d levels", MaxDepth)
	}
	path := JoinPath(parent.Path, step)
	n := &Node{
		ID:       NodeID(b.source, path),
		Type:     typ,
		Name:     name,
		Path:     path,
		Level:    parent.Level + 1,
		ParentID: parent.ID,
		Offset:   offset,
		Line:     b.lineAt(offset),
	}
	if _, dup := b.tree.byID[n.ID]; dup {
		return nil, b.errorf(offset, "duplicate path %s", path)
	}
	parent.ChildIDs = append(parent.ChildIDs, n.ID)
	b.tree.add(n)
	return n, nil
}

func (b *builder) baseLevel() int {
	if b.anchor != nil {
		return b.anchor.Level
	}
	return 0
}

// nextIndex returns how many siblings under parent already share key.
func (b *builder) nextIndex(parent *Node, key string) int {
	m := b.sibling[parent.ID]
	if m == nil {
		m = make(map[string]int)
		b.sibling[parent.ID] = m
	}
	i := m[key]
	m[key] = i + 1
	return i
}

func (b *builder) lineAt(offset int64) int {
	if offset < 0 {
		return 0
	}
	return sort.Search(len(b.lines), func(i int) bool { return int64(b.lines[i]) > offset })
}

func (b *builder) lineOffset(line int) int64 {
	if line < 1 || line > len(b.lines) {
		return 0
	}
	return int64(b.lines[line-1])
}

func (b *builder) errorf(offset int64, format string, args ...any) *ParseError {
	return &ParseError{
		Path:   b.source,
		Format: b.format,
		Offset: offset,
		Line:   b.lineAt(offset),
		Reason: fmt.Sprintf(format, args...),
	}
}
