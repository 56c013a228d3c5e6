package hierarchy

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shape is the id-free projection of a node used to compare trees.
type shape struct {
	Type    NodeType
	Name    string
	Path    string
	Level   int
	Content string
	Kids    int
}

func shapes(nodes []*Node) []shape {
	out := make([]shape, len(nodes))
	for i, n := range nodes {
		out[i] = shape{n.Type, n.Name, n.Path, n.Level, n.Content, len(n.ChildIDs)}
	}
	return out
}

func mustParse(t *testing.T, f Format, content string) *Tree {
	t.Helper()
	tree, err := Parse("test."+f.String(), f, []byte(content))
	require.NoError(t, err)
	require.NoError(t, tree.Validate())
	return tree
}

func TestParseJSONArrayScenario(t *testing.T) {
	tree := mustParse(t, JSON, `{"a": [1,2,3]}`)

	root := tree.Root()
	require.Equal(t, TypeDocument, root.Type)
	require.Len(t, root.ChildIDs, 1)

	a, _ := tree.Node(root.ChildIDs[0])
	assert.Equal(t, TypeKey, a.Type)
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, 1, a.Level)

	items := tree.Children(a.ID)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, TypeArrayItem, item.Type)
		assert.Equal(t, 2, item.Level)
		assert.Equal(t, []string{"1", "2", "3"}[i], item.Content)
	}
	assert.Equal(t, "root/a/[1]", items[1].Path)
}

func TestParseJSONScalarsAndOffsets(t *testing.T) {
	src := "{\n  \"s\": \"x\",\n  \"n\": 2.50,\n  \"b\": false,\n  \"z\": null,\n  \"o\": {}\n}"
	tree := mustParse(t, JSON, src)

	got := shapes(tree.Nodes)
	want := []shape{
		{TypeDocument, "", "root", 0, "", 5},
		{TypeKey, "s", "root/s", 1, "x", 0},
		{TypeKey, "n", "root/n", 1, "2.50", 0},
		{TypeKey, "b", "root/b", 1, "false", 0},
		{TypeKey, "z", "root/z", 1, "null", 0},
		{TypeKey, "o", "root/o", 1, "", 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}

	n, ok := tree.FindPath("root/n")
	require.True(t, ok)
	assert.Equal(t, 3, n.Line)
	assert.Equal(t, int64(strings.Index(src, `"n"`)), n.Offset)
}

func TestParseJSONEscapedKeys(t *testing.T) {
	tree := mustParse(t, JSON, `{"a/b": {"~c": 1}}`)
	n, ok := tree.FindPath("root/a~1b/~0c")
	require.True(t, ok)
	assert.Equal(t, "~c", n.Name)
	assert.Equal(t, "1", n.Content)
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `{"a": [1, 2,, 3]}`},
		{"truncated", `{"a": [1, 2`},
		{"empty", ``},
		{"trailing value", `{} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse("bad.json", JSON, []byte(tt.content))
			require.Error(t, err)
			assert.Nil(t, tree)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "bad.json", pe.Path)
			assert.True(t, errors.Is(err, ErrParse))
			assert.GreaterOrEqual(t, pe.Offset, int64(0))
		})
	}
}

func TestParseYAML(t *testing.T) {
	src := `name: demo
tags:
  - alpha
  - beta
nested:
  deep:
    value: 3
alias: &x hello
ref: *x
`
	tree := mustParse(t, YAML, src)

	got := shapes(tree.Nodes)
	want := []shape{
		{TypeDocument, "", "root", 0, "", 5},
		{TypeKey, "name", "root/name", 1, "demo", 0},
		{TypeKey, "tags", "root/tags", 1, "", 2},
		{TypeArrayItem, "[0]", "root/tags/[0]", 2, "alpha", 0},
		{TypeArrayItem, "[1]", "root/tags/[1]", 2, "beta", 0},
		{TypeKey, "nested", "root/nested", 1, "", 1},
		{TypeKey, "deep", "root/nested/deep", 2, "", 1},
		{TypeKey, "value", "root/nested/deep/value", 3, "3", 0},
		{TypeKey, "alias", "root/alias", 1, "hello", 0},
		{TypeKey, "ref", "root/ref", 1, "*x", 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}

	v, _ := tree.FindPath("root/nested/deep/value")
	assert.Equal(t, 7, v.Line)
	assert.Equal(t, int64(strings.Index(src, "value")), v.Offset)
}

func TestParseYAMLMatchesJSON(t *testing.T) {
	y := mustParse(t, YAML, "a:\n  - 1\n  - 2\n  - 3\n")
	j := mustParse(t, JSON, `{"a": [1, 2, 3]}`)
	if diff := cmp.Diff(shapes(j.Nodes), shapes(y.Nodes)); diff != "" {
		t.Errorf("yaml and json disagree (-json +yaml):\n%s", diff)
	}
}

func TestParseYAMLMultiDocument(t *testing.T) {
	tree := mustParse(t, YAML, "a: 1\n---\nb: 2\n")
	root := tree.Root()
	require.Len(t, root.ChildIDs, 2)
	docs := tree.Children(root.ID)
	assert.Equal(t, TypeDocument, docs[0].Type)
	assert.Equal(t, "root/[1]/b", tree.Children(docs[1].ID)[0].Path)
}

func TestParseYAMLError(t *testing.T) {
	_, err := Parse("bad.yaml", YAML, []byte("a: b\n  c: d\n"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, YAML, pe.Format)
	assert.Greater(t, pe.Line, 0)
}

func TestParseXMLLevels(t *testing.T) {
	src := `<?xml version="1.0"?>
<catalog version="2">
  <book id="b1"><title>Go</title></book>
  <book id="b2"><title>Rust</title></book>
  <magazine>Monthly</magazine>
</catalog>`
	tree := mustParse(t, XML, src)

	root := tree.Root()
	assert.Equal(t, "catalog", root.Path)
	assert.Equal(t, TypeElement, root.Type)

	var names []string
	for _, c := range tree.Children(root.ID) {
		names = append(names, c.Path)
	}
	assert.Equal(t, []string{"catalog/@version", "catalog/book[0]", "catalog/book[1]", "catalog/magazine[0]"}, names)

	title, ok := tree.FindPath("catalog/book[1]/title[0]")
	require.True(t, ok)
	assert.Equal(t, "Rust", title.Content)
	assert.Equal(t, 2, title.Level)

	id, ok := tree.FindPath("catalog/book[0]/@id")
	require.True(t, ok)
	assert.Equal(t, TypeAttribute, id.Type)
	assert.Equal(t, "b1", id.Content)
	assert.Equal(t, 3, id.Line)
}

func TestParseXMLQualifiedAttributes(t *testing.T) {
	src := `<doc xmlns:a="urn:a" xml:lang="en" lang="fr"><p a:id="1" id="2"/><q xmlns:b="urn:a" b:id="3"/></doc>`
	tree := mustParse(t, XML, src)

	var got []string
	for _, n := range tree.Nodes {
		if n.Type == TypeAttribute {
			got = append(got, n.Path+"="+n.Content)
		}
	}
	assert.Equal(t, []string{
		"doc/@xmlns:a=urn:a",
		"doc/@xml:lang=en",
		"doc/@lang=fr",
		"doc/p[0]/@a:id=1",
		"doc/p[0]/@id=2",
		"doc/q[0]/@xmlns:b=urn:a",
		"doc/q[0]/@b:id=3",
	}, got)

	id, ok := tree.FindPath("doc/p[0]/@a:id")
	require.True(t, ok)
	assert.Equal(t, "a:id", id.Name)
}

func TestParseXMLErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unbalanced": "<a><b></a>",
		"unclosed":   "<a><b></b>",
		"two roots":  "<a/><b/>",
		"no root":    "   ",
		"stray text": "<a/>tail",
	} {
		t.Run(name, func(t *testing.T) {
			tree, err := Parse("bad.xml", XML, []byte(src))
			assert.Nil(t, tree)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, "bad.xml", pe.Path)
		})
	}
}

func TestParseMarkdownScenario(t *testing.T) {
	tree := mustParse(t, Markdown, "# A\n\n## B\ntext\n\n# C")

	top := tree.Children(tree.RootID)
	require.Len(t, top, 2)
	assert.Equal(t, "A", top[0].Name)
	assert.Equal(t, "C", top[1].Name)
	assert.Equal(t, 1, top[0].Level)
	assert.Equal(t, 1, top[1].Level)

	sub := tree.Children(top[0].ID)
	require.Len(t, sub, 1)
	assert.Equal(t, "B", sub[0].Name)
	assert.Equal(t, 2, sub[0].Level)
	assert.Contains(t, sub[0].Content, "text")
}

func TestParseMarkdownBlocks(t *testing.T) {
	src := "intro line\n\n# Guide\n\nSome *bold* prose.\n\n- one\n- two\n\n```go\nfmt.Println()\n```\n\n> quoted\n\n### Skipped rank\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n## Back\n\n---\n"
	tree := mustParse(t, Markdown, src)

	got := shapes(tree.Nodes)
	want := []shape{
		{TypeDocument, "", "root", 0, "", 2},
		{TypeParagraph, "", "root/paragraph[0]", 1, "intro line", 0},
		{TypeHeading, "Guide", "root/heading[0]", 1, "Some *bold* prose.\n\n- one\n- two\n\nfmt.Println()\n\n> quoted", 6},
		{TypeParagraph, "", "root/heading[0]/paragraph[0]", 2, "Some *bold* prose.", 0},
		{TypeList, "", "root/heading[0]/list[0]", 2, "- one\n- two", 0},
		{TypeCode, "", "root/heading[0]/code[0]", 2, "fmt.Println()", 0},
		{TypeBlockquote, "", "root/heading[0]/blockquote[0]", 2, "> quoted", 0},
		{TypeHeading, "Skipped rank", "root/heading[0]/heading[0]", 2, "| a | b |\n|---|---|\n| 1 | 2 |", 1},
		{TypeTable, "", "root/heading[0]/heading[0]/table[0]", 3, "| a | b |\n|---|---|\n| 1 | 2 |", 0},
		{TypeHeading, "Back", "root/heading[0]/heading[1]", 2, "", 1},
		{TypeRule, "", "root/heading[0]/heading[1]/rule[0]", 3, "", 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}

	code, _ := tree.FindPath("root/heading[0]/code[0]")
	assert.Equal(t, "go", code.Attrs["lang"])
	guide, _ := tree.FindPath("root/heading[0]")
	assert.Equal(t, "1", guide.Attrs["rank"])
	assert.Equal(t, 3, guide.Line)
}

func TestParseDeterministic(t *testing.T) {
	docs := map[Format]string{
		JSON:     `{"a": {"b": [true, {"c": "d"}]}}`,
		YAML:     "a:\n  b:\n    - true\n    - c: d\n",
		XML:      `<a x="1"><b><c>d</c></b><b/></a>`,
		Markdown: "# A\n\ntext\n\n## B\n\n- x\n",
	}
	for f, src := range docs {
		t.Run(f.String(), func(t *testing.T) {
			first := mustParse(t, f, src)
			second := mustParse(t, f, src)
			assert.Equal(t, first.IDs(), second.IDs())
			if diff := cmp.Diff(first.Nodes, second.Nodes); diff != "" {
				t.Errorf("re-parse differs:\n%s", diff)
			}
		})
	}
}

func TestParseRejectsExcessiveDepth(t *testing.T) {
	src := strings.Repeat("[", MaxDepth+1) + strings.Repeat("]", MaxDepth+1)
	_, err := Parse("deep.json", JSON, []byte(src))
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseFragmentMatchesFullParse(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		document string
		path     string
		fragment string
	}{
		{"json key", JSON, `{"a": {"b": [1, {"c": 2}]}, "z": 0}`, "root/a/b", `[1,{"c":2}]`},
		{"json item", JSON, `{"a": [1, {"c": 2}]}`, "root/a/[1]", `{"c":2}`},
		{"yaml key", YAML, "a:\n  b:\n    - x\n    - y\n", "root/a", "b:\n  - x\n  - y\n"},
		{"xml element", XML, `<r><s/><s k="v"><t>1</t></s></r>`, "r/s[1]", `<s k="v"><t>1</t></s>`},
		{"xml attribute", XML, `<r><s k="v"/></r>`, "r/s[0]/@k", ` k="v"`},
		{"xml namespaced element", XML, `<doc xmlns:a="urn:a"><p a:id="1" id="2"/></doc>`, "doc/p[0]", `<p a:id="1" id="2"/>`},
		{"xml namespaced attribute", XML, `<doc xmlns:a="urn:a"><p a:id="1" id="2"/></doc>`, "doc/p[0]/@a:id", ` a:id="1"`},
		{"xml reserved prefix", XML, `<doc xml:lang="en" lang="fr"/>`, "doc/@xml:lang", ` xml:lang="en"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full := mustParse(t, tt.format, tt.document)
			target, ok := full.FindPath(tt.path)
			require.True(t, ok)

			anchor, err := AnchorFor(full.Source, tt.format, tt.path)
			require.NoError(t, err)
			frag, err := ParseFragment(full.Source, tt.format, anchor, []byte(tt.fragment))
			require.NoError(t, err)

			want := full.Subtree(target.ID)
			require.Len(t, frag.Nodes, len(want))
			for i := range want {
				assert.Equal(t, want[i].ID, frag.Nodes[i].ID)
				assert.Equal(t, want[i].ParentID, frag.Nodes[i].ParentID)
				assert.Equal(t, want[i].ChildIDs, frag.Nodes[i].ChildIDs)
				assert.Equal(t, int64(-1), frag.Nodes[i].Offset)
			}
			assert.Equal(t, shapes(want), shapes(frag.Nodes))
		})
	}
}

func TestTreeSubtreeAndLeaves(t *testing.T) {
	tree := mustParse(t, JSON, `{"a": {"b": 1, "c": [2]}, "d": 3}`)
	a, _ := tree.FindPath("root/a")

	var paths []string
	for _, n := range tree.Subtree(a.ID) {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"root/a", "root/a/b", "root/a/c", "root/a/c/[0]"}, paths)
	assert.Len(t, tree.LeafNodes(), 3)
}

func TestNewTreeValidates(t *testing.T) {
	tree := mustParse(t, JSON, `{"a": 1}`)
	nodes := []*Node{tree.Nodes[0].Clone(), tree.Nodes[1].Clone()}
	nodes[1].Level = 5

	_, err := NewTree(tree.Source, JSON, nodes)
	assert.Error(t, err)
}

func TestTreeBranch(t *testing.T) {
	tree := mustParse(t, XML, `<r><s><t>1</t></s><s/></r>`)
	s, _ := tree.FindPath("r/s[0]")

	branch, ok := tree.Branch(s.ID)
	require.True(t, ok)
	require.NoError(t, branch.Validate())
	assert.Equal(t, s.ID, branch.RootID)
	assert.Equal(t, tree.RootID, branch.Root().ParentID)
	assert.Equal(t, 1, branch.Root().Level)
	assert.Equal(t, shapes(tree.Subtree(s.ID)), shapes(branch.Nodes))

	branch.Root().Content = "changed"
	assert.Empty(t, s.Content)

	_, ok = tree.Branch("missing")
	assert.False(t, ok)
}
