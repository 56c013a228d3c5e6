package hierarchy

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var yamlErrorLine = regexp.MustCompile(`line (\d+)`)

// yamlWork is a node still to be created: its parent, identity and the
// YAML value it will carry.
type yamlWork struct {
	parent *Node
	typ    NodeType
	name   string
	step   string
	at     *yaml.Node
	value  *yaml.Node
}

func parseYAML(b *builder, content []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	var docs []*yaml.Node
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.yamlError(err)
		}
		docs = append(docs, &doc)
	}

	root := b.root(TypeDocument, "", RootStep, 0)
	var stack []yamlWork
	switch len(docs) {
	case 0:
		return nil
	case 1:
		if len(docs[0].Content) == 0 {
			return nil
		}
		root.Offset = b.yamlOffset(docs[0].Content[0])
		root.Line = docs[0].Content[0].Line
		return b.fillYAML(root, docs[0].Content[0], stack)
	default:
		for i := len(docs) - 1; i >= 0; i-- {
			var value *yaml.Node
			if len(docs[i].Content) > 0 {
				value = docs[i].Content[0]
			}
			stack = append(stack, yamlWork{parent: root, typ: TypeDocument, name: indexStep(i), step: indexStep(i), at: docs[i], value: value})
		}
		return b.drainYAML(stack)
	}
}

// fillYAML sets the content of n from value, or schedules its children.
func (b *builder) fillYAML(n *Node, value *yaml.Node, stack []yamlWork) error {
	stack = b.scheduleYAML(n, value, stack)
	return b.drainYAML(stack)
}

func (b *builder) drainYAML(stack []yamlWork) error {
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, err := b.child(w.parent, w.typ, w.name, w.step, b.yamlOffset(w.at))
		if err != nil {
			return err
		}
		if w.value != nil {
			stack = b.scheduleYAML(n, w.value, stack)
		}
	}
	return nil
}

// scheduleYAML pushes the children of value in reverse so they pop in
// document order.
func (b *builder) scheduleYAML(n *Node, value *yaml.Node, stack []yamlWork) []yamlWork {
	switch value.Kind {
	case yaml.MappingNode:
		for i := len(value.Content) - 2; i >= 0; i -= 2 {
			k, v := value.Content[i], value.Content[i+1]
			stack = append(stack, yamlWork{parent: n, typ: TypeKey, name: k.Value, step: EscapeStep(k.Value), at: k, value: v})
		}
	case yaml.SequenceNode:
		for i := len(value.Content) - 1; i >= 0; i-- {
			stack = append(stack, yamlWork{parent: n, typ: TypeArrayItem, name: indexStep(i), step: indexStep(i), at: value.Content[i], value: value.Content[i]})
		}
	case yaml.AliasNode:
		n.Content = "*" + value.Value
	case yaml.DocumentNode:
		if len(value.Content) > 0 {
			stack = b.scheduleYAML(n, value.Content[0], stack)
		}
	default:
		n.Content = value.Value
	}
	return stack
}

// yamlOffset converts the 1-based line/column of v into a byte offset.
func (b *builder) yamlOffset(v *yaml.Node) int64 {
	if v == nil || v.Line == 0 {
		return -1
	}
	off := b.lineOffset(v.Line)
	return off + int64(b.columnBytes(off, v.Column))
}

// columnBytes returns the byte width of the first col-1 runes after off.
func (b *builder) columnBytes(off int64, col int) int {
	src := b.content
	width := 0
	for i := 1; i < col && int(off)+width < len(src); i++ {
		_, size := utf8.DecodeRune(src[int(off)+width:])
		width += size
	}
	return width
}

func (b *builder) yamlError(err error) error {
	msg := err.Error()
	line := 0
	if m := yamlErrorLine.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	pe := b.errorf(b.lineOffset(line), "%s", msg)
	if line > 0 {
		pe.Line = line
	}
	return pe
}
