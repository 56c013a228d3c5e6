package hierarchy

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// xmlURL is the namespace encoding/xml reports for the reserved xml
// prefix.
const xmlURL = "http://www.w3.org/XML/1998/namespace"

type xmlFrame struct {
	node     *Node
	text     []string
	bindings int
}

// xmlScope maps namespace URIs back to the prefixes declared for them so
// attribute steps keep their qualified names. Undeclared prefixes are
// left by encoding/xml in Name.Space and pass through unchanged.
type xmlScope struct {
	prefixes []string
	uris     []string
}

func (s *xmlScope) declare(attrs []xml.Attr) int {
	n := 0
	for _, a := range attrs {
		if a.Name.Space == "xmlns" {
			s.prefixes = append(s.prefixes, a.Name.Local)
			s.uris = append(s.uris, a.Value)
			n++
		}
	}
	return n
}

func (s *xmlScope) pop(n int) {
	s.prefixes = s.prefixes[:len(s.prefixes)-n]
	s.uris = s.uris[:len(s.uris)-n]
}

func (s *xmlScope) prefix(space string) string {
	if space == xmlURL {
		return "xml"
	}
	for i := len(s.uris) - 1; i >= 0; i-- {
		if s.uris[i] == space {
			return s.prefixes[i]
		}
	}
	return space
}

// attrName returns the qualified attribute name, e.g. xlink:href.
func (s *xmlScope) attrName(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case "xmlns":
		return "xmlns:" + name.Local
	}
	return s.prefix(name.Space) + ":" + name.Local
}

func parseXML(b *builder, content []byte) error {
	if b.anchor != nil && b.anchor.Type == TypeAttribute {
		return parseXMLAttribute(b, content)
	}

	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = true

	var (
		stack []*xmlFrame
		root  *Node
		scope xmlScope
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.xmlError(err, dec.InputOffset())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var n *Node
			if len(stack) == 0 {
				if root != nil {
					return b.errorf(start, "multiple root elements")
				}
				if b.anchor != nil && b.anchor.Name != t.Name.Local {
					return b.errorf(start, "fragment root <%s> does not match %s", t.Name.Local, b.anchor.Path)
				}
				root = b.root(TypeElement, t.Name.Local, EscapeStep(t.Name.Local), start)
				n = root
			} else {
				parent := stack[len(stack)-1].node
				i := b.nextIndex(parent, t.Name.Local)
				if n, err = b.child(parent, TypeElement, t.Name.Local, namedStep(t.Name.Local, i), start); err != nil {
					return err
				}
			}
			bindings := scope.declare(t.Attr)
			for _, attr := range t.Attr {
				name := scope.attrName(attr.Name)
				a, err := b.child(n, TypeAttribute, name, "@"+EscapeStep(name), start)
				if err != nil {
					return err
				}
				a.Content = attr.Value
			}
			stack = append(stack, &xmlFrame{node: n, bindings: bindings})

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if len(stack) == 0 {
				if text != "" {
					return b.errorf(start, "text outside the root element")
				}
				continue
			}
			if text != "" {
				top := stack[len(stack)-1]
				top.text = append(top.text, text)
			}

		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			scope.pop(top.bindings)
			top.node.Content = strings.Join(top.text, " ")
			top.node.EndOffset = dec.InputOffset()
		}
	}

	if root == nil {
		return b.errorf(int64(len(content)), "no root element")
	}
	if len(stack) > 0 {
		return b.errorf(int64(len(content)), "unclosed element <%s>", stack[len(stack)-1].node.Name)
	}
	return nil
}

// parseXMLAttribute handles fragments holding a single serialized
// attribute such as ` id="7"`.
func parseXMLAttribute(b *builder, content []byte) error {
	wrapped := append(append([]byte("<a "), bytes.TrimSpace(content)...), []byte("/>")...)
	dec := xml.NewDecoder(bytes.NewReader(wrapped))
	tok, err := dec.Token()
	if err != nil {
		return b.xmlError(err, 0)
	}
	se, ok := tok.(xml.StartElement)
	if !ok || len(se.Attr) != 1 {
		return b.errorf(0, "expected a single attribute")
	}
	var scope xmlScope
	if name := scope.attrName(se.Attr[0].Name); name != b.anchor.Name {
		return b.errorf(0, "attribute %q does not match %s", name, b.anchor.Path)
	}
	n := b.root(TypeAttribute, b.anchor.Name, "", 0)
	n.Content = se.Attr[0].Value
	return nil
}

func (b *builder) xmlError(err error, offset int64) error {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		pe := b.errorf(offset, "%s", syn.Msg)
		if syn.Line > 0 {
			pe.Line = syn.Line
		}
		return pe
	}
	return b.errorf(offset, "%s", err.Error())
}
