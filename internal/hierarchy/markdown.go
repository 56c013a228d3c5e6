package hierarchy

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

type headingEntry struct {
	node *Node
	rank int
	body []string
}

// parseMarkdown nests blocks under the nearest open heading. A heading
// closes every open heading of equal or lower rank, so tree levels stay
// contiguous even when ranks are skipped.
func parseMarkdown(b *builder, content []byte) error {
	doc := markdown.Parser().Parse(text.NewReader(content))
	root := b.root(TypeDocument, "", RootStep, 0)

	var stack []*headingEntry
	closeSection := func(e *headingEntry) {
		e.node.Content = strings.Join(e.body, "\n\n")
	}

	for blk := doc.FirstChild(); blk != nil; blk = blk.NextSibling() {
		start, stop := blockSpan(blk, content)

		if h, ok := blk.(*ast.Heading); ok {
			for len(stack) > 0 && stack[len(stack)-1].rank >= h.Level {
				closeSection(stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			parent := root
			if len(stack) > 0 {
				parent = stack[len(stack)-1].node
			}
			i := b.nextIndex(parent, string(TypeHeading))
			n, err := b.child(parent, TypeHeading, inlineText(h, content), namedStep(string(TypeHeading), i), start)
			if err != nil {
				return err
			}
			n.EndOffset = stop
			n.Attrs = map[string]string{"rank": strconv.Itoa(h.Level)}
			stack = append(stack, &headingEntry{node: n, rank: h.Level})
			continue
		}

		typ, body := markdownBlock(blk, content, start, stop)
		parent := root
		if len(stack) > 0 {
			parent = stack[len(stack)-1].node
		}
		i := b.nextIndex(parent, string(typ))
		n, err := b.child(parent, typ, "", namedStep(string(typ), i), start)
		if err != nil {
			return err
		}
		n.Content = body
		n.EndOffset = stop
		if fc, ok := blk.(*ast.FencedCodeBlock); ok {
			if lang := fc.Language(content); len(lang) > 0 {
				n.Attrs = map[string]string{"lang": string(lang)}
			}
		}
		if len(stack) > 0 && body != "" {
			top := stack[len(stack)-1]
			top.body = append(top.body, body)
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		closeSection(stack[i])
	}
	return nil
}

func markdownBlock(blk ast.Node, src []byte, start, stop int64) (NodeType, string) {
	switch blk.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return TypeParagraph, strings.TrimSpace(string(linesValue(blk, src)))
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return TypeCode, strings.TrimRight(string(linesValue(blk, src)), "\n")
	case *ast.List:
		return TypeList, spanText(src, start, stop)
	case *ast.Blockquote:
		return TypeBlockquote, spanText(src, start, stop)
	case *ast.HTMLBlock:
		return TypeHTML, spanText(src, start, stop)
	case *ast.ThematicBreak:
		return TypeRule, ""
	}
	if blk.Kind() == east.KindTable {
		return TypeTable, spanText(src, start, stop)
	}
	return TypeParagraph, spanText(src, start, stop)
}

func linesValue(blk ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	lines := blk.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.Bytes()
}

func spanText(src []byte, start, stop int64) string {
	if start < 0 || stop <= start {
		return ""
	}
	return strings.TrimSpace(string(src[start:stop]))
}

// blockSpan returns the byte range covered by the line segments of blk and
// its block descendants, widened to whole lines. It returns -1 when the
// block carries no segments.
func blockSpan(blk ast.Node, src []byte) (int64, int64) {
	start, stop := -1, -1
	stack := []ast.Node{blk}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() != ast.TypeBlock {
			continue
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if start < 0 || seg.Start < start {
				start = seg.Start
			}
			if seg.Stop > stop {
				stop = seg.Stop
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			stack = append(stack, c)
		}
	}
	if start < 0 {
		return -1, -1
	}
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	for stop > 0 && stop < len(src) && src[stop-1] != '\n' && src[stop] != '\n' {
		stop++
	}
	return int64(start), int64(stop)
}

// inlineText collects the plain text of an inline subtree.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	stack := []ast.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch t := cur.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			continue
		case *ast.String:
			sb.Write(t.Value)
			continue
		}
		var children []ast.Node
		for c := cur.FirstChild(); c != nil; c = c.NextSibling() {
			children = append(children, c)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return strings.TrimSpace(sb.String())
}
