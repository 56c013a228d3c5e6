package hierarchy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

type jsonFrame struct {
	node    *Node
	object  bool
	pending *Node // key node awaiting its value
	items   int
}

func parseJSON(b *builder, content []byte) error {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var (
		stack []*jsonFrame
		root  *Node
	)
	for {
		start := skipJSONSeparators(content, dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.jsonError(err, start)
		}

		var dest *Node
		if len(stack) == 0 {
			if root != nil {
				return b.errorf(start, "unexpected value after top-level value")
			}
			root = b.root(TypeDocument, "", RootStep, start)
			dest = root
		} else {
			top := stack[len(stack)-1]
			switch {
			case tok == json.Delim('}') || tok == json.Delim(']'):
				top.node.EndOffset = dec.InputOffset()
				stack = stack[:len(stack)-1]
				continue
			case top.object && top.pending == nil:
				key, _ := tok.(string)
				if top.pending, err = b.child(top.node, TypeKey, key, EscapeStep(key), start); err != nil {
					return err
				}
				continue
			case top.object:
				dest, top.pending = top.pending, nil
			default:
				if dest, err = b.child(top.node, TypeArrayItem, indexStep(top.items), indexStep(top.items), start); err != nil {
					return err
				}
				top.items++
			}
		}

		switch t := tok.(type) {
		case json.Delim:
			stack = append(stack, &jsonFrame{node: dest, object: t == '{'})
		default:
			dest.Content = jsonScalar(t)
			dest.EndOffset = dec.InputOffset()
		}
	}

	if root == nil {
		return b.errorf(int64(len(content)), "empty document")
	}
	if len(stack) > 0 {
		return b.errorf(int64(len(content)), "unexpected end of input")
	}
	return nil
}

func jsonScalar(tok json.Token) string {
	switch v := tok.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	}
	return ""
}

// skipJSONSeparators moves off past whitespace, commas and colons so it
// points at the start of the next token.
func skipJSONSeparators(content []byte, off int64) int64 {
	for off < int64(len(content)) {
		switch content[off] {
		case ' ', '\t', '\r', '\n', ',', ':':
			off++
		default:
			return off
		}
	}
	return off
}

func (b *builder) jsonError(err error, offset int64) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return b.errorf(syn.Offset, "%s", syn.Error())
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return b.errorf(offset, "unexpected end of input")
	}
	return b.errorf(offset, "%s", err.Error())
}
