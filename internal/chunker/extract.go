package chunker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/itsmostafa/hierchunk/internal/bridge"
	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// Extraction is the subtree at a path of a document. Node ids, paths,
// levels and content are the same whichever way it was produced; offsets
// are only known when the document was parsed in-process.
type Extraction struct {
	Tree        *hierarchy.Tree
	Accelerated bool
	Tool        string
	// Fallback is the bridge failure that sent extraction in-process, nil
	// when the bridge was disabled or succeeded.
	Fallback error
}

// Extract returns the subtree at path of the document at file. The bridge
// is tried first; absence or failure of the external tool falls back to a
// full in-process parse.
func (c *Chunker) Extract(ctx context.Context, file, path string) (*Extraction, error) {
	abs, f, err := c.detect(file)
	if err != nil {
		return nil, err
	}

	ext := &Extraction{}
	if c.bridge != nil {
		tree, tool, err := c.accelerated(ctx, abs, f, path)
		if err == nil {
			ext.Tree, ext.Accelerated, ext.Tool = tree, true, tool
			return ext, nil
		}
		ext.Fallback = err
		c.logFallback(abs, path, err)
	}

	tree, err := c.Parse(ctx, abs)
	if err != nil {
		return nil, err
	}
	node, ok := tree.FindPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", abs, ErrPathNotFound, path)
	}
	ext.Tree, _ = tree.Branch(node.ID)
	return ext, nil
}

func (c *Chunker) accelerated(ctx context.Context, source string, f hierarchy.Format, path string) (*hierarchy.Tree, string, error) {
	anchor, err := hierarchy.AnchorFor(source, f, path)
	if err != nil {
		return nil, "", &bridge.ToolError{Tool: "none", Source: source, Reason: err.Error(), Err: bridge.ErrToolUnavailable}
	}
	res := c.bridge.Extract(ctx, f, source, path)
	if !res.OK {
		return nil, res.Tool, res.Err
	}
	tree, err := hierarchy.ParseFragment(source, f, anchor, res.Fragment)
	if err != nil {
		return nil, res.Tool, &bridge.ToolError{
			Tool:   res.Tool,
			Source: source,
			Reason: "unparseable output: " + err.Error(),
			Err:    bridge.ErrToolFailed,
		}
	}
	return tree, res.Tool, nil
}

func (c *Chunker) logFallback(source, path string, err error) {
	fields := []zap.Field{zap.String("source", source), zap.String("path", path), zap.Error(err)}
	var te *bridge.ToolError
	if errors.As(err, &te) {
		fields = append(fields, zap.String("tool", te.Tool))
	}
	if errors.Is(err, bridge.ErrToolFailed) {
		c.logger.Warn("external tool failed, parsing in-process", fields...)
		return
	}
	c.logger.Debug("external tool unavailable, parsing in-process", fields...)
}
