package shard

import (
	"fmt"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// Policy decides shard boundaries. The set of policies is closed.
type Policy interface {
	Name() string
	validate() error
	partition(nodes []*hierarchy.Node) []*Shard
}

// ByLevel groups nodes into bands of Span consecutive levels.
type ByLevel struct {
	Span int
}

func (p ByLevel) Name() string { return fmt.Sprintf("level(span=%d)", p.Span) }

func (p ByLevel) validate() error {
	if p.Span < 1 {
		return fmt.Errorf("level span must be positive, got %d", p.Span)
	}
	return nil
}

func (p ByLevel) partition(nodes []*hierarchy.Node) []*Shard {
	bands := make(map[int]*Shard)
	maxBand := -1
	for _, n := range nodes {
		b := n.Level / p.Span
		sh, ok := bands[b]
		if !ok {
			from := b * p.Span
			sh = &Shard{
				ID:       fmt.Sprintf("level-%d-%d", from, from+p.Span-1),
				Boundary: Boundary{Kind: "level", FromLevel: from, ToLevel: from + p.Span - 1, Start: -1, End: -1},
			}
			bands[b] = sh
			if b > maxBand {
				maxBand = b
			}
		}
		sh.NodeIDs = append(sh.NodeIDs, n.ID)
	}
	out := make([]*Shard, 0, len(bands))
	for b := 0; b <= maxBand; b++ {
		if sh, ok := bands[b]; ok {
			out = append(out, sh)
		}
	}
	return out
}

// ByCount cuts document order into blocks of at most MaxNodes nodes.
type ByCount struct {
	MaxNodes int
}

func (p ByCount) Name() string { return fmt.Sprintf("count(max=%d)", p.MaxNodes) }

func (p ByCount) validate() error {
	if p.MaxNodes < 1 {
		return fmt.Errorf("max nodes must be positive, got %d", p.MaxNodes)
	}
	return nil
}

func (p ByCount) partition(nodes []*hierarchy.Node) []*Shard {
	var out []*Shard
	for start := 0; start < len(nodes); start += p.MaxNodes {
		end := min(start+p.MaxNodes, len(nodes))
		sh := &Shard{
			ID:       fmt.Sprintf("block-%04d", len(out)),
			Boundary: blockBoundary("count", nodes, start, end),
		}
		for _, n := range nodes[start:end] {
			sh.NodeIDs = append(sh.NodeIDs, n.ID)
		}
		out = append(out, sh)
	}
	return out
}

// ByTokens cuts document order into blocks whose estimated token cost
// stays within MaxTokens. A node that alone exceeds the budget gets a
// shard of its own.
type ByTokens struct {
	MaxTokens int
	Counter   TokenCounter
}

func (p ByTokens) Name() string { return fmt.Sprintf("tokens(max=%d)", p.MaxTokens) }

func (p ByTokens) validate() error {
	if p.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive, got %d", p.MaxTokens)
	}
	return nil
}

func (p ByTokens) cost(n *hierarchy.Node) int {
	count := p.Counter
	if count == nil {
		count = CountTokens
	}
	return NodeOverhead + count(n.Content)
}

func (p ByTokens) partition(nodes []*hierarchy.Node) []*Shard {
	var (
		out    []*Shard
		start  int
		tokens int
	)
	flush := func(end int) {
		b := blockBoundary("tokens", nodes, start, end)
		b.Tokens = tokens
		sh := &Shard{ID: fmt.Sprintf("tokens-%04d", len(out)), Boundary: b}
		for _, n := range nodes[start:end] {
			sh.NodeIDs = append(sh.NodeIDs, n.ID)
		}
		out = append(out, sh)
		start, tokens = end, 0
	}
	for i, n := range nodes {
		c := p.cost(n)
		if i > start && tokens+c > p.MaxTokens {
			flush(i)
		}
		tokens += c
	}
	if start < len(nodes) {
		flush(len(nodes))
	}
	return out
}

func blockBoundary(kind string, nodes []*hierarchy.Node, start, end int) Boundary {
	b := Boundary{Kind: kind, Start: start, End: end, FromLevel: nodes[start].Level, ToLevel: nodes[start].Level}
	for _, n := range nodes[start:end] {
		b.FromLevel = min(b.FromLevel, n.Level)
		b.ToLevel = max(b.ToLevel, n.Level)
	}
	return b
}

// ParsePolicy builds a policy from its name ("level", "count" or
// "tokens") and its size parameter.
func ParsePolicy(name string, size int) (Policy, error) {
	var p Policy
	switch name {
	case "level":
		p = ByLevel{Span: size}
	case "count":
		p = ByCount{MaxNodes: size}
	case "tokens":
		p = ByTokens{MaxTokens: size}
	default:
		return nil, fmt.Errorf("unknown shard policy %q (want level, count or tokens)", name)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
