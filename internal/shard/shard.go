// Package shard partitions a parsed hierarchy into disjoint, bounded
// shards of node ids.
package shard

import (
	"fmt"
	"sort"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// Hierarchy is anything that lists its nodes in document order. Both
// *hierarchy.Tree and *index.Index satisfy it.
type Hierarchy interface {
	AllNodes() []*hierarchy.Node
}

// Boundary records the rule that cut a shard. Level shards set the level
// range; block and token shards set the document-order window [Start, End).
type Boundary struct {
	Kind      string `json:"kind"`
	FromLevel int    `json:"from_level"`
	ToLevel   int    `json:"to_level"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Tokens    int    `json:"tokens,omitempty"`
}

// Shard is one partition. NodeIDs are in document order.
type Shard struct {
	ID       string   `json:"id"`
	NodeIDs  []string `json:"node_ids"`
	Boundary Boundary `json:"boundary"`
}

// Len returns the number of nodes in the shard.
func (s *Shard) Len() int {
	return len(s.NodeIDs)
}

// Set is the result of one partitioning pass with lookups that do not
// re-walk the tree.
type Set struct {
	Policy string   `json:"policy"`
	Shards []*Shard `json:"shards"`

	byID    map[string]*Shard
	shardOf map[string]*Shard
	nodes   map[string]*hierarchy.Node
	byLevel map[int][]*hierarchy.Node
}

// Partition splits h according to p. The result is verified to be a
// disjoint cover of every node in h.
func Partition(h Hierarchy, p Policy) (*Set, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	nodes := h.AllNodes()
	shards := p.partition(nodes)
	if err := Verify(h, p.Name(), shards); err != nil {
		return nil, err
	}

	s := &Set{
		Policy:  p.Name(),
		Shards:  shards,
		byID:    make(map[string]*Shard, len(shards)),
		shardOf: make(map[string]*Shard, len(nodes)),
		nodes:   make(map[string]*hierarchy.Node, len(nodes)),
		byLevel: make(map[int][]*hierarchy.Node),
	}
	for _, sh := range shards {
		s.byID[sh.ID] = sh
		for _, id := range sh.NodeIDs {
			s.shardOf[id] = sh
		}
	}
	for _, n := range nodes {
		s.nodes[n.ID] = n
		s.byLevel[n.Level] = append(s.byLevel[n.Level], n)
	}
	return s, nil
}

// Len returns the number of shards.
func (s *Set) Len() int {
	return len(s.Shards)
}

// ByID returns the shard with the given id.
func (s *Set) ByID(id string) (*Shard, bool) {
	sh, ok := s.byID[id]
	return sh, ok
}

// ShardOf returns the shard holding nodeID.
func (s *Set) ShardOf(nodeID string) (*Shard, bool) {
	sh, ok := s.shardOf[nodeID]
	return sh, ok
}

// Nodes returns the nodes of the shard with the given id.
func (s *Set) Nodes(shardID string) ([]*hierarchy.Node, bool) {
	sh, ok := s.byID[shardID]
	if !ok {
		return nil, false
	}
	out := make([]*hierarchy.Node, len(sh.NodeIDs))
	for i, id := range sh.NodeIDs {
		out[i] = s.nodes[id]
	}
	return out, true
}

// NodesAtLevel returns every node at level in document order.
func (s *Set) NodesAtLevel(level int) []*hierarchy.Node {
	return s.byLevel[level]
}

// Levels returns the levels present, ascending.
func (s *Set) Levels() []int {
	levels := make([]int, 0, len(s.byLevel))
	for l := range s.byLevel {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

// Verify checks that shards are pairwise disjoint, that their union is
// exactly the node set of h and that shard ids are unique.
func Verify(h Hierarchy, policy string, shards []*Shard) error {
	count := make(map[string]int)
	for _, n := range h.AllNodes() {
		count[n.ID] = 0
	}
	ids := make(map[string]bool, len(shards))
	for _, sh := range shards {
		if ids[sh.ID] {
			return &ViolationError{Policy: policy, Reason: fmt.Sprintf("duplicate shard id %s", sh.ID)}
		}
		ids[sh.ID] = true
		for _, id := range sh.NodeIDs {
			c, ok := count[id]
			if !ok {
				return &ViolationError{Policy: policy, NodeID: id, Count: 1, Reason: fmt.Sprintf("shard %s holds a node outside the hierarchy", sh.ID)}
			}
			count[id] = c + 1
		}
	}
	for _, n := range h.AllNodes() {
		switch c := count[n.ID]; {
		case c == 0:
			return &ViolationError{Policy: policy, NodeID: n.ID, Count: 0, Reason: "node dropped"}
		case c > 1:
			return &ViolationError{Policy: policy, NodeID: n.ID, Count: c, Reason: "node duplicated"}
		}
	}
	return nil
}
