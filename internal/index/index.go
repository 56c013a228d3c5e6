// Package index builds, persists and queries the node index of a parsed
// document.
package index

import (
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// Version is the persisted index layout version.
const Version = 1

// Entry is an indexed node plus the metadata needed to locate it.
type Entry struct {
	Node        *hierarchy.Node `json:"node"`
	Source      string          `json:"source"`
	ContentHash string          `json:"content_hash,omitempty"`
}

// ViewKeys lists the keys of the secondary views. It is persisted so a
// loaded index can be checked against the views rebuilt from its entries.
type ViewKeys struct {
	Types  []hierarchy.NodeType `json:"types"`
	Levels []int                `json:"levels"`
}

// Index is the queryable projection of one tree. Queries never modify it;
// nodes returned by queries are shared and must be treated as read-only.
type Index struct {
	Version   int               `json:"version"`
	Source    string            `json:"source"`
	Format    hierarchy.Format  `json:"format"`
	RootID    string            `json:"root_id"`
	Signature Signature         `json:"source_signature"`
	Created   time.Time         `json:"created"`
	Order     []string          `json:"order"`
	Entries   map[string]*Entry `json:"entries"`
	Views     ViewKeys          `json:"views"`

	nodes   []*hierarchy.Node
	ordinal map[string]uint32
	byPath  map[string]uint32
	paths   []string
	byType  map[hierarchy.NodeType]*roaring.Bitmap
	byLevel map[int]*roaring.Bitmap
}

// Build indexes tree. sig describes the source the tree was parsed from.
func Build(tree *hierarchy.Tree, sig Signature) *Index {
	idx := &Index{
		Version:   Version,
		Source:    tree.Source,
		Format:    tree.Format,
		RootID:    tree.RootID,
		Signature: sig,
		Created:   time.Now().UTC(),
		Order:     make([]string, 0, tree.Len()),
		Entries:   make(map[string]*Entry, tree.Len()),
	}
	for _, n := range tree.Nodes {
		idx.Order = append(idx.Order, n.ID)
		e := &Entry{Node: n, Source: tree.Source}
		if n.Content != "" {
			e.ContentHash = HashBytes([]byte(n.Content))
		}
		idx.Entries[n.ID] = e
	}
	idx.buildViews()
	idx.Views = idx.viewKeys()
	return idx
}

// buildViews derives the secondary views from Order and Entries. Bitmaps
// hold document-order ordinals, so iterating one yields document order.
func (idx *Index) buildViews() {
	idx.nodes = make([]*hierarchy.Node, len(idx.Order))
	idx.ordinal = make(map[string]uint32, len(idx.Order))
	idx.byPath = make(map[string]uint32, len(idx.Order))
	idx.paths = make([]string, 0, len(idx.Order))
	idx.byType = make(map[hierarchy.NodeType]*roaring.Bitmap)
	idx.byLevel = make(map[int]*roaring.Bitmap)

	for i, id := range idx.Order {
		n := idx.Entries[id].Node
		ord := uint32(i)
		idx.nodes[i] = n
		idx.ordinal[id] = ord
		idx.byPath[n.Path] = ord
		idx.paths = append(idx.paths, n.Path)

		bm, ok := idx.byType[n.Type]
		if !ok {
			bm = roaring.New()
			idx.byType[n.Type] = bm
		}
		bm.Add(ord)

		bm, ok = idx.byLevel[n.Level]
		if !ok {
			bm = roaring.New()
			idx.byLevel[n.Level] = bm
		}
		bm.Add(ord)
	}
	sort.Strings(idx.paths)
}

func (idx *Index) viewKeys() ViewKeys {
	var k ViewKeys
	for t := range idx.byType {
		k.Types = append(k.Types, t)
	}
	for l := range idx.byLevel {
		k.Levels = append(k.Levels, l)
	}
	sort.Slice(k.Types, func(i, j int) bool { return k.Types[i] < k.Types[j] })
	sort.Ints(k.Levels)
	return k
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.Order)
}

// AllNodes returns all nodes in document order.
func (idx *Index) AllNodes() []*hierarchy.Node {
	return idx.nodes
}

// Root returns the root node.
func (idx *Index) Root() *hierarchy.Node {
	n, _ := idx.ByID(idx.RootID)
	return n
}

// Levels returns the distinct node levels in ascending order.
func (idx *Index) Levels() []int {
	return idx.Views.Levels
}

// Tree reassembles a tree from copies of the indexed nodes.
func (idx *Index) Tree() (*hierarchy.Tree, error) {
	nodes := make([]*hierarchy.Node, len(idx.nodes))
	for i, n := range idx.nodes {
		nodes[i] = n.Clone()
	}
	return hierarchy.NewTree(idx.Source, idx.Format, nodes)
}

func (idx *Index) collect(bm *roaring.Bitmap) []*hierarchy.Node {
	if bm == nil {
		return nil
	}
	out := make([]*hierarchy.Node, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, idx.nodes[it.Next()])
	}
	return out
}
