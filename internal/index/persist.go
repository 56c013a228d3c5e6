package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// CompressedExt marks index files stored zstd-compressed.
const CompressedExt = ".zst"

// Save writes idx to dest. The index is serialized in full first and then
// written to a temporary file that is renamed over dest, so readers never
// observe a partial index. A dest ending in .zst is zstd-compressed.
func Save(idx *Index, dest string) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if strings.HasSuffix(dest, CompressedExt) {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to close zstd encoder: %w", err)
		}
	}
	return writeAtomic(dest, data)
}

func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	fail := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write index %s: %w", dest, err)
	}
	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write index %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace index %s: %w", dest, err)
	}
	return nil
}

// Load reads the index at path. A file that cannot be decoded or whose
// entries are inconsistent yields a *CorruptIndexError; nothing is
// partially loaded. A missing file yields an error matching
// fs.ErrNotExist.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, CompressedExt) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, corrupt(path, -1, "decompress: %v", err)
		}
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syn):
			return nil, corrupt(path, syn.Offset, "%v", err)
		case errors.As(err, &typ):
			return nil, corrupt(path, typ.Offset, "%v", err)
		}
		return nil, corrupt(path, -1, "%v", err)
	}
	if err := idx.validate(path); err != nil {
		return nil, err
	}
	return &idx, nil
}

// validate checks a decoded index and builds its views.
func (idx *Index) validate(path string) error {
	if idx.Version != Version {
		return corrupt(path, -1, "unsupported version %d", idx.Version)
	}
	if !idx.Format.Valid() {
		return corrupt(path, -1, "unknown format")
	}
	if len(idx.Order) == 0 {
		return corrupt(path, -1, "no entries")
	}
	if len(idx.Order) != len(idx.Entries) {
		return corrupt(path, -1, "order lists %d ids but there are %d entries", len(idx.Order), len(idx.Entries))
	}
	if idx.RootID != idx.Order[0] {
		return corrupt(path, -1, "root %s is not the first node", idx.RootID)
	}

	nodes := make([]*hierarchy.Node, len(idx.Order))
	for i, id := range idx.Order {
		e, ok := idx.Entries[id]
		if !ok || e == nil || e.Node == nil {
			return corrupt(path, -1, "no entry for %s", id)
		}
		if e.Node.ID != id {
			return corrupt(path, -1, "entry %s holds node %s", id, e.Node.ID)
		}
		nodes[i] = e.Node
	}
	if nodes[0].ParentID != "" {
		return corrupt(path, -1, "root %s has parent %s", nodes[0].ID, nodes[0].ParentID)
	}
	if _, err := hierarchy.NewTree(idx.Source, idx.Format, nodes); err != nil {
		return corrupt(path, -1, "%v", err)
	}

	idx.buildViews()
	keys := idx.viewKeys()
	if !slices.Equal(keys.Types, idx.Views.Types) || !slices.Equal(keys.Levels, idx.Views.Levels) {
		return corrupt(path, -1, "secondary view keys do not match entries")
	}
	return nil
}
