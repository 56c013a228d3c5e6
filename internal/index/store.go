package index

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultDir is where indexes are stored unless configured otherwise.
const DefaultDir = ".hierchunk/index"

// Store keeps one index file per source path at a fixed location derived
// from the absolute source path. There is no locking: concurrent writers
// for the same source race, though each write is atomic.
type Store struct {
	Dir      string
	Compress bool
	Logger   *zap.Logger
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, compress bool, logger *zap.Logger) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Dir: dir, Compress: compress, Logger: logger}
}

func (s *Store) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// PathFor returns the index file location for source.
func (s *Store) PathFor(source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	name := hex.EncodeToString(sum[:])[:16] + ".json"
	if s.Compress {
		name += CompressedExt
	}
	return filepath.Join(s.Dir, name), nil
}

// Save persists idx at the location for its signature path.
func (s *Store) Save(idx *Index) (string, error) {
	source := idx.Signature.Path
	if source == "" {
		source = idx.Source
	}
	dest, err := s.PathFor(source)
	if err != nil {
		return "", err
	}
	if err := Save(idx, dest); err != nil {
		return "", err
	}
	s.logger().Debug("index saved",
		zap.String("source", source),
		zap.String("path", dest),
		zap.Int("nodes", idx.Len()))
	return dest, nil
}

// Load reads the persisted index for source without checking freshness.
func (s *Store) Load(source string) (*Index, error) {
	path, err := s.PathFor(source)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Valid returns the persisted index for source only if its signature
// still matches the file. Otherwise it returns a *StaleIndexError telling
// the caller to rebuild. Corrupt index files are reported, not recovered.
func (s *Store) Valid(source string) (*Index, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}
	idx, err := s.Load(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, s.stale(abs, StaleMissing)
	}
	if err != nil {
		return nil, err
	}
	if idx.Signature.Path != abs {
		return nil, s.stale(abs, StaleSourceMismatch)
	}
	reason, err := idx.Signature.Check()
	if err != nil {
		return nil, err
	}
	if reason != StaleNone {
		return nil, s.stale(abs, reason)
	}
	s.logger().Debug("index valid", zap.String("source", abs), zap.Int("nodes", idx.Len()))
	return idx, nil
}

func (s *Store) stale(source string, reason StaleReason) error {
	s.logger().Info("index stale", zap.String("source", source), zap.String("reason", string(reason)))
	return &StaleIndexError{Source: source, Reason: reason}
}

// Remove deletes the persisted index for source. A missing index is not
// an error.
func (s *Store) Remove(source string) error {
	path, err := s.PathFor(source)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
