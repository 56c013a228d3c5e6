package index

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StaleReason says why an index no longer matches its source.
type StaleReason string

const (
	// StaleNone means the index is fresh.
	StaleNone StaleReason = ""

	// StaleMissing means no persisted index exists.
	StaleMissing StaleReason = "index_missing"

	// StaleSourceMissing means the source file is gone.
	StaleSourceMissing StaleReason = "source_missing"

	// StaleSourceMismatch means the index was built from another path.
	StaleSourceMismatch StaleReason = "source_mismatch"

	// StaleModTime means the source was modified, even if only touched.
	StaleModTime StaleReason = "mod_time_changed"

	// StaleSize means the source size changed.
	StaleSize StaleReason = "size_changed"

	// StaleContent means the source content hash changed.
	StaleContent StaleReason = "content_changed"
)

// Signature identifies the exact state of a source file an index was
// built from.
type Signature struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
	Hash    string    `json:"hash"`
}

// SignatureFor computes the signature of the file at path. The path is
// made absolute.
func SignatureFor(path string) (Signature, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Signature{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Signature{}, err
	}
	hash, err := hashFile(abs)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Path: abs, ModTime: info.ModTime().UTC(), Size: info.Size(), Hash: hash}, nil
}

// SignatureOf describes in-memory content. Its zero ModTime never matches
// a file, so such an index is always stale against disk.
func SignatureOf(name string, content []byte) Signature {
	return Signature{Path: name, Size: int64(len(content)), Hash: HashBytes(content)}
}

// Check compares the signature with the current state of its file. The
// modification time is compared first, then size, then the content hash.
func (s Signature) Check() (StaleReason, error) {
	info, err := os.Stat(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return StaleSourceMissing, nil
	}
	if err != nil {
		return StaleNone, err
	}
	if !info.ModTime().Equal(s.ModTime) {
		return StaleModTime, nil
	}
	if info.Size() != s.Size {
		return StaleSize, nil
	}
	hash, err := hashFile(s.Path)
	if err != nil {
		return StaleNone, err
	}
	if hash != s.Hash {
		return StaleContent, nil
	}
	return StaleNone, nil
}

// HashBytes returns the hex SHA-256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
