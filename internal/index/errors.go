package index

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptIndex is matched by every *CorruptIndexError.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrStaleIndex signals that a persisted index no longer describes its
	// source and must be rebuilt. It is not a failure.
	ErrStaleIndex = errors.New("stale index")

	// ErrNotFound is returned by queries that name an unknown node.
	ErrNotFound = errors.New("node not found")
)

// CorruptIndexError reports a persisted index that cannot be trusted.
// Offset is the byte offset of a decode error, or -1.
type CorruptIndexError struct {
	Path   string
	Offset int64
	Reason string
}

func (e *CorruptIndexError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %v at offset %d: %s", e.Path, ErrCorruptIndex, e.Offset, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, ErrCorruptIndex, e.Reason)
}

func (e *CorruptIndexError) Unwrap() error { return ErrCorruptIndex }

// StaleIndexError tells the caller why the persisted index for Source was
// rejected.
type StaleIndexError struct {
	Source string
	Reason StaleReason
}

func (e *StaleIndexError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Source, ErrStaleIndex, e.Reason)
}

func (e *StaleIndexError) Unwrap() error { return ErrStaleIndex }

func corrupt(path string, offset int64, format string, args ...any) *CorruptIndexError {
	return &CorruptIndexError{Path: path, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
