package hierarchy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedFormat is returned when neither the extension nor the
	// content prefix identifies one of the supported formats.
	ErrUnrecognizedFormat = errors.New("format not recognized")

	// ErrParse is the sentinel matched by every *ParseError.
	ErrParse = errors.New("parse error")
)

// FormatError reports a document whose format could not be detected.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Path, ErrUnrecognizedFormat)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, ErrUnrecognizedFormat, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrUnrecognizedFormat }

// ParseError reports malformed input. Offset is a byte offset into the
// parsed content and Line is 1-based; either may be zero when the
// underlying decoder does not report it.
type ParseError struct {
	Path   string
	Format Format
	Offset int64
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("offset %d", e.Offset)
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d, offset %d", e.Line, e.Offset)
	}
	return fmt.Sprintf("%s: %s %v at %s: %s", e.Path, e.Format, ErrParse, loc, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }
