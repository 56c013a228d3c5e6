package hierarchy

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Format is the closed set of document formats the engine understands.
type Format int

const (
	XML Format = iota + 1
	YAML
	JSON
	Markdown
)

// DefaultPrefixBytes bounds how much of a file DetectFile inspects.
const DefaultPrefixBytes = 4096

var formatNames = map[string]Format{
	"xml":      XML,
	"yaml":     YAML,
	"yml":      YAML,
	"json":     JSON,
	"markdown": Markdown,
	"md":       Markdown,
}

var extensions = map[string]Format{
	".xml":      XML,
	".xsd":      XML,
	".xsl":      XML,
	".svg":      XML,
	".xhtml":    XML,
	".plist":    XML,
	".yaml":     YAML,
	".yml":      YAML,
	".json":     JSON,
	".jsonc":    JSON,
	".geojson":  JSON,
	".md":       Markdown,
	".markdown": Markdown,
	".mdx":      Markdown,
}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(v string) (Format, error) {
	if f, ok := formatNames[strings.ToLower(v)]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, v)
}

// AllFormats returns every supported format.
func AllFormats() []Format {
	return []Format{XML, YAML, JSON, Markdown}
}

func (f Format) String() string {
	d, err := f.MarshalText()
	if err != nil {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return string(d)
}

func (f Format) MarshalText() ([]byte, error) {
	switch f {
	case XML:
		return []byte("xml"), nil
	case YAML:
		return []byte("yaml"), nil
	case JSON:
		return []byte("json"), nil
	case Markdown:
		return []byte("markdown"), nil
	default:
		return nil, fmt.Errorf("%d is not a format", int(f))
	}
}

func (f *Format) UnmarshalText(d []byte) error {
	pf, err := ParseFormat(string(d))
	if err != nil {
		return err
	}
	*f = pf
	return nil
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f >= XML && f <= Markdown
}

// parser returns the normalizer for the format.
func (f Format) parser() parseFunc {
	switch f {
	case XML:
		return parseXML
	case YAML:
		return parseYAML
	case JSON:
		return parseJSON
	case Markdown:
		return parseMarkdown
	}
	return nil
}

var yamlKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-"']+[ \t]*:([ \t]|$)`)

// Detect classifies a document from its path and a bounded content prefix.
// The extension wins when it is known; otherwise the first non-blank
// characters of prefix decide.
func Detect(path string, prefix []byte) (Format, error) {
	if f, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return f, nil
	}
	return sniff(path, prefix)
}

// DetectFile detects the format of the file at path reading at most limit
// bytes of it.
func DetectFile(path string, limit int) (Format, error) {
	if f, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return f, nil
	}
	if limit <= 0 {
		limit = DefaultPrefixBytes
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	return sniff(path, buf[:n])
}

func sniff(path string, prefix []byte) (Format, error) {
	prefix = bytes.TrimPrefix(prefix, []byte("\xef\xbb\xbf"))
	trimmed := bytes.TrimLeft(prefix, " \t\r\n")
	if len(trimmed) == 0 {
		return 0, &FormatError{Path: path, Reason: "empty content"}
	}
	if bytes.IndexByte(trimmed, 0) >= 0 || !utf8.Valid(trimTruncatedRune(trimmed)) {
		return 0, &FormatError{Path: path, Reason: "binary content"}
	}

	switch trimmed[0] {
	case '<':
		return XML, nil
	case '{', '[':
		return JSON, nil
	case '#':
		return Markdown, nil
	}
	if bytes.HasPrefix(trimmed, []byte("---")) {
		return YAML, nil
	}
	firstLine := trimmed
	if i := bytes.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if yamlKeyPattern.Match(bytes.TrimRight(firstLine, "\r")) || bytes.HasPrefix(firstLine, []byte("- ")) {
		return YAML, nil
	}
	return Markdown, nil
}

// trimTruncatedRune drops a multi-byte rune cut off by the prefix limit.
func trimTruncatedRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
