package hierarchy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		prefix string
		want   Format
	}{
		{"xml extension", "feed.xml", "", XML},
		{"yaml extension", "config.yml", "", YAML},
		{"json extension", "data.JSON", "", JSON},
		{"markdown extension", "README.md", "", Markdown},
		{"extension beats content", "notes.md", "{", Markdown},
		{"angle bracket", "blob", "  \n<root/>", XML},
		{"object", "blob", "{\"a\": 1}", JSON},
		{"array", "blob", "[1, 2]", JSON},
		{"yaml document marker", "blob", "---\na: 1", YAML},
		{"yaml key", "blob", "name: demo\n", YAML},
		{"yaml sequence", "blob", "- one\n- two\n", YAML},
		{"markdown heading", "blob", "# Title\n", Markdown},
		{"prose", "blob", "Just some words, nothing more.", Markdown},
		{"bom", "blob", "\xef\xbb\xbf{}", JSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.path, []byte(tt.prefix))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectUnrecognized(t *testing.T) {
	for _, prefix := range []string{"", "   \n\t", "\x00\x01\x02"} {
		_, err := Detect("blob", []byte(prefix))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnrecognizedFormat))

		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "blob", fe.Path)
	}
}

func TestDetectFileReadsBoundedPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc")
	// The first bytes look like JSON; the tail is garbage that would be
	// rejected if it were inspected.
	content := "{" + strings.Repeat(" ", 64) + "\x00\x00"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := DetectFile(path, 16)
	require.NoError(t, err)
	assert.Equal(t, JSON, got)
}

func TestFormatText(t *testing.T) {
	for _, f := range AllFormats() {
		text, err := f.MarshalText()
		require.NoError(t, err)

		var back Format
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, f, back)
		assert.NotNil(t, f.parser())
	}

	_, err := ParseFormat("toml")
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
	assert.False(t, Format(0).Valid())
}
