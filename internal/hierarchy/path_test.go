package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeIDDeterministic(t *testing.T) {
	a := NodeID("doc.json", "root/a/[0]")
	b := NodeID("doc.json", "root/a/[0]")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, NodeID("doc.json", "root/a/[1]"))
	assert.NotEqual(t, a, NodeID("other.json", "root/a/[0]"))
}

func TestStepEscaping(t *testing.T) {
	for _, name := range []string{"plain", "a/b", "~tilde", "~1", "x/~/y"} {
		assert.Equal(t, name, UnescapeStep(EscapeStep(name)))
		assert.NotContains(t, EscapeStep(name), "/")
	}
}

func TestHasPathPrefix(t *testing.T) {
	assert.True(t, HasPathPrefix("root/a", "root/a"))
	assert.True(t, HasPathPrefix("root/a/b", "root/a"))
	assert.False(t, HasPathPrefix("root/ab", "root/a"))
	assert.True(t, HasPathPrefix("root/a", ""))
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		step string
		want Step
	}{
		{"item[3]", Step{Name: "item", Index: 3, HasIndex: true}},
		{"[0]", Step{Name: "", Index: 0, HasIndex: true}},
		{"@id", Step{Name: "id", Attribute: true}},
		{"catalog", Step{Name: "catalog"}},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			got, err := ParseStep(tt.step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStep("item[x]")
	assert.Error(t, err)
	_, err = ParseStep("")
	assert.Error(t, err)
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "root/a", ParentPath("root/a/[0]"))
	assert.Equal(t, "", ParentPath("root"))
}
