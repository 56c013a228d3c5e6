package bridge

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// fakeRunner resolves binaries from paths and answers every command with
// the outcome registered for its binary. Version commands for binaries in
// versions print that version instead.
type fakeRunner struct {
	paths    map[string]string
	versions map[string]string
	outcomes map[string]Outcome
	runErr   error
	calls    []Command
}

var supportedVersions = map[string]string{
	"/bin/jq":      "jq-1.7.1",
	"/bin/yq":      "yq (https://github.com/mikefarah/yq/) version v4.44.3",
	"/bin/xmllint": "xmllint: using libxml version 20914",
}

func (r *fakeRunner) LookPath(binary string) (string, error) {
	if p, ok := r.paths[binary]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: binary, Err: exec.ErrNotFound}
}

func (r *fakeRunner) Run(_ context.Context, cmd Command) (Outcome, error) {
	r.calls = append(r.calls, cmd)
	if v, ok := r.versions[cmd.Binary]; ok && len(cmd.Args) == 1 && cmd.Args[0] == "--version" {
		return Outcome{Stdout: []byte(v + "\n")}, nil
	}
	if r.runErr != nil {
		return Outcome{}, r.runErr
	}
	return r.outcomes[cmd.Binary], nil
}

func TestPathFilter(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"root", "."},
		{"root/a", `.["a"]`},
		{"root/a/[0]/b", `.["a"][0]["b"]`},
		{"root/a~1b/~0c", `.["a/b"]["~c"]`},
		{`root/say "hi"`, `.["say \"hi\""]`},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := pathFilter(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := pathFilter("doc/a")
	assert.Error(t, err)
}

func TestXPathFor(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"catalog", "/*[local-name()='catalog']"},
		{"catalog/book[1]", "/*[local-name()='catalog']/*[local-name()='book'][2]"},
		{"catalog/book[0]/@id", "/*[local-name()='catalog']/*[local-name()='book'][1]/@*[local-name()='id' and namespace-uri()='']"},
		{"svg/a[0]/@xlink:href", "/*[local-name()='svg']/*[local-name()='a'][1]/@*[name()='xlink:href']"},
		{"doc/@xml:lang", "/*[local-name()='doc']/@*[name()='xml:lang']"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := xpathFor(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "catalog/book", "catalog/@id/x", "catalog/@xmlns:x"} {
		_, err := xpathFor(bad)
		assert.Error(t, err, bad)
	}
}

func TestProbeReportsUnavailable(t *testing.T) {
	b := New(Config{Runner: &fakeRunner{}})

	got := b.Probe(context.Background())
	require.Len(t, got, len(hierarchy.AllFormats()))
	for f, a := range got {
		assert.False(t, a.Available, f.String())
		assert.True(t, errors.Is(a.Err, ErrToolUnavailable), f.String())
	}
	assert.Equal(t, "jq", got[hierarchy.JSON].Tool)
	assert.Empty(t, got[hierarchy.Markdown].Tool)
}

func TestProbeReadsVersion(t *testing.T) {
	r := &fakeRunner{
		paths: map[string]string{"jq": "/usr/bin/jq", "xmllint": "/usr/bin/xmllint"},
		outcomes: map[string]Outcome{
			"/usr/bin/jq":      {Stdout: []byte("jq-1.7.1\n")},
			"/usr/bin/xmllint": {Stderr: []byte("xmllint: using libxml version 21205\n   compiled with: Threads Tree\n")},
		},
	}
	got := New(Config{Runner: r}).Probe(context.Background())

	assert.True(t, got[hierarchy.JSON].Available)
	assert.Equal(t, "jq-1.7.1", got[hierarchy.JSON].Version)
	assert.Equal(t, "/usr/bin/jq", got[hierarchy.JSON].Path)
	assert.Equal(t, "xmllint: using libxml version 21205", got[hierarchy.XML].Version)
	assert.False(t, got[hierarchy.YAML].Available)
}

func TestExtractSuccess(t *testing.T) {
	r := &fakeRunner{
		paths:    map[string]string{"jq": "/opt/jq"},
		versions: map[string]string{"/opt/jq": "jq-1.7.1"},
		outcomes: map[string]Outcome{"/opt/jq": {Stdout: []byte("{\"c\":2}\n")}},
	}
	b := New(Config{Runner: r, Timeout: time.Second})

	res := b.Extract(context.Background(), hierarchy.JSON, "doc.json", "root/a/[1]")
	require.True(t, res.OK, "err: %v", res.Err)
	assert.NoError(t, res.Err)
	assert.Equal(t, "jq", res.Tool)
	assert.Equal(t, `{"c":2}`, string(res.Fragment))

	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"--version"}, r.calls[0].Args)
	assert.Equal(t, "/opt/jq", r.calls[1].Binary)
	assert.Equal(t, []string{"-e", "-c", `.["a"][1]`, "doc.json"}, r.calls[1].Args)
	assert.Equal(t, time.Second, r.calls[1].Timeout)

	// The version is checked once per binary.
	b.Extract(context.Background(), hierarchy.JSON, "doc.json", "root")
	assert.Len(t, r.calls, 3)
}

func TestExtractYQKeepsScalarsWrapped(t *testing.T) {
	r := &fakeRunner{
		paths:    map[string]string{"yq": "/bin/yq"},
		versions: supportedVersions,
		outcomes: map[string]Outcome{"/bin/yq": {Stdout: []byte("\"[1, 2]\"\n")}},
	}
	res := New(Config{Runner: r}).Extract(context.Background(), hierarchy.YAML, "doc.yaml", "root/s")
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Equal(t, []string{"-e", "--unwrapScalar=false", `.["s"]`, "doc.yaml"}, r.calls[len(r.calls)-1].Args)
}

func TestExtractRejectsUnsupportedVersions(t *testing.T) {
	tests := []struct {
		name    string
		format  hierarchy.Format
		binary  string
		version string
	}{
		{"jq 1.6", hierarchy.JSON, "jq", "jq-1.6"},
		{"jq unknown", hierarchy.JSON, "jq", "jq-master"},
		{"python yq", hierarchy.YAML, "yq", "yq 3.4.3"},
		{"yq v3", hierarchy.YAML, "yq", "yq version 3.4.1 (https://github.com/mikefarah/yq/)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/bin/" + tt.binary
			r := &fakeRunner{
				paths:    map[string]string{tt.binary: path},
				versions: map[string]string{path: tt.version},
				outcomes: map[string]Outcome{path: {Stdout: []byte("1\n")}},
			}
			b := New(Config{Runner: r})

			res := b.Extract(context.Background(), tt.format, "src", "root/a")
			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Err, ErrToolUnavailable)
			require.Len(t, r.calls, 1, "only the version command runs")

			a := b.Probe(context.Background())[tt.format]
			assert.False(t, a.Available)
			assert.Equal(t, tt.version, a.Version)
			assert.ErrorIs(t, a.Err, ErrToolUnavailable)
		})
	}
}

func TestToolSupports(t *testing.T) {
	tests := []struct {
		tool    Tool
		version string
		ok      bool
	}{
		{NewJQ(""), "jq-1.7", true},
		{NewJQ(""), "jq-1.7.1", true},
		{NewJQ(""), "jq-1.8.0", true},
		{NewJQ(""), "jq-1.6", false},
		{NewJQ(""), "jq-1.5rc2-174-g597c1f6", false},
		{NewJQ(""), "", false},
		{NewYQ(""), "yq (https://github.com/mikefarah/yq/) version v4.44.3", true},
		{NewYQ(""), "yq (https://github.com/mikefarah/yq/) version 4.9.6", true},
		{NewYQ(""), "yq 3.4.3", false},
		{NewXMLLint(""), "xmllint: using libxml version 21205", true},
	}
	for _, tt := range tests {
		t.Run(tt.tool.Name()+" "+tt.version, func(t *testing.T) {
			err := tt.tool.Supports(tt.version)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExtractFailures(t *testing.T) {
	present := map[string]string{"jq": "/bin/jq", "yq": "/bin/yq", "xmllint": "/bin/xmllint"}
	v := supportedVersions
	tests := []struct {
		name     string
		runner   *fakeRunner
		format   hierarchy.Format
		query    string
		sentinel error
		exit     int
	}{
		{
			name:     "binary missing",
			runner:   &fakeRunner{},
			format:   hierarchy.JSON,
			query:    "root/a",
			sentinel: ErrToolUnavailable,
		},
		{
			name:     "no tool for markdown",
			runner:   &fakeRunner{paths: present, versions: v},
			format:   hierarchy.Markdown,
			query:    "root/heading[0]",
			sentinel: ErrToolUnavailable,
		},
		{
			name:     "non-zero exit",
			runner:   &fakeRunner{paths: present, versions: v, outcomes: map[string]Outcome{"/bin/jq": {ExitCode: 5, Stderr: []byte("jq: error: Cannot index number with \"a\"\n")}}},
			format:   hierarchy.JSON,
			query:    "root/a",
			sentinel: ErrToolFailed,
			exit:     5,
		},
		{
			name:     "timeout",
			runner:   &fakeRunner{paths: present, versions: v, outcomes: map[string]Outcome{"/bin/yq": {ExitCode: -1, TimedOut: true}}},
			format:   hierarchy.YAML,
			query:    "root/a",
			sentinel: ErrToolFailed,
			exit:     -1,
		},
		{
			name:     "malformed output",
			runner:   &fakeRunner{paths: present, versions: v, outcomes: map[string]Outcome{"/bin/xmllint": {Stdout: []byte("XPath set is empty\n")}}},
			format:   hierarchy.XML,
			query:    "r/s[0]",
			sentinel: ErrToolFailed,
		},
		{
			name:     "multi-document yaml",
			runner:   &fakeRunner{paths: present, versions: v, outcomes: map[string]Outcome{"/bin/yq": {Stdout: []byte("a: 1\n---\na: 2\n")}}},
			format:   hierarchy.YAML,
			query:    "root/[0]",
			sentinel: ErrToolFailed,
		},
		{
			name:     "untranslatable query",
			runner:   &fakeRunner{paths: present, versions: v},
			format:   hierarchy.JSON,
			query:    "catalog/book[0]",
			sentinel: ErrToolFailed,
		},
		{
			name:     "start failure",
			runner:   &fakeRunner{paths: present, versions: v, runErr: errors.New("fork/exec: permission denied")},
			format:   hierarchy.JSON,
			query:    "root",
			sentinel: ErrToolFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(Config{Runner: tt.runner}).Extract(context.Background(), tt.format, "src", tt.query)
			assert.False(t, res.OK)
			assert.Nil(t, res.Fragment)
			require.Error(t, res.Err)
			assert.True(t, errors.Is(res.Err, tt.sentinel), "got %v", res.Err)

			var te *ToolError
			require.True(t, errors.As(res.Err, &te))
			assert.Equal(t, "src", te.Source)
			assert.Equal(t, tt.exit, te.ExitCode)
			assert.Contains(t, te.Error(), "src")
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		out  string
		want string
		ok   bool
	}{
		{"jq scalar", NewJQ(""), "\"x\"\n", `"x"`, true},
		{"jq empty", NewJQ(""), "\n", "", false},
		{"jq stream", NewJQ(""), "1\n2\n", "", false},
		{"jq literals", NewJQ(""), `{"a":1.50,"b":100000000000000000001,"c":-0.0}`, `{"a":1.50,"b":100000000000000000001,"c":-0.0}`, true},
		{"jq exponent", NewJQ(""), `{"x":1E+2}`, "", false},
		{"jq small exponent", NewJQ(""), `[1e-7]`, "", false},
		{"yq mapping", NewYQ(""), "b: 1\n", "b: 1\n", true},
		{"yq two docs", NewYQ(""), "1\n---\n2\n", "", false},
		{"xmllint element", NewXMLLint(""), "<s k=\"v\"><t>1</t></s>\n", `<s k="v"><t>1</t></s>`, true},
		{"xmllint attribute", NewXMLLint(""), " k=\"v\"\n", `k="v"`, true},
		{"xmllint broken", NewXMLLint(""), "<s><t></s>", "", false},
		{"xmllint text", NewXMLLint(""), "plain", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tool.Normalize([]byte(tt.out))
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDefaultToolsOverrides(t *testing.T) {
	tools := DefaultTools(map[string]string{"yq": "/opt/yq4"})
	require.Len(t, tools, 3)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name()+"="+tool.Binary())
	}
	assert.Equal(t, "jq=jq yq=/opt/yq4 xmllint=xmllint", strings.Join(names, " "))
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var r ExecRunner

	out, err := r.Run(context.Background(), Command{Binary: "sh", Args: []string{"-c", "echo out; echo err >&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, "out\n", string(out.Stdout))
	assert.Equal(t, "err\n", string(out.Stderr))
	assert.False(t, out.Success())

	out, err = r.Run(context.Background(), Command{Binary: "sh", Args: []string{"-c", "exec sleep 5"}, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, out.TimedOut)

	_, err = r.Run(context.Background(), Command{Binary: "/nonexistent/hierchunk-tool"})
	assert.Error(t, err)
}
