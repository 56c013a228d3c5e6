package bridge

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// Tool is an external program that can answer a path query for one
// format faster than a full in-process parse.
type Tool interface {
	// Name returns a human-readable name for this tool (e.g., "jq")
	Name() string

	// Binary is the executable looked up on PATH.
	Binary() string

	// Format is the document format the tool understands.
	Format() hierarchy.Format

	// VersionArgs are passed to Binary to report its version.
	VersionArgs() []string

	// Supports reports whether the installed version, the first line the
	// binary printed for VersionArgs, gives output that parses to the
	// same nodes as the document itself.
	Supports(version string) error

	// Command builds the invocation that prints the node at query, a
	// node path, from the document at source. The output must be in the
	// document's own format.
	Command(source, query string) (Command, error)

	// Normalize checks the tool's stdout and returns the fragment to
	// parse. Malformed output is an error.
	Normalize(stdout []byte) ([]byte, error)
}

// DefaultTools returns jq, yq and xmllint. overrides maps a tool name to
// a replacement binary.
func DefaultTools(overrides map[string]string) []Tool {
	return []Tool{
		NewJQ(overrides["jq"]),
		NewYQ(overrides["yq"]),
		NewXMLLint(overrides["xmllint"]),
	}
}

// JQ queries JSON documents.
type JQ struct {
	binary string
}

// NewJQ returns a jq tool using binary, or "jq" when empty.
func NewJQ(binary string) *JQ {
	if binary == "" {
		binary = "jq"
	}
	return &JQ{binary: binary}
}

func (t *JQ) Name() string { return "jq" }
func (t *JQ) Binary() string { return t.binary }
func (t *JQ) Format() hierarchy.Format { return hierarchy.JSON }
func (t *JQ) VersionArgs() []string { return []string{"--version"} }

// Supports requires jq 1.7 or later. Older releases print numbers as
// float64, so 1.50 comes back as 1.5 and large integers lose digits.
func (t *JQ) Supports(version string) error {
	major, minor, ok := parseVersion(version)
	if !ok {
		return fmt.Errorf("unrecognized jq version %q", version)
	}
	if major < 1 || (major == 1 && minor < 7) {
		return fmt.Errorf("jq %d.%d does not preserve number literals, need 1.7 or later", major, minor)
	}
	return nil
}

// Command runs jq with -e so a missing path (printed as null) fails.
func (t *JQ) Command(source, query string) (Command, error) {
	filter, err := pathFilter(query)
	if err != nil {
		return Command{}, err
	}
	return Command{Binary: t.binary, Args: []string{"-e", "-c", filter, source}}, nil
}

// Normalize also rejects numbers in exponent form. jq keeps plain
// literals as written but prints exponents canonically (1e2 as 1E+2), so
// such output may not match the source text.
func (t *JQ) Normalize(stdout []byte) ([]byte, error) {
	out := bytes.TrimSpace(stdout)
	if len(out) == 0 {
		return nil, errors.New("empty output")
	}
	if !json.Valid(out) {
		return nil, errors.New("output is not a single JSON value")
	}
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.UseNumber()
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n, ok := tok.(json.Number); ok && strings.ContainsAny(string(n), "eE") {
			return nil, fmt.Errorf("number %s may not match its source literal", n)
		}
	}
}

// YQ queries YAML documents with mikefarah/yq v4.
type YQ struct {
	binary string
}

// NewYQ returns a yq tool using binary, or "yq" when empty.
func NewYQ(binary string) *YQ {
	if binary == "" {
		binary = "yq"
	}
	return &YQ{binary: binary}
}

func (t *YQ) Name() string { return "yq" }
func (t *YQ) Binary() string { return t.binary }
func (t *YQ) Format() hierarchy.Format { return hierarchy.YAML }
func (t *YQ) VersionArgs() []string { return []string{"--version"} }

// Supports requires mikefarah/yq v4. The Python yq wrapper shares the
// binary name but speaks jq syntax and re-emits YAML through PyYAML.
func (t *YQ) Supports(version string) error {
	if !strings.Contains(version, "mikefarah") {
		return fmt.Errorf("unsupported yq %q, need mikefarah/yq v4", version)
	}
	if major, _, ok := parseVersion(version); !ok || major < 4 {
		return fmt.Errorf("unsupported yq %q, need v4 or later", version)
	}
	return nil
}

// Command keeps scalars wrapped so a quoted string prints with its
// quotes and parses back as a string.
func (t *YQ) Command(source, query string) (Command, error) {
	filter, err := pathFilter(query)
	if err != nil {
		return Command{}, err
	}
	return Command{Binary: t.binary, Args: []string{"-e", "--unwrapScalar=false", filter, source}}, nil
}

// Normalize rejects multi-document output. yq evaluates the expression
// once per document, and a multi-document source is addressed through
// per-document steps that a yq expression cannot express.
func (t *YQ) Normalize(stdout []byte) ([]byte, error) {
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, errors.New("empty output")
	}
	dec := yaml.NewDecoder(bytes.NewReader(stdout))
	docs := 0
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("output is not YAML: %w", err)
		}
		docs++
	}
	if docs != 1 {
		return nil, fmt.Errorf("output holds %d documents", docs)
	}
	return stdout, nil
}

// XMLLint queries XML documents with libxml2's xmllint.
type XMLLint struct {
	binary string
}

// NewXMLLint returns an xmllint tool using binary, or "xmllint" when
// empty.
func NewXMLLint(binary string) *XMLLint {
	if binary == "" {
		binary = "xmllint"
	}
	return &XMLLint{binary: binary}
}

func (t *XMLLint) Name() string { return "xmllint" }
func (t *XMLLint) Binary() string { return t.binary }
func (t *XMLLint) Format() hierarchy.Format { return hierarchy.XML }
func (t *XMLLint) VersionArgs() []string { return []string{"--version"} }

// Supports accepts every xmllint; --xpath serializes nodes as written.
func (t *XMLLint) Supports(string) error { return nil }

func (t *XMLLint) Command(source, query string) (Command, error) {
	expr, err := xpathFor(query)
	if err != nil {
		return Command{}, err
	}
	return Command{Binary: t.binary, Args: []string{"--nonet", "--xpath", expr, source}}, nil
}

var xmlAttrOutput = regexp.MustCompile(`^[A-Za-z_][\w.:-]*="[^"]*"$`)

// Normalize accepts one serialized element or one serialized attribute.
func (t *XMLLint) Normalize(stdout []byte) ([]byte, error) {
	out := bytes.TrimSpace(stdout)
	switch {
	case len(out) == 0:
		return nil, errors.New("empty output")
	case out[0] == '<':
		dec := xml.NewDecoder(bytes.NewReader(out))
		for {
			_, err := dec.Token()
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			if err != nil {
				return nil, fmt.Errorf("output is not XML: %w", err)
			}
		}
	case xmlAttrOutput.Match(out):
		return out, nil
	}
	return nil, errors.New("output is neither an element nor an attribute")
}

var versionNumber = regexp.MustCompile(`(\d+)\.(\d+)`)

// parseVersion finds the first major.minor pair in a version banner such
// as "jq-1.7.1" or "yq (https://github.com/mikefarah/yq/) version v4.44.3".
func parseVersion(s string) (major, minor int, ok bool) {
	m := versionNumber.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	major, _ = strconv.Atoi(m[1])
	minor, _ = strconv.Atoi(m[2])
	return major, minor, true
}

// pathFilter translates a JSON/YAML node path into the bracket filter
// syntax shared by jq and yq, e.g. root/a/[0] becomes .["a"][0].
func pathFilter(query string) (string, error) {
	steps := hierarchy.SplitPath(query)
	if len(steps) == 0 || steps[0] != hierarchy.RootStep {
		return "", fmt.Errorf("path %q must start at %q", query, hierarchy.RootStep)
	}
	var sb strings.Builder
	sb.WriteByte('.')
	for _, step := range steps[1:] {
		if strings.HasPrefix(step, "[") {
			st, err := hierarchy.ParseStep(step)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "[%d]", st.Index)
			continue
		}
		key, err := json.Marshal(hierarchy.UnescapeStep(step))
		if err != nil {
			return "", err
		}
		sb.WriteByte('[')
		sb.Write(key)
		sb.WriteByte(']')
	}
	return sb.String(), nil
}

// xpathFor translates an XML node path into an absolute XPath. Elements
// are matched by local name so documents with a default namespace
// resolve. Prefixed attributes are matched by their qualified name.
func xpathFor(query string) (string, error) {
	steps := hierarchy.SplitPath(query)
	if len(steps) == 0 {
		return "", errors.New("empty path")
	}
	var sb strings.Builder
	for i, raw := range steps {
		st, err := hierarchy.ParseStep(raw)
		if err != nil {
			return "", err
		}
		if strings.ContainsAny(st.Name, `'"`) {
			return "", fmt.Errorf("step %q cannot be expressed in XPath", raw)
		}
		switch {
		case st.Attribute:
			if i != len(steps)-1 {
				return "", fmt.Errorf("attribute step %q must be last", raw)
			}
			if strings.HasPrefix(st.Name, "xmlns") {
				return "", fmt.Errorf("namespace declaration %q is not an XPath attribute", raw)
			}
			if strings.Contains(st.Name, ":") {
				fmt.Fprintf(&sb, "/@*[name()='%s']", st.Name)
			} else {
				fmt.Fprintf(&sb, "/@*[local-name()='%s' and namespace-uri()='']", st.Name)
			}
		case i == 0:
			fmt.Fprintf(&sb, "/*[local-name()='%s']", st.Name)
		case st.HasIndex:
			fmt.Fprintf(&sb, "/*[local-name()='%s'][%d]", st.Name, st.Index+1)
		default:
			return "", fmt.Errorf("element step %q needs a sibling index", raw)
		}
	}
	return sb.String(), nil
}
