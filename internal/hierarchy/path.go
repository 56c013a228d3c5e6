package hierarchy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RootStep is the path step of a document root for formats without a
// named root element.
const RootStep = "root"

// PathSeparator separates steps in a node path.
const PathSeparator = "/"

// idNamespace scopes name-based node ids to this engine.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/itsmostafa/hierchunk/node"))

// NodeID derives the stable id of the node at path within source.
// Equal inputs always give equal ids.
func NodeID(source, path string) string {
	return uuid.NewSHA1(idNamespace, []byte(source+"\x00"+path)).String()
}

var stepEscaper = strings.NewReplacer("~", "~0", "/", "~1")
var stepUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// EscapeStep escapes a key so it can be used as a single path step.
func EscapeStep(name string) string {
	return stepEscaper.Replace(name)
}

// UnescapeStep reverses EscapeStep.
func UnescapeStep(step string) string {
	return stepUnescaper.Replace(step)
}

// JoinPath appends step to parent.
func JoinPath(parent, step string) string {
	if parent == "" {
		return step
	}
	return parent + PathSeparator + step
}

// SplitPath splits a path into its (still escaped) steps.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}

// ParentPath returns the path of the parent of path, or "" for a root.
func ParentPath(path string) string {
	i := strings.LastIndex(path, PathSeparator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// HasPathPrefix reports whether path equals prefix or lies beneath it.
func HasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || prefix == "" || path[len(prefix)] == '/'
}

func indexStep(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func namedStep(name string, i int) string {
	return fmt.Sprintf("%s[%d]", EscapeStep(name), i)
}

// Step is a decoded path step.
type Step struct {
	Name      string
	Index     int
	HasIndex  bool
	Attribute bool
}

// ParseStep decodes "name", "name[i]", "[i]" and "@attr" steps.
func ParseStep(step string) (Step, error) {
	if step == "" {
		return Step{}, fmt.Errorf("empty path step")
	}
	if strings.HasPrefix(step, "@") {
		return Step{Name: UnescapeStep(step[1:]), Attribute: true}, nil
	}
	if strings.HasSuffix(step, "]") {
		open := strings.LastIndex(step, "[")
		if open < 0 {
			return Step{}, fmt.Errorf("malformed path step %q", step)
		}
		i, err := strconv.Atoi(step[open+1 : len(step)-1])
		if err != nil || i < 0 {
			return Step{}, fmt.Errorf("malformed index in path step %q", step)
		}
		return Step{Name: UnescapeStep(step[:open]), Index: i, HasIndex: true}, nil
	}
	return Step{Name: UnescapeStep(step)}, nil
}
