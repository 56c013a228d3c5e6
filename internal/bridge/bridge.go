// Package bridge runs external structured-data tools (jq, yq, xmllint) to
// answer path queries without a full in-process parse. Every failure is
// reported in a Result so callers can fall back to the in-process parser.
package bridge

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

// Config configures a Bridge. Zero values select the defaults.
type Config struct {
	Timeout time.Duration
	Tools   []Tool
	Runner  Runner
	Logger  *zap.Logger
}

// Bridge dispatches accelerated extraction to the tool registered for a
// format.
type Bridge struct {
	runner  Runner
	tools   map[hierarchy.Format]Tool
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	versions map[string]versionCheck // by resolved binary path
}

type versionCheck struct {
	version string
	err     *ToolError
}

// New creates a Bridge.
func New(cfg Config) *Bridge {
	b := &Bridge{
		runner:   cfg.Runner,
		tools:    make(map[hierarchy.Format]Tool),
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		versions: make(map[string]versionCheck),
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	tools := cfg.Tools
	if tools == nil {
		tools = DefaultTools(nil)
	}
	for _, t := range tools {
		b.tools[t.Format()] = t
	}
	return b
}

// Availability is the probe result for one format.
type Availability struct {
	Format    hierarchy.Format `json:"format"`
	Tool      string           `json:"tool,omitempty"`
	Binary    string           `json:"binary,omitempty"`
	Path      string           `json:"path,omitempty"`
	Version   string           `json:"version,omitempty"`
	Available bool             `json:"available"`
	Err       error            `json:"-"`
}

// Probe reports, for every format, whether its accelerated tool can run.
func (b *Bridge) Probe(ctx context.Context) map[hierarchy.Format]Availability {
	out := make(map[hierarchy.Format]Availability, len(hierarchy.AllFormats()))
	for _, f := range hierarchy.AllFormats() {
		a := b.probe(ctx, f)
		out[f] = a
		if a.Available {
			b.logger.Debug("tool available",
				zap.String("format", f.String()),
				zap.String("tool", a.Tool),
				zap.String("path", a.Path),
				zap.String("version", a.Version))
		} else {
			b.logger.Debug("tool unavailable", zap.String("format", f.String()), zap.Error(a.Err))
		}
	}
	return out
}

func (b *Bridge) probe(ctx context.Context, f hierarchy.Format) Availability {
	a := Availability{Format: f}
	t, ok := b.tools[f]
	if !ok {
		a.Err = &ToolError{Tool: "none", Reason: fmt.Sprintf("no tool for %s", f), Err: ErrToolUnavailable}
		return a
	}
	a.Tool, a.Binary = t.Name(), t.Binary()

	path, err := b.runner.LookPath(t.Binary())
	if err != nil {
		a.Err = &ToolError{Tool: t.Name(), Reason: err.Error(), Err: ErrToolUnavailable}
		return a
	}
	a.Path = path

	vc := b.checkVersion(ctx, t, path)
	a.Version = vc.version
	if vc.err != nil {
		a.Err = vc.err
		return a
	}
	a.Available = true
	return a
}

// checkVersion runs the tool's version command once per binary and
// checks the result against Tool.Supports. Failures wrap
// ErrToolUnavailable.
func (b *Bridge) checkVersion(ctx context.Context, t Tool, path string) versionCheck {
	b.mu.Lock()
	defer b.mu.Unlock()
	if vc, ok := b.versions[path]; ok {
		return vc
	}

	var vc versionCheck
	res, err := b.runner.Run(ctx, Command{Binary: path, Args: t.VersionArgs(), Timeout: b.timeout})
	switch {
	case err != nil:
		vc.err = &ToolError{Tool: t.Name(), Reason: err.Error(), Err: ErrToolUnavailable}
	case !res.Success():
		vc.err = &ToolError{Tool: t.Name(), ExitCode: res.ExitCode, Stderr: firstLine(res.Stderr), Reason: "version check failed", Err: ErrToolUnavailable}
	default:
		vc.version = firstLine(res.Stdout)
		if vc.version == "" {
			// xmllint prints its version on stderr.
			vc.version = firstLine(res.Stderr)
		}
		if err := t.Supports(vc.version); err != nil {
			vc.err = &ToolError{Tool: t.Name(), Reason: err.Error(), Err: ErrToolUnavailable}
		}
	}
	if ctx.Err() == nil {
		b.versions[path] = vc
	}
	return vc
}

// Result is the outcome of an accelerated extraction. When OK is false,
// Err wraps ErrToolUnavailable or ErrToolFailed and the caller should
// parse in-process instead.
type Result struct {
	OK       bool
	Tool     string
	Format   hierarchy.Format
	Query    string
	Fragment []byte
	Duration time.Duration
	Err      error
}

// Extract asks the tool for f to print the node at query from source.
// It never returns an error directly; failures are carried in the Result.
func (b *Bridge) Extract(ctx context.Context, f hierarchy.Format, source, query string) Result {
	res := Result{Format: f, Query: query}
	fail := func(te *ToolError) Result {
		te.Source = source
		res.Err = te
		b.logger.Debug("accelerated extraction failed",
			zap.String("source", source),
			zap.String("query", query),
			zap.Error(te))
		return res
	}

	t, ok := b.tools[f]
	if !ok {
		return fail(&ToolError{Tool: "none", Reason: fmt.Sprintf("no tool for %s", f), Err: ErrToolUnavailable})
	}
	res.Tool = t.Name()

	path, err := b.runner.LookPath(t.Binary())
	if err != nil {
		return fail(&ToolError{Tool: t.Name(), Reason: err.Error(), Err: ErrToolUnavailable})
	}
	if vc := b.checkVersion(ctx, t, path); vc.err != nil {
		te := *vc.err
		return fail(&te)
	}
	cmd, err := t.Command(source, query)
	if err != nil {
		return fail(&ToolError{Tool: t.Name(), Reason: err.Error(), Err: ErrToolFailed})
	}
	cmd.Binary = path
	cmd.Timeout = b.timeout

	out, err := b.runner.Run(ctx, cmd)
	res.Duration = out.Duration
	switch {
	case err != nil:
		return fail(&ToolError{Tool: t.Name(), Reason: err.Error(), Err: ErrToolFailed})
	case out.TimedOut:
		return fail(&ToolError{Tool: t.Name(), ExitCode: out.ExitCode, Reason: fmt.Sprintf("timed out after %s", b.timeout), Err: ErrToolFailed})
	case out.ExitCode != 0:
		return fail(&ToolError{Tool: t.Name(), ExitCode: out.ExitCode, Stderr: firstLine(out.Stderr), Err: ErrToolFailed})
	}

	frag, err := t.Normalize(out.Stdout)
	if err != nil {
		return fail(&ToolError{Tool: t.Name(), Reason: "malformed output: " + err.Error(), Err: ErrToolFailed})
	}
	res.OK = true
	res.Fragment = frag
	b.logger.Debug("accelerated extraction",
		zap.String("source", source),
		zap.String("tool", t.Name()),
		zap.String("query", query),
		zap.Duration("took", out.Duration))
	return res
}

func firstLine(b []byte) string {
	s := string(bytes.TrimSpace(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
