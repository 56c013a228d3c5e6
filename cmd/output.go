package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/bridge"
	"github.com/itsmostafa/hierchunk/internal/hierarchy"
	"github.com/itsmostafa/hierchunk/internal/shard"
)

var (
	// titleStyle for bold headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// successStyle for success indicators
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// errorStyle for error indicators
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// typeStyle for node types
	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	// boxStyle for summary boxes
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)
)

// contentWidth caps node content shown in text output.
const contentWidth = 60

// parseOutputMode validates --output.
func parseOutputMode(mode string) (string, error) {
	switch mode {
	case "auto", "text", "json":
		return mode, nil
	}
	return "", fmt.Errorf("invalid output format: %s (valid: auto, text, json)", mode)
}

// jsonOutput reports whether cmd should print JSON. In auto mode JSON is
// chosen when stdout is not a terminal.
func jsonOutput(cmd *cobra.Command) bool {
	switch outputMode {
	case "json":
		return true
	case "text":
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatNode renders one node line indented by its depth below base.
func formatNode(n *hierarchy.Node, base int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", max(n.Level-base, 0)))
	b.WriteString(typeStyle.Render(string(n.Type)))
	if n.Name != "" {
		b.WriteString(" " + n.Name)
	}
	if content := summarize(n.Content); content != "" {
		b.WriteString(" " + content)
	}
	b.WriteString(" " + dimStyle.Render(n.Path))
	return b.String()
}

// summarize flattens content to one line of at most contentWidth runes.
func summarize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > contentWidth {
		s = string(r[:contentWidth-3]) + "..."
	}
	return s
}

// FormatTree prints nodes as an indented outline.
func FormatTree(w io.Writer, nodes []*hierarchy.Node) {
	if len(nodes) == 0 {
		return
	}
	base := nodes[0].Level
	for _, n := range nodes {
		fmt.Fprintln(w, formatNode(n, base))
	}
}

// FormatNodes prints query results, one per line, with their ids.
func FormatNodes(w io.Writer, nodes []*hierarchy.Node) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no matches"))
		return
	}
	for _, n := range nodes {
		fmt.Fprintf(w, "%s %s\n", formatNode(n, n.Level), dimStyle.Render(n.ID))
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d nodes", len(nodes))))
}

// FormatShards prints one summary line per shard.
func FormatShards(w io.Writer, set *shard.Set) {
	fmt.Fprintln(w, titleStyle.Render(set.Policy))
	for _, sh := range set.Shards {
		bd := sh.Boundary
		var span string
		if bd.Kind == "level" {
			span = fmt.Sprintf("levels %d-%d", bd.FromLevel, bd.ToLevel)
		} else {
			span = fmt.Sprintf("nodes %d-%d", bd.Start, bd.End)
		}
		line := fmt.Sprintf("%s %s %s", sh.ID, dimStyle.Render(span), formatCount(sh.Len(), "node"))
		if bd.Tokens > 0 {
			line += dimStyle.Render(fmt.Sprintf(" ~%d tokens", bd.Tokens))
		}
		fmt.Fprintln(w, line)
	}
}

// FormatProbe prints tool availability per format.
func FormatProbe(w io.Writer, results []bridge.Availability) {
	var lines []string
	for _, a := range results {
		status := successStyle.Render("available")
		detail := a.Path
		if a.Version != "" {
			detail += " " + dimStyle.Render(a.Version)
		}
		if !a.Available {
			status = errorStyle.Render("unavailable")
			detail = dimStyle.Render("in-process parser")
		}
		tool := a.Tool
		if tool == "" {
			tool = "-"
		}
		lines = append(lines, fmt.Sprintf("%-8s %-8s %s %s", a.Format, tool, status, detail))
	}
	fmt.Fprintln(w, boxStyle.Render(titleStyle.Render("Accelerated extraction")+"\n"+strings.Join(lines, "\n")))
}

func formatCount(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
