package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file> <path>",
	Short: "Extract the subtree at a node path",
	Long: `Extract the subtree rooted at a node path such as root/servers/[0] or
catalog/book[1]. jq, yq or xmllint answer the query when installed;
otherwise the document is parsed in-process with identical node ids.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newChunker()
		if err != nil {
			return err
		}
		ext, err := c.Extract(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return writeJSON(cmd.OutOrStdout(), struct {
				Accelerated bool              `json:"accelerated"`
				Tool        string            `json:"tool,omitempty"`
				Fallback    string            `json:"fallback,omitempty"`
				Nodes       []*hierarchy.Node `json:"nodes"`
			}{ext.Accelerated, ext.Tool, errString(ext.Fallback), ext.Tree.AllNodes()})
		}

		w := cmd.OutOrStdout()
		via := dimStyle.Render("in-process")
		if ext.Accelerated {
			via = successStyle.Render(ext.Tool)
		}
		fmt.Fprintf(w, "%s %s %s\n", titleStyle.Render(args[1]), via, formatCount(ext.Tree.Len(), "node"))
		FormatTree(w, ext.Tree.AllNodes())
		return nil
	},
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
