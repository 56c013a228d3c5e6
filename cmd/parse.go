package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

var parseFormat string
var parseLeaves bool

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a document and print its tree",
	Long: `Parse a document with the built-in parser and print its node tree.
The format is detected from the extension or the first bytes of the file
unless --format is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newChunker()
		if err != nil {
			return err
		}

		var tree *hierarchy.Tree
		if parseFormat != "" {
			f, err := hierarchy.ParseFormat(parseFormat)
			if err != nil {
				return err
			}
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(abs)
			if err != nil {
				return err
			}
			tree, err = c.ParseContent(abs, f, content)
			if err != nil {
				return err
			}
		} else if tree, err = c.Parse(cmd.Context(), args[0]); err != nil {
			return err
		}

		if jsonOutput(cmd) {
			if parseLeaves {
				return writeJSON(cmd.OutOrStdout(), tree.LeafNodes())
			}
			return writeJSON(cmd.OutOrStdout(), tree)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s %s\n", titleStyle.Render(tree.Source), dimStyle.Render(tree.Format.String()), formatCount(tree.Len(), "node"))
		if parseLeaves {
			FormatNodes(w, tree.LeafNodes())
			return nil
		}
		FormatTree(w, tree.AllNodes())
		return nil
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseLeaves, "leaves", false, "Print only leaf nodes")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "", "Force the document format (xml, yaml, json, markdown)")

	rootCmd.AddCommand(parseCmd)
}
