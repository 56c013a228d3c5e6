package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/hierarchy"
	"github.com/itsmostafa/hierchunk/internal/index"
)

var queryKind string
var queryArg string
var queryPrefix bool
var queryRegex bool

var queryCmd = &cobra.Command{
	Use:   "query <file>",
	Short: "Query the index of a document",
	Long: fmt.Sprintf(`Answer a structural query against the index of a document, building the
index first when it is missing or stale.

Kinds: %s
Types: %s`, kindList(), typeList()),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := index.ParseKind(queryKind)
		if err != nil {
			return err
		}
		c, err := newChunker()
		if err != nil {
			return err
		}
		nodes, err := c.Query(cmd.Context(), args[0], index.Query{
			Kind:   kind,
			Arg:    queryArg,
			Prefix: queryPrefix,
			Regex:  queryRegex,
		})
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return writeJSON(cmd.OutOrStdout(), nodes)
		}
		FormatNodes(cmd.OutOrStdout(), nodes)
		return nil
	},
}

func kindList() string {
	kinds := index.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func typeList() string {
	types := hierarchy.NodeTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func init() {
	queryCmd.Flags().StringVarP(&queryKind, "kind", "k", "path", "Query kind ("+kindList()+")")
	queryCmd.Flags().StringVarP(&queryArg, "arg", "a", "", "Query argument: id, path, type, level or content pattern")
	queryCmd.Flags().BoolVar(&queryPrefix, "prefix", false, "Match paths by prefix")
	queryCmd.Flags().BoolVar(&queryRegex, "regex", false, "Treat the content pattern as a regular expression")

	rootCmd.AddCommand(queryCmd)
}
