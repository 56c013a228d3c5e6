package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/index"
)

var indexForce bool
var indexParallel int

// indexSummary is the JSON form of one built index.
type indexSummary struct {
	Source string `json:"source"`
	Format string `json:"format"`
	Nodes  int    `json:"nodes"`
	Levels []int  `json:"levels"`
	Index  string `json:"index"`
}

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Build and persist indexes",
	Long: `Build the index of each file and persist it under index.dir. A persisted
index whose source signature still matches is reused unless --force is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newChunker()
		if err != nil {
			return err
		}

		var built []*index.Index
		if indexForce {
			for _, path := range args {
				idx, err := c.Rebuild(cmd.Context(), path)
				if err != nil {
					return err
				}
				built = append(built, idx)
			}
		} else if built, err = c.IndexAll(cmd.Context(), args, indexParallel); err != nil {
			return err
		}

		summaries := make([]indexSummary, 0, len(built))
		for _, idx := range built {
			dest, err := c.Store().PathFor(idx.Source)
			if err != nil {
				return err
			}
			summaries = append(summaries, indexSummary{
				Source: idx.Source,
				Format: idx.Format.String(),
				Nodes:  idx.Len(),
				Levels: idx.Levels(),
				Index:  dest,
			})
		}

		if jsonOutput(cmd) {
			return writeJSON(cmd.OutOrStdout(), summaries)
		}
		w := cmd.OutOrStdout()
		for _, s := range summaries {
			fmt.Fprintf(w, "%s %s %s %s %s\n",
				successStyle.Render("indexed"), s.Source,
				dimStyle.Render(s.Format), formatCount(s.Nodes, "node"),
				dimStyle.Render("-> "+s.Index))
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Rebuild even when the persisted index is valid")
	indexCmd.Flags().IntVarP(&indexParallel, "parallel", "p", 0, "Files indexed concurrently (0 = number of CPUs)")

	rootCmd.AddCommand(indexCmd)
}
