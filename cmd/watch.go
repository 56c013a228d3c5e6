package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/index"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Keep indexes fresh while files change",
	Long: `Index the given files, then rebuild each index whenever its file changes.
Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newChunker()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("watching %s (ctrl-c to stop)", formatCount(len(args), "file"))))
		return c.Watch(ctx, args, func(source string, idx *index.Index, err error) {
			if err != nil {
				fmt.Fprintf(w, "%s %s: %v\n", errorStyle.Render("failed"), source, err)
				return
			}
			fmt.Fprintf(w, "%s %s %s\n", successStyle.Render("indexed"), source, formatCount(idx.Len(), "node"))
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
