package cmd

import (
	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/bridge"
	"github.com/itsmostafa/hierchunk/internal/hierarchy"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which external extraction tools are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newChunker()
		if err != nil {
			return err
		}
		var results []bridge.Availability
		if b := c.Bridge(); b != nil {
			found := b.Probe(cmd.Context())
			for _, f := range hierarchy.AllFormats() {
				results = append(results, found[f])
			}
		} else {
			for _, f := range hierarchy.AllFormats() {
				results = append(results, bridge.Availability{Format: f})
			}
		}

		if jsonOutput(cmd) {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		FormatProbe(cmd.OutOrStdout(), results)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
