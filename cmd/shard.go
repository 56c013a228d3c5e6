package cmd

import (
	"github.com/spf13/cobra"

	"github.com/itsmostafa/hierchunk/internal/shard"
)

var shardPolicy string
var shardSize int

var shardCmd = &cobra.Command{
	Use:   "shard <file>",
	Short: "Partition a document into shards",
	Long: `Partition the indexed nodes of a document into disjoint shards.

Policies:
  level   one shard per --size consecutive levels
  count   blocks of at most --size nodes in document order
  tokens  blocks of at most --size estimated tokens

Without --policy the shard section of the config file decides.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newChunker()
		if err != nil {
			return err
		}

		var p shard.Policy
		if shardPolicy != "" {
			size := shardSize
			if size == 0 {
				cfg := *appConfig
				cfg.Shard.Policy = shardPolicy
				size = cfg.ShardSize()
			}
			if p, err = shard.ParsePolicy(shardPolicy, size); err != nil {
				return err
			}
		}

		set, err := c.Shard(cmd.Context(), args[0], p)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return writeJSON(cmd.OutOrStdout(), set)
		}
		FormatShards(cmd.OutOrStdout(), set)
		return nil
	},
}

func init() {
	shardCmd.Flags().StringVar(&shardPolicy, "policy", "", "Shard policy (level, count, tokens)")
	shardCmd.Flags().IntVar(&shardSize, "size", 0, "Policy size: level span, max nodes or max tokens (0 = config value)")

	rootCmd.AddCommand(shardCmd)
}
