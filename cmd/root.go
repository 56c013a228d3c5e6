package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itsmostafa/hierchunk/internal/chunker"
	"github.com/itsmostafa/hierchunk/internal/config"
	"github.com/itsmostafa/hierchunk/internal/logging"
	"github.com/itsmostafa/hierchunk/internal/version"
)

var (
	configPath string
	outputMode string
	logLevel   string

	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "hierchunk",
	Short: "Hierarchical chunking for XML, YAML, JSON and Markdown",
	Long: `hierchunk normalizes structured documents into a tree of addressable nodes,
persists an index per file, answers structural queries and partitions
documents into shards that fit a context budget.

External tools (jq, yq, xmllint) speed up path extraction when they are
installed; without them the built-in parsers give the same result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := parseOutputMode(outputMode); err != nil {
			return err
		}
		l, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
		if err != nil {
			return err
		}
		appConfig, logger = cfg, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.Version = version.Get().Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("hierchunk %s\n", version.String()))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&outputMode, "output", "o", "auto", "Output format (auto, text, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

// newChunker builds a chunker from the loaded configuration.
func newChunker() (*chunker.Chunker, error) {
	return chunker.New(appConfig, chunker.WithLogger(logger))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}
