package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configWrite bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and HIERCHUNK_*
environment overrides are applied. With --write it is saved to the
--config path instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configWrite {
			if err := appConfig.Save(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("wrote"), configPath)
			return nil
		}
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().BoolVar(&configWrite, "write", false, "Save the effective configuration to the --config path")

	rootCmd.AddCommand(configCmd)
}
