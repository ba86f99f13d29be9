package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configInit string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Prints the configuration after loading --config (or ./sysrecon.yaml) over
the built-in defaults. With --init the result is written to a file instead,
as a starting point for a custom profile.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if configInit != "" {
			if err := cfg.Save(configInit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration written to %s\n", configInit)
			return nil
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().StringVar(&configInit, "init", "", "write the effective configuration to this file")
	rootCmd.AddCommand(configCmd)
}
