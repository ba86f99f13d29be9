package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version diisi saat build: -ldflags "-X corp/sysrecon/commands.Version=1.2.0"
var Version = "1.0.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of SysRecon",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sysrecon %s %s/%s (%s)\n", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
