package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/batchsql/cli/internal/ui"
	"github.com/satishbabariya/batchsql/cli/internal/version"
)

var versionFull bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		if versionFull {
			fmt.Fprintln(ui.Out, info.FullString())
			return
		}
		fmt.Fprintln(ui.Out, info.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "Include build and driver details")
	rootCmd.AddCommand(versionCmd)
}
