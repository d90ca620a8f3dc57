package commands

import (
	"fmt"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/version"
	"github.com/spf13/cobra"
)

// VersionCmd displays the version of the explorer being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}
