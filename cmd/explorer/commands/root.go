package commands

import (
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

// RootCmd is the root command of the explorer
var RootCmd = &cobra.Command{
	Use:              "explorer",
	Short:            "InterValue DAG explorer",
	TraverseChildren: true,
}
