package cmd

import (
	"github.com/akyaiy/GoSally-connector/hooks"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"r"},
	Short:   "Run the connector",
	Long: `
"run" serves the jtlrpc endpoint with settings depending on the configuration file`,
	Run: hooks.Run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}
