package cmd

import (
	"fmt"
	"runtime"

	"github.com/akyaiy/GoSally-connector/internal/engine/config"
	"github.com/akyaiy/GoSally-connector/internal/server/rpc"
	"github.com/spf13/cobra"
)

var verCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"ver", "v"},
	Short:   "Return connector version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("GoSally connector: %s\n", config.NodeVersion)
		fmt.Printf("Protocol version: %d\n", rpc.ProtocolVersion)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("Go OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(verCmd)
}
