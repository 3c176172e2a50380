package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/akyaiy/GoSally-connector/hooks"
	"github.com/akyaiy/GoSally-connector/internal/core/corestate"
	"github.com/akyaiy/GoSally-connector/internal/engine/logs"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "GoSally connector",
	Long:  "JTL-style jtlrpc connector node",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	log.SetOutput(os.Stdout)
	log.SetPrefix(logs.SetBrightBlack(fmt.Sprintf("(%s) ", corestate.StageNotReady)))
	log.SetFlags(log.Ldate | log.Ltime)
	hooks.Compositor.LoadCMDLine(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
