package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Inspect a running chat relay",
	Long: `chatctl queries a running chat relay: connection and delivery counters
over HTTP, and the broker health over gRPC.

Examples:
  chatctl stats --addr http://localhost:8080
  chatctl health --grpc-addr localhost:50051 --json`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	rootCmd.AddCommand(newStatsCmd(), newHealthCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
