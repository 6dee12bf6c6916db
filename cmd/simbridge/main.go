package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simbridge",
		Short: "Live-telemetry bridge for interactive simulations",
		Long: `Simbridge exposes a running numerical simulation to the browser.

It steps a model on a fixed-dt loop, formats semantic-pointer telemetry
per tick, and streams it over websockets to a small visualization page.
Sessions are keyed by their layout config file: running the same config
twice reconnects to the live server instead of starting a second one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
