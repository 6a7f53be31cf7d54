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
		Use:   "cellgraph",
		Short: "Reactive dataflow graph toolkit",
		Long: `Cellgraph is a fine-grained reactive dataflow engine for Go.

Cells hold mutable values, expressions derive from them with automatic
dependency tracking, and writes propagate in rank order inside
transactions. This tool benchmarks the engine and serves a live demo
graph with an HTTP inspector.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		benchCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cellgraph %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
