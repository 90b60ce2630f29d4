package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - daily query-limit service",
	Long: `Ganymede is a daily query-limit service for per-user quota accounting.

It exposes an HTTP API that:
  - Checks whether a user may issue another query today (fail-closed)
  - Records completed queries with at-least-once delivery
  - Reports the next daily reset instant

Recording survives counter-backend outages: failed records are queued in a
local durable store and delivered by background flushes.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
