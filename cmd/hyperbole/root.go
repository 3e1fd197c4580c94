package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hyperbole",
	Short: "Minimal HTTP server built on an ordered handler chain",
	Long: `hyperbole serves HTTP through an ordered list of handlers. Each
handler either finalizes the response or passes control to the next one.`,
	Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (defaults and HYPERBOLE_* env when empty)")
}
