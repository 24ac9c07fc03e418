package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tapewatch",
	Short: "tapewatch - intraday watchlist scanner",
	Long: `tapewatch Unified CLI

Intraday equity watchlist scanner. Polls a ranked provider chain during
market hours, computes capital-flow features, classifies trap risk and
funnels each instrument into a decision tag.

Usage:
  go run ./cmd/tapewatch [command]

Examples:
  go run ./cmd/tapewatch monitor
  go run ./cmd/tapewatch replay 2026-08-10
  go run ./cmd/tapewatch api
  go run ./cmd/tapewatch universe refresh`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
