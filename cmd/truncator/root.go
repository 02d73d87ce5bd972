package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/truncator/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "truncator",
	Short: "Truncator - version history retention for staged records",
	Long: `Truncator prunes the version tables of staged, versioned records.

For each record it keeps:
  - the newest N published versions
  - the newest M draft versions
  - one published version per prior URL, so old links still redirect

Everything else is deleted from every version table of the record's type.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "truncator.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
