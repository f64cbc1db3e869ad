package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "smokecheck",
	Short: "Smoke tests for the contact and quote API.",
	Long: `smokecheck runs a fixed sequence of checks against a deployed
contact/quote backend, prints a PASS/FAIL line per check and a summary,
and saves the detailed results as JSON.

Running smokecheck without a subcommand is the same as "smokecheck run".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCommand,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		code := exitCode(err)
		// the summary already reported failed cases
		if code != ExitTestFailure {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(code)
	}
}

func init() {
	addRunFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
