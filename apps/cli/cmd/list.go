package cmd

import (
	"fmt"

	"github.com/caugusteg/smokecheck/packages/core/runner"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the checks in execution order",
	Long: `List every check the suite runs, in the order it runs them.

Examples:
  smokecheck list`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	for i, name := range runner.Names(runner.DefaultCases()) {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, name)
	}
	return nil
}
