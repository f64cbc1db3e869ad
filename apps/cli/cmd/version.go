package cmd

import (
	"fmt"

	"github.com/caugusteg/smokecheck/packages/output"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithNoColor(getEnvBool("SMOKECHECK_NO_COLOR", false)),
		).FormatHeader(version)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTime)
	},
}
