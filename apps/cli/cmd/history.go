package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/caugusteg/smokecheck/packages/db"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyDBPathFlag  string
	historyTargetFlag  string
	historyLimitFlag   int
	historyRunFlag     string
	historyNoColorFlag bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs recorded with --history-db",
	Long: `List the most recent runs stored in the history database, newest first.

Examples:
  smokecheck history --history-db smokecheck.db
  smokecheck history --history-db smokecheck.db --base-url http://localhost:8001 --limit 5
  smokecheck history --history-db smokecheck.db --run 3f2c9a4e-...`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPathFlag, "history-db", getEnvString("SMOKECHECK_HISTORY_DB", ""), "SQLite history file (env: SMOKECHECK_HISTORY_DB)")
	historyCmd.Flags().StringVar(&historyTargetFlag, "base-url", "", "Only show runs against this base URL")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the case results of one run")
	historyCmd.Flags().BoolVar(&historyNoColorFlag, "no-color", getEnvBool("SMOKECHECK_NO_COLOR", false), "Disable colored output (env: SMOKECHECK_NO_COLOR)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	if historyDBPathFlag == "" {
		return withExitCode(ExitUsageError, "--history-db is required")
	}
	if historyNoColorFlag {
		color.NoColor = true
	}

	client, err := db.NewClient(historyDBPathFlag)
	if err != nil {
		return withExitCode(ExitConfigError, "opening history: %w", err)
	}
	defer client.Close()

	if historyRunFlag != "" {
		return printRunResults(cmd, client, historyRunFlag)
	}

	runs, err := client.RecentRuns(cmd.Context(), historyTargetFlag, historyLimitFlag)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTARGET\tRESULT\tPASSED\tRATE\tDURATION\tRUN")
	for _, r := range runs {
		result := green("PASS")
		if !r.AllPassed() {
			result = red("FAIL")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%.1f%%\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.BaseURL,
			result,
			r.Passed, r.Total,
			r.PassRate,
			r.Duration.Round(time.Millisecond),
			r.ID,
		)
	}
	return w.Flush()
}

// printRunResults lists the stored cases of one run in execution order
func printRunResults(cmd *cobra.Command, client *db.Client, runID string) error {
	results, err := client.RunResults(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return withExitCode(ExitUsageError, "no results recorded for run %q", runID)
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTEST\tRESULT\tSTATUS\tDURATION\tDETAILS")
	for _, r := range results {
		result := green("PASS")
		if !r.Success {
			result = red("FAIL")
		}
		status := "-"
		if r.StatusCode > 0 {
			status = fmt.Sprintf("%d", r.StatusCode)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Position+1,
			r.Test,
			result,
			status,
			r.Duration.Round(time.Millisecond),
			r.Details,
		)
	}
	return w.Flush()
}
