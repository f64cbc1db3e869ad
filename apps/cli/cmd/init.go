package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caugusteg/smokecheck/packages/core/config"
	"github.com/spf13/cobra"
)

var (
	forceInit      bool
	initBaseURL    string
	initResultFile string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example .smokecheck.yaml",
	Long: `Write a .smokecheck.yaml in the current directory holding the default
settings, ready to be edited.

Examples:
  smokecheck init
  smokecheck init --base-url http://localhost:8001 --results-file ./results.json
  smokecheck init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "Backend base URL to write instead of the default")
	initCmd.Flags().StringVar(&initResultFile, "results-file", "", "Results path to write instead of the default")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	if !forceInit {
		if _, err := os.Stat(configFile); err == nil {
			return withExitCode(ExitUsageError, "file already exists: %s (use --force to overwrite)", configFile)
		}
	}

	cfg := config.DefaultConfig().Merge(&config.Config{
		BaseURL:     initBaseURL,
		ResultsFile: initResultFile,
	})
	if err := cfg.SaveConfig(configFile); err != nil {
		return withExitCode(ExitOutputError, "failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nNext steps:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  smokecheck list              # see the checks\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  smokecheck mock &            # optional local backend\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  smokecheck run -v            # run the suite\n")
	return nil
}
