package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caugusteg/smokecheck/packages/logging"
	"github.com/caugusteg/smokecheck/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag        int
	mockDelayFlag       string
	mockPrefixFlag      string
	mockRootMessageFlag string
	mockStorageDownFlag bool
	mockVerboseFlag     bool
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start a local stand-in for the contact/quote backend",
	Long: `Start an HTTP server that behaves like the contact/quote backend so the
suite can be run without a deployment.

The mock server:
- Answers GET <prefix>/ with the API banner
- Validates contact and quote submissions and returns 422 on bad fields
- Rejects malformed JSON bodies with 400
- Issues MSG-/DEV- identifiers and normalizes phone numbers
- Can add artificial delays or simulate a storage outage

Examples:
  smokecheck mock
  smokecheck mock --port 9000 --delay 100ms
  smokecheck mock --storage-down`,
	Args: cobra.NoArgs,
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("SMOKECHECK_MOCK_PORT", mock.DefaultPort), "Port to run the mock server on (env: SMOKECHECK_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().StringVar(&mockPrefixFlag, "prefix", mock.DefaultAPIPrefix, "Path prefix of the API routes")
	mockCmd.Flags().StringVar(&mockRootMessageFlag, "root-message", mock.DefaultRootMessage, "Message returned by the API root")
	mockCmd.Flags().BoolVar(&mockStorageDownFlag, "storage-down", false, "Fail every valid submission with 500")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Log every request")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExitCode(ExitUsageError, "invalid delay value %q: %w", mockDelayFlag, err)
		}
	}

	logger := logging.Setup(cmd.ErrOrStderr(), logging.Options{Verbose: mockVerboseFlag})

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithAPIPrefix(mockPrefixFlag),
		mock.WithRootMessage(mockRootMessageFlag),
		mock.WithStorageDown(mockStorageDownFlag),
		mock.WithLogger(logger),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Mock backend on http://localhost:%d%s (%d routes)\n",
		mockPortFlag, mockPrefixFlag, len(server.Routes()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.StartWithContext(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Mock server stopped")
	return nil
}
