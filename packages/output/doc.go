// Package output provides formatters for displaying and saving run results.
//
// Supported output formats:
//   - Console: coloured PASS/FAIL lines printed as results arrive, then a summary
//   - JSON: the ordered results list, the run's artifact
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol version 13
//
// Each file formatter implements Formatter and Flushable: results are
// accumulated by FormatResult and written by Flush.
package output

import "github.com/caugusteg/smokecheck/packages/core/runner"

// Formatter accumulates the results of a run
type Formatter interface {
	FormatResult(result *runner.RunResult)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush() error
}

var (
	_ runner.Observer = (*ConsoleFormatter)(nil)
	_ Formatter       = (*JSONFormatter)(nil)
	_ Flushable       = (*JSONFormatter)(nil)
	_ Formatter       = (*JUnitFormatter)(nil)
	_ Flushable       = (*JUnitFormatter)(nil)
	_ Formatter       = (*TAPFormatter)(nil)
	_ Flushable       = (*TAPFormatter)(nil)
)
