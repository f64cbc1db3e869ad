package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for smokecheck CLI
const (
	// ExitSuccess indicates the run completed; failed cases still exit 0
	// unless --strict is set
	ExitSuccess = 0

	// ExitTestFailure indicates one or more cases failed under --strict
	ExitTestFailure = 1

	// ExitConfigError indicates a configuration or env file error
	ExitConfigError = 3

	// ExitOutputError indicates a report file could not be written
	ExitOutputError = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code for an error returned from RunE
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command to a process exit code
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}
