// Package cmd implements the smokecheck CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the smoke test suite (also the default command)
//   - list: Display the checks in execution order
//   - mock: Start a local stand-in for the backend
//   - history: Show runs recorded in the history database
//   - init: Write an example .smokecheck.yaml
//   - version: Show smokecheck version information
//
// Flags default from SMOKECHECK_* environment variables. Failed checks only
// change the exit code when --strict is set.
package cmd
