// Package config handles configuration loading for smokecheck.
//
// It provides functionality for:
//   - Loading configuration from .smokecheck.yaml or smokecheck.yaml files
//   - Default values matching the deployed backend under test
//   - ${VAR} expansion from the process environment
//   - Merging command-line overrides on top of file values
package config
