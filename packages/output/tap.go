package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caugusteg/smokecheck/packages/core/runner"
)

// TAPFormatter formats results in TAP (Test Anything Protocol) version 13
type TAPFormatter struct {
	writer  io.Writer
	results []tapResult
}

type tapResult struct {
	number  int
	name    string
	passed  bool
	details string
	status  int
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.results = append(f.results, tapResult{
			number:  len(f.results) + 1,
			name:    r.Test,
			passed:  r.Success,
			details: r.Details,
			status:  r.StatusCode,
		})
	}
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush() error {
	var b strings.Builder

	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", len(f.results))

	for _, r := range f.results {
		if r.passed {
			fmt.Fprintf(&b, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(&b, "not ok %d - %s\n", r.number, r.name)
		b.WriteString("  ---\n")
		fmt.Fprintf(&b, "  message: %s\n", escapeYAML(r.details))
		if r.status == 0 {
			b.WriteString("  severity: error\n")
		} else {
			fmt.Fprintf(&b, "  status: %d\n", r.status)
			b.WriteString("  severity: fail\n")
		}
		b.WriteString("  ...\n")
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

func escapeYAML(s string) string {
	// quote when the value would not survive as a plain YAML scalar
	if s == "" || strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		return `"` + s + `"`
	}
	return s
}

// SaveTAP writes run as a TAP stream to path
func SaveTAP(path string, run *runner.RunResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating tap file: %w", err)
	}

	f := NewTAPFormatter(TAPWithWriter(file))
	f.FormatResult(run)
	if err := f.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing tap file: %w", err)
	}
	return file.Close()
}
