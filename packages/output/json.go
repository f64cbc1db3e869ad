package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caugusteg/smokecheck/packages/core/runner"
)

// JSONFormatter writes the ordered list of test results as an indented
// JSON array. Non-ASCII text is written as is.
type JSONFormatter struct {
	writer  io.Writer
	results []*runner.TestResult
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]*runner.TestResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.results = append(f.results, result.Results...)
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.results)
}

// SaveResults writes the results of run to path, creating the parent
// directory when needed.
func SaveResults(path string, run *runner.RunResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating results directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}

	f := NewJSONFormatter(JSONWithWriter(file))
	f.FormatResult(run)
	if err := f.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing results file: %w", err)
	}
	return file.Close()
}
