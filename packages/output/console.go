package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caugusteg/smokecheck/packages/assertions"
	"github.com/caugusteg/smokecheck/packages/core/runner"
	"github.com/fatih/color"
)

const separatorWidth = 60

// ConsoleFormatter prints results as they arrive and the summary at the end.
// It implements runner.Observer.
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func separator() string {
	return strings.Repeat("=", separatorWidth)
}

// OnStart prints the run banner
func (f *ConsoleFormatter) OnStart(run *runner.RunResult) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold("🚀 Starting backend smoke tests"))
	fmt.Fprintf(f.writer, "🔗 Test URL: %s\n", run.BaseURL)
	if f.verbose {
		fmt.Fprintf(f.writer, "🆔 Run: %s\n", run.ID)
	}
	fmt.Fprintf(f.writer, "%s\n", separator())
}

// OnResult prints one PASS/FAIL line, followed by the response data of a
// failed case.
func (f *ConsoleFormatter) OnResult(r *runner.TestResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	status := green("✅ PASS")
	if !r.Success {
		status = red("❌ FAIL")
	}

	fmt.Fprintf(f.writer, "%s - %s: %s", status, r.Test, r.Details)
	if f.verbose && r.Duration > 0 {
		fmt.Fprintf(f.writer, " %s", cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
	}
	fmt.Fprintf(f.writer, "\n")

	if !r.Success && assertions.Truthy(r.ResponseData) {
		fmt.Fprintf(f.writer, "   Response: %s\n", indentJSON(r.ResponseData))
	}
}

// FormatSummary prints counts, pass rate, latency and the failed cases
func (f *ConsoleFormatter) FormatSummary(s *runner.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", separator())
	fmt.Fprintf(f.writer, "%s\n", bold("📊 TEST SUMMARY"))
	fmt.Fprintf(f.writer, "%s\n", separator())

	fmt.Fprintf(f.writer, "Total tests: %d\n", s.Total)
	fmt.Fprintf(f.writer, "✅ Passed: %s\n", green(s.Passed))
	fmt.Fprintf(f.writer, "❌ Failed: %s\n", red(s.Failed))
	fmt.Fprintf(f.writer, "📈 Pass rate: %.1f%%\n", s.PassRate)

	if s.Latency.Count > 0 {
		fmt.Fprintf(f.writer, "⏱️  Latency: p50 %s, p95 %s, p99 %s, max %s\n",
			formatDuration(s.Latency.P50),
			formatDuration(s.Latency.P95),
			formatDuration(s.Latency.P99),
			formatDuration(s.Latency.Max),
		)
	}

	if len(s.Failures) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", bold("🔍 FAILED TESTS:"))
		for _, r := range s.Failures {
			fmt.Fprintf(f.writer, "  - %s: %s\n", r.Test, r.Details)
		}
	}

	fmt.Fprintf(f.writer, "\n%s\n", separator())
}

// FormatSaved reports where the results file was written
func (f *ConsoleFormatter) FormatSaved(path string) {
	fmt.Fprintf(f.writer, "📄 Detailed results saved to: %s\n", path)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// FormatHeader prints the program name and version
func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s version %s\n", bold("smokecheck"), version)
}

// indentJSON renders v with two-space indentation, falling back to %v
func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
