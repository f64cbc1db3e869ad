package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caugusteg/smokecheck/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one run against one base URL
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr,omitempty"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure is a case that got a response it did not expect
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError is a case that never got a response
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
	now        func() time.Time
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

const junitClassName = "smokecheck"

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	suite := JUnitTestSuite{
		Name:      result.BaseURL,
		Tests:     len(result.Results),
		Time:      result.Duration.Seconds(),
		Timestamp: result.StartedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: result.ID},
			{Name: "base_url", Value: result.BaseURL},
		},
		TestCases: make([]JUnitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := JUnitTestCase{
			Name:      r.Test,
			ClassName: junitClassName,
			Time:      r.Duration.Seconds(),
		}

		switch {
		case r.Success:
		case r.StatusCode == 0:
			suite.Errors++
			tc.Error = &JUnitError{
				Message: r.Details,
				Type:    "Error",
			}
		default:
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: r.Details,
				Type:    "AssertionError",
				Content: failureContent(r),
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suite)
}

func failureContent(r *runner.TestResult) string {
	content := fmt.Sprintf("status: %d\n", r.StatusCode)
	if r.ResponseData != nil {
		content += "response: " + indentJSON(r.ResponseData) + "\n"
	}
	return content
}

// Flush writes the accumulated JUnit XML output. The top-level time is the
// sum of the suite times.
func (f *JUnitFormatter) Flush() error {
	var totalTests, totalFailures, totalErrors int
	var totalTime float64
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalTime += suite.Time
	}

	suites := JUnitTestSuites{
		Name:       "smokecheck",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Time:       totalTime,
		Timestamp:  f.now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}

// SaveJUnit writes run as a JUnit report to path
func SaveJUnit(path string, run *runner.RunResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating junit file: %w", err)
	}

	f := NewJUnitFormatter(JUnitWithWriter(file))
	f.FormatResult(run)
	if err := f.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing junit file: %w", err)
	}
	return file.Close()
}
