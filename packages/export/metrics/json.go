package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSONExporter writes the run aggregate and every case as one JSON document
type JSONExporter struct {
	writer   io.Writer
	filePath string
	pretty   bool
	target   string
	cases    []*TestMetrics
	now      func() time.Time
}

// JSONOption is a functional option for JSONExporter
type JSONOption func(*JSONExporter)

// WithJSONWriter sets the output writer for JSON metrics
func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

// WithJSONFile sets the output file for JSON metrics
func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) {
		j.filePath = path
	}
}

// WithJSONPretty enables pretty-printed JSON output
func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

// WithJSONTarget records the base URL the run was made against
func WithJSONTarget(target string) JSONOption {
	return func(j *JSONExporter) {
		j.target = target
	}
}

// NewJSONExporter creates a new JSON metrics exporter
func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{
		pretty: true,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// JSONMetricsOutput is the complete JSON output structure
type JSONMetricsOutput struct {
	GeneratedAt string            `json:"generated_at"`
	Target      string            `json:"target,omitempty"`
	PassRate    float64           `json:"pass_rate"`
	Summary     *AggregateMetrics `json:"summary"`
	Cases       []*TestMetrics    `json:"cases"`
}

// Export writes the aggregate with the cases collected so far
func (j *JSONExporter) Export(agg *AggregateMetrics) error {
	out := JSONMetricsOutput{
		GeneratedAt: j.now().Format(time.RFC3339),
		Target:      j.target,
		PassRate:    agg.PassRate(),
		Summary:     agg,
		Cases:       j.cases,
	}
	if out.Cases == nil {
		out.Cases = []*TestMetrics{}
	}

	var data []byte
	var err error
	if j.pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	data = append(data, '\n')

	if j.filePath != "" {
		if err := os.WriteFile(j.filePath, data, 0644); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if j.writer != nil {
		if _, err := j.writer.Write(data); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

// ExportSingle buffers one case for the next Export
func (j *JSONExporter) ExportSingle(m *TestMetrics) error {
	j.cases = append(j.cases, m)
	return nil
}

// Close implements Exporter
func (j *JSONExporter) Close() error {
	return nil
}
